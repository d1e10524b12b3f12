package app

import (
	"context"
	"errors"

	"skillzone-service/internal/domain"
)

// Statistics computes read-only rollups over closed attempts.
type Statistics struct {
	store   Store
	catalog Catalog
}

func NewStatistics(store Store, catalog Catalog) *Statistics {
	return &Statistics{store: store, catalog: catalog}
}

// QuizStatistics reports the caller's own summary next to the quiz-wide one.
func (s *Statistics) QuizStatistics(ctx context.Context, userID, quizID string) (domain.QuizStatisticsReport, error) {
	quiz, err := s.catalog.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizStatisticsReport{}, err
	}

	var attempts []domain.QuizAttempt
	err = s.store.ReadSnapshot(ctx, func(ctx context.Context, r Reader) error {
		var err error
		attempts, err = r.ClosedAttempts(ctx, quiz.ID, "", 0)
		return err
	})
	if err != nil {
		return domain.QuizStatisticsReport{}, err
	}

	return domain.QuizStatisticsReport{
		User:    summarizeUser(attempts, userID),
		Overall: summarizeQuiz(attempts),
	}, nil
}

// CourseStatistics rolls up every quiz of a course and reports userID's own
// standing: completed lessons and quizzes, lesson points earned and the
// share of course items completed. Quizzes missing from the catalog are
// skipped.
func (s *Statistics) CourseStatistics(ctx context.Context, userID, courseID string) (domain.CourseStatistics, error) {
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return domain.CourseStatistics{}, err
	}

	quizzes := make([]domain.Quiz, 0, len(course.QuizIDs))
	for _, id := range course.QuizIDs {
		quiz, err := s.catalog.GetQuiz(ctx, id)
		if errors.Is(err, domain.ErrQuizNotFound) {
			continue
		}
		if err != nil {
			return domain.CourseStatistics{}, err
		}
		quizzes = append(quizzes, quiz)
	}

	var (
		perQuiz     = make([][]domain.QuizAttempt, len(quizzes))
		completed   = make([]bool, len(quizzes))
		completions []domain.LessonCompletion
	)
	err = s.store.ReadSnapshot(ctx, func(ctx context.Context, r Reader) error {
		for i, quiz := range quizzes {
			attempts, err := r.ClosedAttempts(ctx, quiz.ID, "", 0)
			if err != nil {
				return err
			}
			perQuiz[i] = attempts

			progress, ok, err := r.Progress(ctx, userID, quiz.ID)
			if err != nil {
				return err
			}
			completed[i] = ok && progress.Completed
		}
		var err error
		completions, err = r.Completions(ctx, userID)
		return err
	})
	if err != nil {
		return domain.CourseStatistics{}, err
	}

	report := domain.CourseStatistics{CourseID: course.ID, Quizzes: make([]domain.QuizScore, 0, len(quizzes))}
	var all []domain.QuizAttempt
	for i, quiz := range quizzes {
		stats := summarizeQuiz(perQuiz[i])
		report.Quizzes = append(report.Quizzes, domain.QuizScore{
			QuizID:        quiz.ID,
			Title:         quiz.Title,
			TotalAttempts: stats.TotalAttempts,
			PassRate:      stats.PassRate,
			AverageScore:  stats.AverageScore,
		})
		all = append(all, perQuiz[i]...)
		if completed[i] {
			report.User.CompletedQuizzes++
		}
	}
	total := summarizeQuiz(all)
	report.TotalAttempts = total.TotalAttempts
	report.PassRate = total.PassRate
	report.AverageScore = total.AverageScore

	inCourse := make(map[string]bool, len(course.LessonIDs))
	for _, id := range course.LessonIDs {
		inCourse[id] = true
	}
	for _, c := range completions {
		if inCourse[c.LessonID] {
			report.User.CompletedLessons++
			report.User.PointsEarned += c.PointsEarned
		}
	}
	if items := len(inCourse) + len(quizzes); items > 0 {
		done := report.User.CompletedLessons + report.User.CompletedQuizzes
		report.User.CompletionPercentage = float64(done) / float64(items) * 100
	}
	return report, nil
}

func summarizeQuiz(attempts []domain.QuizAttempt) domain.QuizStatistics {
	stats := domain.QuizStatistics{}
	var passed int
	var scoreSum, timeSum float64
	for _, a := range attempts {
		if a.Open() {
			continue
		}
		stats.TotalAttempts++
		if a.IsPassed {
			passed++
		}
		scoreSum += a.Score
		timeSum += a.Duration().Seconds()
	}
	if stats.TotalAttempts == 0 {
		return stats
	}
	n := float64(stats.TotalAttempts)
	stats.PassRate = float64(passed) / n * 100
	stats.AverageScore = scoreSum / n
	stats.AverageTime = timeSum / n
	return stats
}

func summarizeUser(attempts []domain.QuizAttempt, userID string) domain.UserStatistics {
	stats := domain.UserStatistics{}
	for _, a := range attempts {
		if a.UserID != userID || a.Open() {
			continue
		}
		stats.AttemptsCount++
		if a.Score > stats.BestScore {
			stats.BestScore = a.Score
		}
		stats.Passed = stats.Passed || a.IsPassed
	}
	return stats
}
