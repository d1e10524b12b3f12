package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"skillzone-service/internal/domain"
)

// QuizService runs the attempt lifecycle: start, lazy expiry, grading and completion.
type QuizService struct {
	store        Store
	catalog      Catalog
	achievements *AchievementEvaluator
	submissions  SubmissionCache
	now          func() time.Time
	log          logrus.FieldLogger
	replayTTL    time.Duration
}

// NewQuizService wires the state machine. submissions may be nil, in which
// case idempotency keys are ignored.
func NewQuizService(store Store, catalog Catalog, submissions SubmissionCache, opts ...Option) *QuizService {
	o := buildOptions(opts)
	return &QuizService{
		store:        store,
		catalog:      catalog,
		achievements: NewAchievementEvaluator(opts...),
		submissions:  submissions,
		now:          o.now,
		log:          o.log,
		replayTTL:    o.replayTTL,
	}
}

func attemptLockKey(userID, quizID string) string {
	return "attempt:" + userID + ":" + quizID
}

// Start opens an attempt, or resumes the open one while its time limit holds.
// The attempt cap counts every attempt, open or closed, and is checked first
// so a rejected call changes nothing. An expired open attempt is closed as
// failed before a new one is created.
func (s *QuizService) Start(ctx context.Context, userID, quizID string) (domain.StartResult, error) {
	quiz, err := s.catalog.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.StartResult{}, err
	}

	var result domain.StartResult
	err = s.store.WithinTx(ctx, attemptLockKey(userID, quiz.ID), func(ctx context.Context, tx Tx) error {
		result = domain.StartResult{}
		now := s.now()

		if quiz.MaxAttempts > 0 {
			used, err := tx.CountAttempts(ctx, userID, quiz.ID)
			if err != nil {
				return err
			}
			if used >= quiz.MaxAttempts {
				return domain.ErrAttemptLimitExceeded
			}
		}

		open, ok, err := tx.OpenAttempt(ctx, userID, quiz.ID)
		if err != nil {
			return err
		}
		if ok {
			elapsed := now.Sub(open.StartedAt)
			if elapsed <= quiz.TimeLimitDuration() {
				result.AttemptID = open.ID
				result.RemainingTime = remainingSeconds(quiz, elapsed)
				result.Resumed = true
				return nil
			}
			if _, err := s.expire(ctx, tx, quiz, open, now); err != nil {
				return err
			}
		}

		attempt := domain.QuizAttempt{
			ID:        uuid.NewString(),
			QuizID:    quiz.ID,
			UserID:    userID,
			StartedAt: now,
		}
		if err := tx.InsertAttempt(ctx, attempt); err != nil {
			return err
		}
		result.AttemptID = attempt.ID
		result.RemainingTime = quiz.TimeLimit
		return nil
	})
	if err != nil {
		return domain.StartResult{}, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"quiz_id":    quiz.ID,
		"attempt_id": result.AttemptID,
		"resumed":    result.Resumed,
	}).Debug("attempt started")

	result.Quiz = publicContent(quiz)
	return result, nil
}

// Submit grades the open attempt and closes it. On expiry the attempt is
// closed as failed and domain.ErrTimeLimitExceeded is returned together with
// the closed attempt.
func (s *QuizService) Submit(ctx context.Context, userID, quizID string, submission domain.Submission) (domain.SubmitResult, error) {
	quiz, err := s.catalog.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	replayKey := ""
	if submission.IdempotencyKey != "" && s.submissions != nil {
		replayKey = "submit:" + userID + ":" + quiz.ID + ":" + submission.IdempotencyKey
		if cached, ok := s.replay(ctx, replayKey); ok {
			return cached, nil
		}
	}

	var (
		result  domain.SubmitResult
		expired bool
	)
	err = s.store.WithinTx(ctx, attemptLockKey(userID, quiz.ID), func(ctx context.Context, tx Tx) error {
		result = domain.SubmitResult{Achievements: []domain.AchievementType{}}
		expired = false
		now := s.now()

		attempt, ok, err := tx.OpenAttempt(ctx, userID, quiz.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNoOpenAttempt
		}

		elapsed := now.Sub(attempt.StartedAt)
		if elapsed > quiz.TimeLimitDuration() {
			closed, err := s.expire(ctx, tx, quiz, attempt, now)
			if err != nil {
				return err
			}
			expired = true
			result.Attempt = closed
			result.Balance, _, err = tx.Balance(ctx, userID)
			return err
		}

		_, _, score := grade(quiz, submission.Answers)
		completedAt := now
		attempt.CompletedAt = &completedAt
		attempt.Score = score
		attempt.IsPassed = score >= float64(quiz.PassingScore)
		if err := tx.CloseAttempt(ctx, attempt); err != nil {
			return err
		}

		if attempt.IsPassed {
			if _, err := credit(ctx, tx, userID, quiz.PointsReward); err != nil {
				return err
			}
			result.PointsEarned = quiz.PointsReward
		}

		if _, err := recordProgress(ctx, tx, attempt, elapsed, now); err != nil {
			return err
		}

		outcome, err := s.achievements.Evaluate(ctx, tx, quiz, attempt)
		if err != nil {
			return err
		}
		result.Achievements = outcome.Earned
		result.BonusPoints = outcome.Bonus

		if err := tx.EnsureAccount(ctx, userID); err != nil {
			return err
		}
		result.Balance, _, err = tx.Balance(ctx, userID)
		if err != nil {
			return err
		}
		result.Score = attempt.Score
		result.IsPassed = attempt.IsPassed
		result.Attempt = attempt
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoOpenAttempt) && replayKey != "" {
			// A duplicate racing the original may land here after it committed.
			if cached, ok := s.replay(ctx, replayKey); ok {
				return cached, nil
			}
		}
		return domain.SubmitResult{}, err
	}
	if expired {
		return result, domain.ErrTimeLimitExceeded
	}

	if replayKey != "" {
		if err := s.submissions.Put(ctx, replayKey, result, s.replayTTL); err != nil {
			s.log.WithError(err).WithField("quiz_id", quiz.ID).Warn("store submit result for replay")
		}
	}

	s.log.WithFields(logrus.Fields{
		"user_id":      userID,
		"quiz_id":      quiz.ID,
		"attempt_id":   result.Attempt.ID,
		"score":        result.Score,
		"passed":       result.IsPassed,
		"achievements": result.Achievements,
	}).Info("attempt submitted")
	return result, nil
}

// Progress returns the (user, quiz) aggregate; a user without closed
// attempts gets a zero value.
func (s *QuizService) Progress(ctx context.Context, userID, quizID string) (domain.QuizProgress, error) {
	quiz, err := s.catalog.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizProgress{}, err
	}
	progress := domain.QuizProgress{UserID: userID, QuizID: quiz.ID}
	err = s.store.ReadSnapshot(ctx, func(ctx context.Context, r Reader) error {
		p, ok, err := r.Progress(ctx, userID, quiz.ID)
		if ok {
			progress = p
		}
		return err
	})
	return progress, err
}

// Achievements lists the badges userID holds on a quiz.
func (s *QuizService) Achievements(ctx context.Context, userID, quizID string) ([]domain.QuizAchievement, error) {
	quiz, err := s.catalog.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	var out []domain.QuizAchievement
	err = s.store.ReadSnapshot(ctx, func(ctx context.Context, r Reader) error {
		var err error
		out, err = r.Achievements(ctx, userID, quiz.ID)
		return err
	})
	return out, err
}

// ExpireOverdue closes every open attempt whose time limit has passed. It
// returns the number of attempts it closed.
func (s *QuizService) ExpireOverdue(ctx context.Context) (int, error) {
	var open []domain.QuizAttempt
	err := s.store.ReadSnapshot(ctx, func(ctx context.Context, r Reader) error {
		var err error
		open, err = r.OpenAttempts(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	closed := make([]bool, len(open))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, candidate := range open {
		i, candidate := i, candidate
		g.Go(func() error {
			quiz, err := s.catalog.GetQuiz(gctx, candidate.QuizID)
			if errors.Is(err, domain.ErrQuizNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if s.now().Sub(candidate.StartedAt) <= quiz.TimeLimitDuration() {
				return nil
			}
			return s.store.WithinTx(gctx, attemptLockKey(candidate.UserID, quiz.ID), func(ctx context.Context, tx Tx) error {
				attempt, ok, err := tx.OpenAttempt(ctx, candidate.UserID, quiz.ID)
				if err != nil || !ok || attempt.ID != candidate.ID {
					return err
				}
				now := s.now()
				if now.Sub(attempt.StartedAt) <= quiz.TimeLimitDuration() {
					return nil
				}
				if _, err := s.expire(ctx, tx, quiz, attempt, now); err != nil {
					return err
				}
				closed[i] = true
				return nil
			})
		})
	}
	err = g.Wait()

	count := 0
	for _, c := range closed {
		if c {
			count++
		}
	}
	return count, err
}

// expire closes an overdue attempt as failed with score 0 and records it in
// progress. Time spent is capped at the time limit.
func (s *QuizService) expire(ctx context.Context, tx Tx, quiz domain.Quiz, attempt domain.QuizAttempt, now time.Time) (domain.QuizAttempt, error) {
	completedAt := now
	attempt.CompletedAt = &completedAt
	attempt.Score = 0
	attempt.IsPassed = false
	if err := tx.CloseAttempt(ctx, attempt); err != nil {
		return attempt, err
	}

	spent := now.Sub(attempt.StartedAt)
	if limit := quiz.TimeLimitDuration(); spent > limit {
		spent = limit
	}
	if _, err := recordProgress(ctx, tx, attempt, spent, now); err != nil {
		return attempt, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":    attempt.UserID,
		"quiz_id":    attempt.QuizID,
		"attempt_id": attempt.ID,
	}).Info("attempt expired")
	return attempt, nil
}

func (s *QuizService) replay(ctx context.Context, key string) (domain.SubmitResult, bool) {
	cached, ok, err := s.submissions.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).Warn("read submit replay cache")
		return domain.SubmitResult{}, false
	}
	return cached, ok
}

func remainingSeconds(quiz domain.Quiz, elapsed time.Duration) int {
	remaining := quiz.TimeLimit - int(elapsed/time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}
