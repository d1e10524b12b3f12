package app_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"skillzone-service/internal/domain"
)

func TestQuizStatistics(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	pass(t, env, "u1", "quiz-1")
	_, _ = env.quizzes.Start(ctx, "u2", "quiz-1")
	_, _ = env.quizzes.Submit(ctx, "u2", "quiz-1", domain.Submission{})
	// Open attempts are not counted.
	_, _ = env.quizzes.Start(ctx, "u3", "quiz-1")

	report, err := env.stats.QuizStatistics(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if report.User.AttemptsCount != 1 || report.User.BestScore != 100 || !report.User.Passed {
		t.Fatalf("unexpected user statistics %+v", report.User)
	}
	if report.Overall.TotalAttempts != 2 || report.Overall.PassRate != 50 || report.Overall.AverageScore != 50 {
		t.Fatalf("unexpected overall statistics %+v", report.Overall)
	}

	empty, err := env.stats.QuizStatistics(ctx, "u1", "quiz-once")
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if empty.Overall.TotalAttempts != 0 || empty.Overall.PassRate != 0 {
		t.Fatalf("expected zeroed statistics, got %+v", empty.Overall)
	}
}

func TestCourseStatistics(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	pass(t, env, "u1", "quiz-1")
	_, _ = env.quizzes.Start(ctx, "u2", "quiz-1")
	_, _ = env.quizzes.Submit(ctx, "u2", "quiz-1", domain.Submission{})
	_, _ = env.quizzes.Start(ctx, "u1", "quiz-once")
	_, _ = env.quizzes.Submit(ctx, "u1", "quiz-once", domain.Submission{})

	if _, err := env.gate.CompleteLesson(ctx, "u1", "intro"); err != nil {
		t.Fatalf("complete lesson: %v", err)
	}

	report, err := env.stats.CourseStatistics(ctx, "u1", "python")
	if err != nil {
		t.Fatalf("course statistics: %v", err)
	}
	if report.TotalAttempts != 3 || len(report.Quizzes) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if math.Abs(report.PassRate-100.0/3) > 1e-9 || math.Abs(report.AverageScore-100.0/3) > 1e-9 {
		t.Fatalf("unexpected rates %+v", report)
	}
	if report.Quizzes[0].QuizID != "quiz-1" || report.Quizzes[0].PassRate != 50 {
		t.Fatalf("unexpected quiz line %+v", report.Quizzes[0])
	}
	// intro and quiz-1 out of two lessons and two quizzes.
	want := domain.CourseUserStatistics{CompletedLessons: 1, CompletedQuizzes: 1, PointsEarned: 10, CompletionPercentage: 50}
	if report.User != want {
		t.Fatalf("expected user statistics %+v, got %+v", want, report.User)
	}

	other, err := env.stats.CourseStatistics(ctx, "u2", "python")
	if err != nil {
		t.Fatalf("course statistics for u2: %v", err)
	}
	if other.User != (domain.CourseUserStatistics{}) {
		t.Fatalf("expected u2 to have completed nothing, got %+v", other.User)
	}
	if other.TotalAttempts != report.TotalAttempts {
		t.Fatalf("course rollup must not depend on the caller")
	}
}

func TestCourseStatisticsSkipsMissingQuizzes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	pass(t, env, "u1", "quiz-1")

	report, err := env.stats.CourseStatistics(ctx, "u1", "archived")
	if err != nil {
		t.Fatalf("course statistics: %v", err)
	}
	if len(report.Quizzes) != 1 || report.TotalAttempts != 1 || report.PassRate != 100 {
		t.Fatalf("unexpected report %+v", report)
	}

	if _, err := env.stats.CourseStatistics(ctx, "u1", "missing"); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Fatalf("expected course not found, got %v", err)
	}
}
