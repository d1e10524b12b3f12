package app

import (
	"context"
	"time"

	"skillzone-service/internal/domain"
)

// Catalog loads read-only course content (from cache/backing store).
type Catalog interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
	GetCourse(ctx context.Context, courseID string) (domain.Course, error)
}

// Store is the transactional persistence handle of the engine.
type Store interface {
	// WithinTx runs fn atomically. Calls sharing lockKey never interleave.
	// A non-nil error from fn rolls back every write made through tx.
	WithinTx(ctx context.Context, lockKey string, fn func(ctx context.Context, tx Tx) error) error
	// ReadSnapshot runs fn against a consistent read-only view.
	ReadSnapshot(ctx context.Context, fn func(ctx context.Context, r Reader) error) error
}

// Reader is the read side shared by transactions and snapshots.
type Reader interface {
	Balance(ctx context.Context, userID string) (int, bool, error)
	OpenAttempt(ctx context.Context, userID, quizID string) (domain.QuizAttempt, bool, error)
	// OpenAttempts lists all attempts still open, oldest first.
	OpenAttempts(ctx context.Context) ([]domain.QuizAttempt, error)
	// CountAttempts counts every attempt of userID on quizID, open or closed.
	CountAttempts(ctx context.Context, userID, quizID string) (int, error)
	// ClosedAttempts lists closed attempts of a quiz, most recently completed
	// first. An empty userID selects all users; limit <= 0 means no limit.
	ClosedAttempts(ctx context.Context, quizID, userID string, limit int) ([]domain.QuizAttempt, error)
	Progress(ctx context.Context, userID, quizID string) (domain.QuizProgress, bool, error)
	Achievements(ctx context.Context, userID, quizID string) ([]domain.QuizAchievement, error)
	HasUnlock(ctx context.Context, userID string, kind domain.TargetKind, targetID string) (bool, error)
	// Completions lists the lessons userID has completed, oldest first.
	Completions(ctx context.Context, userID string) ([]domain.LessonCompletion, error)
}

// Tx is the write side of a transaction.
type Tx interface {
	Reader
	// EnsureAccount creates a zero balance account when none exists.
	EnsureAccount(ctx context.Context, userID string) error
	// AddPoints applies delta atomically and returns the new balance. It
	// fails with domain.ErrInsufficientFunds when the balance would go negative.
	AddPoints(ctx context.Context, userID string, delta int) (int, error)
	// InsertAttempt fails with domain.ErrAttemptInProgress when an open attempt exists.
	InsertAttempt(ctx context.Context, attempt domain.QuizAttempt) error
	CloseAttempt(ctx context.Context, attempt domain.QuizAttempt) error
	SaveProgress(ctx context.Context, progress domain.QuizProgress) error
	// InsertAchievement reports false when the (user, quiz, type) row already exists.
	InsertAchievement(ctx context.Context, achievement domain.QuizAchievement) (bool, error)
	// InsertUnlock reports false when the (user, kind, target) row already exists.
	InsertUnlock(ctx context.Context, unlock domain.Unlock) (bool, error)
	// InsertCompletion reports false when the (user, lesson) row already exists.
	InsertCompletion(ctx context.Context, completion domain.LessonCompletion) (bool, error)
}

// SubmissionCache remembers submit results by idempotency key.
type SubmissionCache interface {
	Get(ctx context.Context, key string) (domain.SubmitResult, bool, error)
	Put(ctx context.Context, key string, result domain.SubmitResult, ttl time.Duration) error
}
