package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrLessonNotFound indicates the lesson does not exist in the catalog.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrCourseNotFound indicates the course does not exist in the catalog.
	ErrCourseNotFound = errors.New("course not found")
	// ErrInvalidQuiz is returned when catalog content fails validation.
	ErrInvalidQuiz = errors.New("invalid quiz content")

	// ErrAttemptLimitExceeded is returned when the user used up max_attempts.
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	// ErrNoOpenAttempt is returned when submitting without a started attempt.
	ErrNoOpenAttempt = errors.New("no open attempt")
	// ErrTimeLimitExceeded is returned after an expired attempt has been closed as failed.
	ErrTimeLimitExceeded = errors.New("time limit exceeded")
	// ErrAttemptInProgress signals a violation of the one-open-attempt constraint.
	ErrAttemptInProgress = errors.New("attempt already in progress")

	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient points")
	// ErrInvalidAmount is returned for negative credit or debit amounts.
	ErrInvalidAmount = errors.New("amount must not be negative")

	// ErrAlreadyUnlocked is returned when the user already unlocked the target.
	ErrAlreadyUnlocked = errors.New("already unlocked")
	// ErrNotGated is returned for content that does not need unlocking.
	ErrNotGated = errors.New("content is not gated")
	// ErrLessonLocked is returned when completing a lesson that was never unlocked.
	ErrLessonLocked = errors.New("lesson not unlocked")
	// ErrAlreadyCompleted is returned when a lesson completion already exists.
	ErrAlreadyCompleted = errors.New("lesson already completed")
)
