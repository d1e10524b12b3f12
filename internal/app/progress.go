package app

import (
	"context"
	"time"

	"skillzone-service/internal/domain"
)

// recordProgress folds a closed attempt into the (user, quiz) aggregate.
// best score, attempt count and time spent never decrease; completed never
// flips back to false.
func recordProgress(ctx context.Context, tx Tx, attempt domain.QuizAttempt, spent time.Duration, now time.Time) (domain.QuizProgress, error) {
	progress, ok, err := tx.Progress(ctx, attempt.UserID, attempt.QuizID)
	if err != nil {
		return domain.QuizProgress{}, err
	}
	if !ok {
		progress = domain.QuizProgress{UserID: attempt.UserID, QuizID: attempt.QuizID}
	}

	progress.AttemptsCount++
	if spent > 0 {
		progress.TotalTimeSpent += int(spent / time.Second)
	}
	last := now
	progress.LastAttemptDate = &last
	if attempt.Score > progress.BestScore {
		progress.BestScore = attempt.Score
	}
	progress.Completed = progress.Completed || attempt.IsPassed

	if err := tx.SaveProgress(ctx, progress); err != nil {
		return domain.QuizProgress{}, err
	}
	return progress, nil
}
