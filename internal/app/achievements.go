package app

import (
	"context"
	"time"

	"skillzone-service/internal/domain"
)

// AchievementBonus is the bonus credited when a badge is first earned.
var AchievementBonus = map[domain.AchievementType]int{
	domain.AchievementPerfect: 50,
	domain.AchievementSpeed:   30,
	domain.AchievementStreak:  40,
	domain.AchievementMaster:  100,
}

const (
	streakLength    = 3
	masterThreshold = 3
)

// AchievementOutcome lists the badges newly earned by one evaluation.
type AchievementOutcome struct {
	Earned []domain.AchievementType
	Bonus  int
}

// AchievementEvaluator awards one-time quiz badges after a graded submission.
type AchievementEvaluator struct {
	speedRequiresPass bool
	now               func() time.Time
}

func NewAchievementEvaluator(opts ...Option) *AchievementEvaluator {
	o := buildOptions(opts)
	return &AchievementEvaluator{speedRequiresPass: o.speedRequiresPass, now: o.now}
}

// Evaluate checks PERFECT, FAST, STREAK and MASTER in that order against the
// just-closed attempt and the user's history, inserts each newly met badge
// under the (user, quiz, type) uniqueness guard and credits the summed bonus
// in one ledger step. Badges already held are skipped without a bonus.
func (e *AchievementEvaluator) Evaluate(ctx context.Context, tx Tx, quiz domain.Quiz, attempt domain.QuizAttempt) (AchievementOutcome, error) {
	out := AchievementOutcome{Earned: []domain.AchievementType{}}

	existing, err := tx.Achievements(ctx, attempt.UserID, attempt.QuizID)
	if err != nil {
		return out, err
	}
	held := make(map[domain.AchievementType]bool, len(existing))
	for _, a := range existing {
		held[a.Type] = true
	}

	award := func(t domain.AchievementType) error {
		if held[t] {
			return nil
		}
		inserted, err := tx.InsertAchievement(ctx, domain.QuizAchievement{
			UserID:      attempt.UserID,
			QuizID:      attempt.QuizID,
			Type:        t,
			BonusPoints: AchievementBonus[t],
			EarnedAt:    e.now(),
		})
		if err != nil {
			return err
		}
		held[t] = true
		if inserted {
			out.Earned = append(out.Earned, t)
			out.Bonus += AchievementBonus[t]
		}
		return nil
	}

	if attempt.Score == 100 {
		if err := award(domain.AchievementPerfect); err != nil {
			return out, err
		}
	}

	if attempt.Duration() < quiz.TimeLimitDuration()/2 && (attempt.IsPassed || !e.speedRequiresPass) {
		if err := award(domain.AchievementSpeed); err != nil {
			return out, err
		}
	}

	recent, err := tx.ClosedAttempts(ctx, attempt.QuizID, attempt.UserID, streakLength)
	if err != nil {
		return out, err
	}
	if allPassed(recent, streakLength) {
		if err := award(domain.AchievementStreak); err != nil {
			return out, err
		}
	}

	if len(held) >= masterThreshold {
		if err := award(domain.AchievementMaster); err != nil {
			return out, err
		}
	}

	if out.Bonus > 0 {
		if _, err := credit(ctx, tx, attempt.UserID, out.Bonus); err != nil {
			return out, err
		}
	}
	return out, nil
}

func allPassed(attempts []domain.QuizAttempt, n int) bool {
	if len(attempts) < n {
		return false
	}
	for _, a := range attempts[:n] {
		if !a.IsPassed {
			return false
		}
	}
	return true
}
