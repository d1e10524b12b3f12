package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"skillzone-service/internal/domain"
)

type accountRow struct {
	bun.BaseModel `bun:"table:points_accounts,alias:pa"`

	UserID    string    `bun:"user_id,pk"`
	Balance   int       `bun:"balance,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:qa"`

	ID          string     `bun:"id,pk"`
	QuizID      string     `bun:"quiz_id,notnull"`
	UserID      string     `bun:"user_id,notnull"`
	StartedAt   time.Time  `bun:"started_at,notnull"`
	CompletedAt *time.Time `bun:"completed_at"`
	Score       float64    `bun:"score,notnull"`
	IsPassed    bool       `bun:"is_passed,notnull"`
}

func (r attemptRow) toDomain() domain.QuizAttempt {
	return domain.QuizAttempt{
		ID:          r.ID,
		QuizID:      r.QuizID,
		UserID:      r.UserID,
		StartedAt:   r.StartedAt.UTC(),
		CompletedAt: utcPtr(r.CompletedAt),
		Score:       r.Score,
		IsPassed:    r.IsPassed,
	}
}

func attemptFromDomain(a domain.QuizAttempt) *attemptRow {
	return &attemptRow{
		ID:          a.ID,
		QuizID:      a.QuizID,
		UserID:      a.UserID,
		StartedAt:   a.StartedAt,
		CompletedAt: a.CompletedAt,
		Score:       a.Score,
		IsPassed:    a.IsPassed,
	}
}

type progressRow struct {
	bun.BaseModel `bun:"table:quiz_progress,alias:qp"`

	UserID          string     `bun:"user_id,pk"`
	QuizID          string     `bun:"quiz_id,pk"`
	BestScore       float64    `bun:"best_score,notnull"`
	AttemptsCount   int        `bun:"attempts_count,notnull"`
	TotalTimeSpent  int        `bun:"total_time_spent,notnull"`
	LastAttemptDate *time.Time `bun:"last_attempt_date"`
	Completed       bool       `bun:"completed,notnull"`
}

func (r progressRow) toDomain() domain.QuizProgress {
	return domain.QuizProgress{
		UserID:          r.UserID,
		QuizID:          r.QuizID,
		BestScore:       r.BestScore,
		AttemptsCount:   r.AttemptsCount,
		TotalTimeSpent:  r.TotalTimeSpent,
		LastAttemptDate: utcPtr(r.LastAttemptDate),
		Completed:       r.Completed,
	}
}

type achievementRow struct {
	bun.BaseModel `bun:"table:quiz_achievements,alias:qach"`

	UserID      string    `bun:"user_id,pk"`
	QuizID      string    `bun:"quiz_id,pk"`
	Type        string    `bun:"type,pk"`
	BonusPoints int       `bun:"bonus_points,notnull"`
	EarnedAt    time.Time `bun:"earned_at,notnull"`
}

type unlockRow struct {
	bun.BaseModel `bun:"table:unlocks,alias:ul"`

	UserID      string    `bun:"user_id,pk"`
	Kind        string    `bun:"kind,pk"`
	TargetID    string    `bun:"target_id,pk"`
	PointsSpent int       `bun:"points_spent,notnull"`
	UnlockedAt  time.Time `bun:"unlocked_at,notnull"`
}

type completionRow struct {
	bun.BaseModel `bun:"table:lesson_completions,alias:lc"`

	UserID       string    `bun:"user_id,pk"`
	LessonID     string    `bun:"lesson_id,pk"`
	PointsEarned int       `bun:"points_earned,notnull"`
	CompletedAt  time.Time `bun:"completed_at,notnull"`
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
