package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"skillzone-service/internal/app"
	"skillzone-service/internal/domain"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

// OpenDB opens a bun handle over the pgdriver connector.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Store is the transactional progress store. Each WithinTx call runs in one
// bun transaction that first takes a transaction-scoped advisory lock on the
// lock key, so calls sharing a key are serialized across instances.
type Store struct {
	db         *bun.DB
	log        logrus.FieldLogger
	maxRetries uint64
}

func NewStore(db *bun.DB, log logrus.FieldLogger) *Store {
	return &Store{db: db, log: log, maxRetries: 5}
}

func (s *Store) WithinTx(ctx context.Context, lockKey string, fn func(ctx context.Context, tx app.Tx) error) error {
	op := func() error {
		err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if lockKey != "" {
				if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", lockKey); err != nil {
					return fmt.Errorf("advisory lock: %w", err)
				}
			}
			return fn(ctx, &storeTx{db: tx})
		})
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond
	b := backoff.WithContext(backoff.WithMaxRetries(policy, s.maxRetries), ctx)

	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		s.log.WithError(err).WithFields(logrus.Fields{
			"lock_key": lockKey,
			"wait":     wait,
		}).Debug("retrying transaction")
	})
}

func (s *Store) ReadSnapshot(ctx context.Context, fn func(ctx context.Context, r app.Reader) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	return s.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &storeTx{db: tx})
	})
}

func retryable(err error) bool {
	switch sqlState(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	}
	return false
}

func sqlState(err error) string {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C')
	}
	return ""
}

type storeTx struct {
	db bun.IDB
}

func (t *storeTx) Balance(ctx context.Context, userID string) (int, bool, error) {
	var row accountRow
	err := t.db.NewSelect().Model(&row).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("select balance: %w", err)
	}
	return row.Balance, true, nil
}

func (t *storeTx) OpenAttempt(ctx context.Context, userID, quizID string) (domain.QuizAttempt, bool, error) {
	var row attemptRow
	err := t.db.NewSelect().Model(&row).
		Where("user_id = ?", userID).
		Where("quiz_id = ?", quizID).
		Where("completed_at IS NULL").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizAttempt{}, false, nil
	}
	if err != nil {
		return domain.QuizAttempt{}, false, fmt.Errorf("select open attempt: %w", err)
	}
	return row.toDomain(), true, nil
}

func (t *storeTx) OpenAttempts(ctx context.Context) ([]domain.QuizAttempt, error) {
	var rows []attemptRow
	if err := t.db.NewSelect().Model(&rows).Where("completed_at IS NULL").OrderExpr("started_at").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select open attempts: %w", err)
	}
	return toAttempts(rows), nil
}

func (t *storeTx) CountAttempts(ctx context.Context, userID, quizID string) (int, error) {
	n, err := t.db.NewSelect().Model((*attemptRow)(nil)).
		Where("user_id = ?", userID).
		Where("quiz_id = ?", quizID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

func (t *storeTx) ClosedAttempts(ctx context.Context, quizID, userID string, limit int) ([]domain.QuizAttempt, error) {
	var rows []attemptRow
	q := t.db.NewSelect().Model(&rows).
		Where("quiz_id = ?", quizID).
		Where("completed_at IS NOT NULL").
		OrderExpr("completed_at DESC, started_at DESC")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select closed attempts: %w", err)
	}
	return toAttempts(rows), nil
}

func (t *storeTx) Progress(ctx context.Context, userID, quizID string) (domain.QuizProgress, bool, error) {
	var row progressRow
	err := t.db.NewSelect().Model(&row).
		Where("user_id = ?", userID).
		Where("quiz_id = ?", quizID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizProgress{}, false, nil
	}
	if err != nil {
		return domain.QuizProgress{}, false, fmt.Errorf("select progress: %w", err)
	}
	return row.toDomain(), true, nil
}

func (t *storeTx) Achievements(ctx context.Context, userID, quizID string) ([]domain.QuizAchievement, error) {
	var rows []achievementRow
	err := t.db.NewSelect().Model(&rows).
		Where("user_id = ?", userID).
		Where("quiz_id = ?", quizID).
		OrderExpr("earned_at, type").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select achievements: %w", err)
	}
	out := make([]domain.QuizAchievement, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.QuizAchievement{
			UserID:      r.UserID,
			QuizID:      r.QuizID,
			Type:        domain.AchievementType(r.Type),
			BonusPoints: r.BonusPoints,
			EarnedAt:    r.EarnedAt.UTC(),
		})
	}
	return out, nil
}

func (t *storeTx) HasUnlock(ctx context.Context, userID string, kind domain.TargetKind, targetID string) (bool, error) {
	ok, err := t.db.NewSelect().Model((*unlockRow)(nil)).
		Where("user_id = ?", userID).
		Where("kind = ?", string(kind)).
		Where("target_id = ?", targetID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("select unlock: %w", err)
	}
	return ok, nil
}

func (t *storeTx) Completions(ctx context.Context, userID string) ([]domain.LessonCompletion, error) {
	var rows []completionRow
	err := t.db.NewSelect().Model(&rows).
		Where("user_id = ?", userID).
		OrderExpr("completed_at, lesson_id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select lesson completions: %w", err)
	}
	out := make([]domain.LessonCompletion, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.LessonCompletion{
			UserID:       r.UserID,
			LessonID:     r.LessonID,
			PointsEarned: r.PointsEarned,
			CompletedAt:  r.CompletedAt.UTC(),
		})
	}
	return out, nil
}

func (t *storeTx) EnsureAccount(ctx context.Context, userID string) error {
	_, err := t.db.NewInsert().
		Model(&accountRow{UserID: userID, UpdatedAt: time.Now().UTC()}).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// AddPoints applies delta in one conditional update; a row that would go
// negative is not matched and the call fails with ErrInsufficientFunds.
func (t *storeTx) AddPoints(ctx context.Context, userID string, delta int) (int, error) {
	var balance int
	err := t.db.NewUpdate().Model((*accountRow)(nil)).
		Set("balance = balance + ?", delta).
		Set("updated_at = now()").
		Where("user_id = ?", userID).
		Where("balance + ? >= 0", delta).
		Returning("balance").
		Scan(ctx, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}
	return balance, nil
}

func (t *storeTx) InsertAttempt(ctx context.Context, attempt domain.QuizAttempt) error {
	_, err := t.db.NewInsert().Model(attemptFromDomain(attempt)).Exec(ctx)
	if sqlState(err) == sqlStateUniqueViolation {
		return domain.ErrAttemptInProgress
	}
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (t *storeTx) CloseAttempt(ctx context.Context, attempt domain.QuizAttempt) error {
	res, err := t.db.NewUpdate().Model(attemptFromDomain(attempt)).
		Column("completed_at", "score", "is_passed").
		WherePK().
		Where("completed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("close attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNoOpenAttempt
	}
	return nil
}

func (t *storeTx) SaveProgress(ctx context.Context, progress domain.QuizProgress) error {
	row := &progressRow{
		UserID:          progress.UserID,
		QuizID:          progress.QuizID,
		BestScore:       progress.BestScore,
		AttemptsCount:   progress.AttemptsCount,
		TotalTimeSpent:  progress.TotalTimeSpent,
		LastAttemptDate: progress.LastAttemptDate,
		Completed:       progress.Completed,
	}
	_, err := t.db.NewInsert().Model(row).
		On("CONFLICT (user_id, quiz_id) DO UPDATE").
		Set("best_score = EXCLUDED.best_score").
		Set("attempts_count = EXCLUDED.attempts_count").
		Set("total_time_spent = EXCLUDED.total_time_spent").
		Set("last_attempt_date = EXCLUDED.last_attempt_date").
		Set("completed = EXCLUDED.completed").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (t *storeTx) InsertAchievement(ctx context.Context, a domain.QuizAchievement) (bool, error) {
	return t.insertOnce(ctx, "achievement", &achievementRow{
		UserID:      a.UserID,
		QuizID:      a.QuizID,
		Type:        string(a.Type),
		BonusPoints: a.BonusPoints,
		EarnedAt:    a.EarnedAt,
	})
}

func (t *storeTx) InsertUnlock(ctx context.Context, u domain.Unlock) (bool, error) {
	return t.insertOnce(ctx, "unlock", &unlockRow{
		UserID:      u.UserID,
		Kind:        string(u.Kind),
		TargetID:    u.TargetID,
		PointsSpent: u.PointsSpent,
		UnlockedAt:  u.UnlockedAt,
	})
}

func (t *storeTx) InsertCompletion(ctx context.Context, c domain.LessonCompletion) (bool, error) {
	return t.insertOnce(ctx, "lesson completion", &completionRow{
		UserID:       c.UserID,
		LessonID:     c.LessonID,
		PointsEarned: c.PointsEarned,
		CompletedAt:  c.CompletedAt,
	})
}

// insertOnce inserts model unless its primary key exists and reports whether
// a row was written.
func (t *storeTx) insertOnce(ctx context.Context, what string, model interface{}) (bool, error) {
	res, err := t.db.NewInsert().Model(model).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", what, err)
	}
	return n == 1, nil
}

func toAttempts(rows []attemptRow) []domain.QuizAttempt {
	out := make([]domain.QuizAttempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
