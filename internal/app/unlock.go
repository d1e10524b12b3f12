package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"skillzone-service/internal/domain"
)

// UnlockGate spends points on gated lessons and courses.
type UnlockGate struct {
	store   Store
	catalog Catalog
	now     func() time.Time
	log     logrus.FieldLogger
}

func NewUnlockGate(store Store, catalog Catalog, opts ...Option) *UnlockGate {
	o := buildOptions(opts)
	return &UnlockGate{store: store, catalog: catalog, now: o.now, log: o.log}
}

func unlockLockKey(userID string, kind domain.TargetKind, targetID string) string {
	return "unlock:" + userID + ":" + string(kind) + ":" + targetID
}

// UnlockLesson spends lesson.PointsRequired once. Free lessons get a zero-spend record.
func (g *UnlockGate) UnlockLesson(ctx context.Context, userID, lessonID string) (domain.UnlockResult, error) {
	lesson, err := g.catalog.GetLesson(ctx, lessonID)
	if err != nil {
		return domain.UnlockResult{}, err
	}
	return g.unlock(ctx, userID, domain.TargetLesson, lesson.ID, lesson.PointsRequired)
}

// UnlockCourse spends course.PointsRequired once. Only HARD courses can be unlocked.
func (g *UnlockGate) UnlockCourse(ctx context.Context, userID, courseID string) (domain.UnlockResult, error) {
	course, err := g.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return domain.UnlockResult{}, err
	}
	if course.Type != domain.CourseHard {
		return domain.UnlockResult{}, domain.ErrNotGated
	}
	return g.unlock(ctx, userID, domain.TargetCourse, course.ID, course.PointsRequired)
}

func (g *UnlockGate) unlock(ctx context.Context, userID string, kind domain.TargetKind, targetID string, cost int) (domain.UnlockResult, error) {
	result := domain.UnlockResult{TargetID: targetID, Kind: kind, PointsSpent: cost}
	err := g.store.WithinTx(ctx, unlockLockKey(userID, kind, targetID), func(ctx context.Context, tx Tx) error {
		exists, err := tx.HasUnlock(ctx, userID, kind, targetID)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrAlreadyUnlocked
		}

		var balance int
		if cost > 0 {
			if balance, err = debit(ctx, tx, userID, cost); err != nil {
				return err
			}
		} else {
			if err := tx.EnsureAccount(ctx, userID); err != nil {
				return err
			}
			if balance, _, err = tx.Balance(ctx, userID); err != nil {
				return err
			}
		}

		inserted, err := tx.InsertUnlock(ctx, domain.Unlock{
			UserID:      userID,
			Kind:        kind,
			TargetID:    targetID,
			PointsSpent: cost,
			UnlockedAt:  g.now(),
		})
		if err != nil {
			return err
		}
		if !inserted {
			return domain.ErrAlreadyUnlocked
		}
		result.RemainingPoints = balance
		return nil
	})
	if err != nil {
		return domain.UnlockResult{}, err
	}
	g.log.WithFields(logrus.Fields{
		"user_id": userID,
		"kind":    kind,
		"target":  targetID,
		"spent":   cost,
	}).Info("content unlocked")
	return result, nil
}

// CompleteLesson records a finished lesson once and credits its reward once.
func (g *UnlockGate) CompleteLesson(ctx context.Context, userID, lessonID string) (domain.LessonCompletionResult, error) {
	lesson, err := g.catalog.GetLesson(ctx, lessonID)
	if err != nil {
		return domain.LessonCompletionResult{}, err
	}

	result := domain.LessonCompletionResult{LessonID: lesson.ID, PointsEarned: lesson.PointsReward}
	err = g.store.WithinTx(ctx, "lesson:"+userID+":"+lesson.ID, func(ctx context.Context, tx Tx) error {
		if lesson.Gated() {
			unlocked, err := tx.HasUnlock(ctx, userID, domain.TargetLesson, lesson.ID)
			if err != nil {
				return err
			}
			if !unlocked {
				return domain.ErrLessonLocked
			}
		}
		inserted, err := tx.InsertCompletion(ctx, domain.LessonCompletion{
			UserID:       userID,
			LessonID:     lesson.ID,
			PointsEarned: lesson.PointsReward,
			CompletedAt:  g.now(),
		})
		if err != nil {
			return err
		}
		if !inserted {
			return domain.ErrAlreadyCompleted
		}
		result.TotalPoints, err = credit(ctx, tx, userID, lesson.PointsReward)
		return err
	})
	if err != nil {
		return domain.LessonCompletionResult{}, err
	}
	return result, nil
}

// LessonAccess reports whether userID may open the lesson.
func (g *UnlockGate) LessonAccess(ctx context.Context, userID, lessonID string) (bool, error) {
	lesson, err := g.catalog.GetLesson(ctx, lessonID)
	if err != nil {
		return false, err
	}
	if !lesson.Gated() {
		return true, nil
	}
	return g.hasUnlock(ctx, userID, domain.TargetLesson, lesson.ID)
}

// CourseAccess reports whether userID may open the course.
func (g *UnlockGate) CourseAccess(ctx context.Context, userID, courseID string) (bool, error) {
	course, err := g.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return false, err
	}
	if !course.Gated() {
		return true, nil
	}
	return g.hasUnlock(ctx, userID, domain.TargetCourse, course.ID)
}

func (g *UnlockGate) hasUnlock(ctx context.Context, userID string, kind domain.TargetKind, targetID string) (bool, error) {
	var ok bool
	err := g.store.ReadSnapshot(ctx, func(ctx context.Context, r Reader) error {
		var err error
		ok, err = r.HasUnlock(ctx, userID, kind, targetID)
		return err
	})
	return ok, err
}
