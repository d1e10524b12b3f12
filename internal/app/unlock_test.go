package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"skillzone-service/internal/domain"
)

func TestUnlockLessonInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	if _, err := env.gate.UnlockLesson(ctx, "u1", "variables"); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	ok, err := env.gate.LessonAccess(ctx, "u1", "variables")
	if err != nil || ok {
		t.Fatalf("expected no access after failed unlock, ok=%v err=%v", ok, err)
	}
}

func TestUnlockLessonOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	if _, err := env.ledger.Credit(ctx, "u1", 60); err != nil {
		t.Fatalf("credit: %v", err)
	}
	res, err := env.gate.UnlockLesson(ctx, "u1", "variables")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if res.PointsSpent != 50 || res.RemainingPoints != 10 || res.Kind != domain.TargetLesson {
		t.Fatalf("unexpected unlock result %+v", res)
	}

	if _, err := env.gate.UnlockLesson(ctx, "u1", "variables"); !errors.Is(err, domain.ErrAlreadyUnlocked) {
		t.Fatalf("expected already unlocked, got %v", err)
	}
	if account, _ := env.ledger.Account(ctx, "u1"); account.Balance != 10 {
		t.Fatalf("expected second unlock to spend nothing, balance %d", account.Balance)
	}
	if ok, _ := env.gate.LessonAccess(ctx, "u1", "variables"); !ok {
		t.Fatalf("expected access after unlock")
	}
}

func TestUnlockCourseRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	if _, err := env.gate.UnlockCourse(ctx, "u1", "leadership"); !errors.Is(err, domain.ErrNotGated) {
		t.Fatalf("expected soft course to be rejected, got %v", err)
	}
	res, err := env.gate.UnlockCourse(ctx, "u1", "free-hard")
	if err != nil {
		t.Fatalf("free unlock: %v", err)
	}
	if res.PointsSpent != 0 || res.RemainingPoints != 0 {
		t.Fatalf("expected zero-spend unlock, got %+v", res)
	}
	if _, err := env.gate.UnlockCourse(ctx, "u1", "missing"); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Fatalf("expected course not found, got %v", err)
	}
	if ok, _ := env.gate.CourseAccess(ctx, "u1", "leadership"); !ok {
		t.Fatalf("soft courses are always accessible")
	}
}

func TestConcurrentCourseUnlockSpendsOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	if _, err := env.ledger.Credit(ctx, "u1", 100); err != nil {
		t.Fatalf("credit: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok, dup int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.gate.UnlockCourse(ctx, "u1", "python")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrAlreadyUnlocked):
				dup++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || dup != 9 {
		t.Fatalf("expected one unlock, got ok=%d dup=%d", ok, dup)
	}
	if account, _ := env.ledger.Account(ctx, "u1"); account.Balance != 50 {
		t.Fatalf("expected 50 left, got %d", account.Balance)
	}
}

func TestCompleteLesson(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	if _, err := env.gate.CompleteLesson(ctx, "u1", "variables"); !errors.Is(err, domain.ErrLessonLocked) {
		t.Fatalf("expected locked lesson, got %v", err)
	}

	res, err := env.gate.CompleteLesson(ctx, "u1", "intro")
	if err != nil {
		t.Fatalf("complete intro: %v", err)
	}
	if res.PointsEarned != 10 || res.TotalPoints != 10 {
		t.Fatalf("unexpected completion %+v", res)
	}
	if _, err := env.gate.CompleteLesson(ctx, "u1", "intro"); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}

	_, _ = env.ledger.Credit(ctx, "u1", 40)
	if _, err := env.gate.UnlockLesson(ctx, "u1", "variables"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	res, err = env.gate.CompleteLesson(ctx, "u1", "variables")
	if err != nil {
		t.Fatalf("complete variables: %v", err)
	}
	if res.TotalPoints != 15 {
		t.Fatalf("expected 15 after spending 50 and earning 15, got %d", res.TotalPoints)
	}
}
