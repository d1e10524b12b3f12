package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"skillzone-service/internal/domain"
)

func TestSubmissionCacheFirstWriteWins(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewSubmissionCache(newClient(mr))
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	first := domain.SubmitResult{Score: 100, IsPassed: true, Achievements: []domain.AchievementType{domain.AchievementPerfect}}
	if err := cache.Put(ctx, "k", first, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := cache.Put(ctx, "k", domain.SubmitResult{Score: 0}, time.Minute); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, ok, err := cache.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if got.Score != 100 || len(got.Achievements) != 1 {
		t.Fatalf("expected first result, got %+v", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := cache.Get(ctx, "k"); ok {
		t.Fatalf("expected entry to expire")
	}
}
