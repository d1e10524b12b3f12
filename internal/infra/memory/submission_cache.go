package memory

import (
	"context"
	"sync"
	"time"

	"skillzone-service/internal/domain"
)

// SubmissionCache is an in-memory implementation of app.SubmissionCache.
type SubmissionCache struct {
	mu      sync.Mutex
	clock   func() time.Time
	entries map[string]cachedSubmission
}

type cachedSubmission struct {
	result    domain.SubmitResult
	expiresAt time.Time
}

func NewSubmissionCache() *SubmissionCache {
	return &SubmissionCache{
		clock:   time.Now,
		entries: make(map[string]cachedSubmission),
	}
}

func (c *SubmissionCache) Get(_ context.Context, key string) (domain.SubmitResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return domain.SubmitResult{}, false, nil
	}
	if entry.expired(c.clock()) {
		delete(c.entries, key)
		return domain.SubmitResult{}, false, nil
	}
	return entry.result, true, nil
}

// Put stores result under key unless a live entry already holds it; the
// first write wins. A non-positive ttl keeps it until process exit. Expired
// entries are pruned on every write.
func (c *SubmissionCache) Put(_ context.Context, key string, result domain.SubmitResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	for k, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, k)
		}
	}
	if _, ok := c.entries[key]; ok {
		return nil
	}

	entry := cachedSubmission{result: result}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

func (e cachedSubmission) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}
