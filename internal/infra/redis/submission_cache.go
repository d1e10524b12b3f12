package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"skillzone-service/internal/domain"
)

// SubmissionCache keeps submit results in Redis so a retried submit with the
// same idempotency key can be answered from any instance.
type SubmissionCache struct {
	client *redis.Client
}

func NewSubmissionCache(client *redis.Client) *SubmissionCache {
	return &SubmissionCache{client: client}
}

func (c *SubmissionCache) Get(ctx context.Context, key string) (domain.SubmitResult, bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SubmitResult{}, false, nil
	}
	if err != nil {
		return domain.SubmitResult{}, false, err
	}
	var result domain.SubmitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.SubmitResult{}, false, err
	}
	return result, true, nil
}

// Put stores result under key unless a result is already there; the first
// stored result wins.
func (c *SubmissionCache) Put(ctx context.Context, key string, result domain.SubmitResult, ttl time.Duration) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.SetNX(ctx, c.key(key), raw, ttl).Err()
}

func (c *SubmissionCache) key(key string) string {
	return "replay:" + key
}
