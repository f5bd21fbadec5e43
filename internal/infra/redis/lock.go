package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock implements storage.RunLock across processes sharing one Redis.
type RunLock struct {
	client *Client
}

// NewRunLock creates a Redis-backed run lock.
func NewRunLock(client *Client) *RunLock {
	return &RunLock{client: client}
}

// Acquire attempts to take the lock for runID.
func (l *RunLock) Acquire(ctx context.Context, runID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.rdb.SetNX(ctx, l.client.lockKey(), runID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// Release drops the lock if runID still holds it.
func (l *RunLock) Release(ctx context.Context, runID string) error {
	if err := releaseScript.Run(ctx, l.client.rdb, []string{l.client.lockKey()}, runID).Err(); err != nil {
		return fmt.Errorf("release lock failed: %w", err)
	}
	return nil
}
