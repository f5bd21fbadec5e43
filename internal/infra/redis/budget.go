package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/harvester/internal/core/domain"
)

// CallBudget counts remote calls per UTC day in Redis, so the upstream daily
// quota is honoured across separate runs.
type CallBudget struct {
	client *Client
	limit  int
	now    func() time.Time
}

// NewCallBudget creates a budget of limit calls per day; limit <= 0 means
// unlimited.
func NewCallBudget(client *Client, limit int) *CallBudget {
	return &CallBudget{client: client, limit: limit, now: time.Now}
}

// Reserve claims one call or returns domain.ErrQuotaExhausted.
func (b *CallBudget) Reserve(ctx context.Context) error {
	if b.limit <= 0 {
		return nil
	}
	key := b.client.callsKey(b.now().UTC())

	n, err := b.client.rdb.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("incr failed: %w", err)
	}
	if n == 1 {
		// Keys outlive their day only long enough to be inspected.
		if err := b.client.rdb.Expire(ctx, key, 48*time.Hour).Err(); err != nil {
			return fmt.Errorf("expire failed: %w", err)
		}
	}
	if n > int64(b.limit) {
		if err := b.client.rdb.Decr(ctx, key).Err(); err != nil {
			return fmt.Errorf("decr failed: %w", err)
		}
		return domain.ErrQuotaExhausted
	}
	return nil
}

// Remaining returns the calls left today, or -1 when unlimited.
func (b *CallBudget) Remaining(ctx context.Context) (int, error) {
	if b.limit <= 0 {
		return -1, nil
	}
	n, err := b.client.rdb.Get(ctx, b.client.callsKey(b.now().UTC())).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("get failed: %w", err)
	}
	if left := b.limit - n; left > 0 {
		return left, nil
	}
	return 0, nil
}
