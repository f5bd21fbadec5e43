package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/harvester/internal/core/domain"
)

// FailedUnitRepo implements storage.FailedUnitRepository with a Redis hash
// keyed by the unit's string form.
type FailedUnitRepo struct {
	client *Client
}

// NewFailedUnitRepo creates a new Redis-backed failed unit repository.
func NewFailedUnitRepo(client *Client) *FailedUnitRepo {
	return &FailedUnitRepo{client: client}
}

// Record adds or updates the entry for unit, bumping its attempt count.
func (r *FailedUnitRepo) Record(ctx context.Context, unit domain.FetchUnit, runID string, cause error) error {
	key := r.client.failedKey()
	field := unit.String()

	var entry domain.FailedUnit
	data, err := r.client.rdb.HGet(ctx, key, field).Bytes()
	switch {
	case err == redis.Nil:
	case err != nil:
		return fmt.Errorf("hget failed: %w", err)
	default:
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("failed to unmarshal failed unit: %w", err)
		}
	}

	entry.Unit = unit
	entry.RunID = runID
	entry.Attempts++
	entry.LastAttempt = time.Now().UTC()
	if cause != nil {
		entry.Error = cause.Error()
	}

	data, err = json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal failed unit: %w", err)
	}
	if err := r.client.rdb.HSet(ctx, key, field, data).Err(); err != nil {
		return fmt.Errorf("hset failed: %w", err)
	}
	return nil
}

// Resolve removes the entry for unit.
func (r *FailedUnitRepo) Resolve(ctx context.Context, unit domain.FetchUnit) error {
	return r.client.rdb.HDel(ctx, r.client.failedKey(), unit.String()).Err()
}

// List returns all entries ordered by unit.
func (r *FailedUnitRepo) List(ctx context.Context) ([]domain.FailedUnit, error) {
	all, err := r.client.rdb.HGetAll(ctx, r.client.failedKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall failed: %w", err)
	}

	out := make([]domain.FailedUnit, 0, len(all))
	for field, data := range all {
		var entry domain.FailedUnit
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failed unit %s: %w", field, err)
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Unit.String() < out[j].Unit.String()
	})
	return out, nil
}
