package opensecrets

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
)

// Budget guards the daily call quota of the API key.
type Budget interface {
	// Reserve claims one call or returns domain.ErrQuotaExhausted
	Reserve(ctx context.Context) error

	// Remaining returns the calls left today, or -1 when unlimited
	Remaining(ctx context.Context) (int, error)
}

// DailyBudget is an in-process Budget that resets at the next UTC midnight.
type DailyBudget struct {
	mu      sync.Mutex
	limit   int
	used    int
	resetAt time.Time
	now     func() time.Time
}

// NewDailyBudget creates a budget of limit calls per day; limit <= 0 means
// unlimited.
func NewDailyBudget(limit int) *DailyBudget {
	b := &DailyBudget{limit: limit, now: time.Now}
	b.resetAt = nextMidnight(b.now())
	return b
}

func (b *DailyBudget) Reserve(ctx context.Context) error {
	if b.limit <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	if b.used >= b.limit {
		return domain.ErrQuotaExhausted
	}
	b.used++
	return nil
}

func (b *DailyBudget) Remaining(ctx context.Context) (int, error) {
	if b.limit <= 0 {
		return -1, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return b.limit - b.used, nil
}

func (b *DailyBudget) rollover() {
	now := b.now()
	if now.Before(b.resetAt) {
		return
	}
	b.used = 0
	b.resetAt = nextMidnight(now)
}

func nextMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
}
