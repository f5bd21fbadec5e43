// Package harvest holds the types shared by the roster and sector
// harvesters and the session that drives them.
package harvest

import (
	"context"
	"errors"

	"github.com/vietddude/harvester/internal/core/domain"
)

// Outcome is what happened to a fetch unit.
type Outcome string

const (
	// OutcomeCached means local data already covered the unit; no call was made.
	OutcomeCached Outcome = "cached"
	// OutcomeFetched means rows were fetched, merged and persisted.
	OutcomeFetched Outcome = "fetched"
	// OutcomeEmpty means the call succeeded with zero records. Nothing is
	// recorded, so the unit is fetched again on the next run.
	OutcomeEmpty Outcome = "empty"
	// OutcomeFailed means the call failed and the unit was skipped.
	OutcomeFailed Outcome = "failed"
)

// Result reports one ensure call.
type Result struct {
	Unit    domain.FetchUnit
	Outcome Outcome
	Rows    int
	Err     error
}

// Fatal reports whether err must stop the session instead of skipping the
// unit: the session was cancelled, or no further remote calls can succeed.
func Fatal(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	return ctx.Err() != nil || errors.Is(err, domain.ErrQuotaExhausted)
}
