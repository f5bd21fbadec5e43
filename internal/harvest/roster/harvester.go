// Package roster keeps the local politician roster covering every target
// state.
package roster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/harvest"
	"github.com/vietddude/harvester/internal/harvest/metrics"
	"github.com/vietddude/harvester/internal/harvest/throttle"
	"github.com/vietddude/harvester/internal/infra/storage"
)

const endpoint = "roster"

// Source fetches the legislators of a state.
type Source interface {
	Roster(ctx context.Context, state string) ([]domain.Record, error)
}

// Harvester fills the Politicians table one state at a time.
type Harvester struct {
	source Source
	store  storage.TableStore
	caller throttle.Caller
	table  *domain.Table
	log    *slog.Logger
}

// New creates a harvester over table, which may be nil when nothing has been
// stored yet.
func New(
	source Source,
	store storage.TableStore,
	caller throttle.Caller,
	table *domain.Table,
	log *slog.Logger,
) *Harvester {
	if log == nil {
		log = slog.Default()
	}
	return &Harvester{
		source: source,
		store:  store,
		caller: caller,
		table:  table,
		log:    log,
	}
}

// Table returns the current roster, nil if it was never created.
func (h *Harvester) Table() *domain.Table {
	return h.table
}

// EnsureState fetches the roster of state unless some local row's office
// already starts with it. A failed call is logged and skipped; the returned
// error is non-nil only when the session must stop.
func (h *Harvester) EnsureState(
	ctx context.Context,
	b throttle.Backoff,
	state string,
) (harvest.Result, throttle.Backoff, error) {
	res := harvest.Result{Unit: domain.StateUnit(state)}

	if h.table != nil && domain.RosterHasState(h.table, state) {
		res.Outcome = harvest.OutcomeCached
		return res, b, nil
	}

	records, b, err := throttle.Invoke(ctx, h.caller, b, endpoint,
		func(ctx context.Context) ([]domain.Record, error) {
			return h.source.Roster(ctx, state)
		})
	if err != nil {
		if harvest.Fatal(ctx, err) {
			return res, b, err
		}
		h.log.Warn("Could not load politicians for state, skipping", "state", state, "next_delay", b.Current)
		h.log.Error("Roster fetch failed", "state", state, "error", err)
		res.Outcome = harvest.OutcomeFailed
		res.Err = err
		return res, b, nil
	}

	if len(records) == 0 {
		h.log.Debug("Roster fetch returned no records", "state", state)
		res.Outcome = harvest.OutcomeEmpty
		return res, b, nil
	}

	rows := make([]domain.Row, len(records))
	for i, rec := range records {
		rows[i] = domain.Project(rec, domain.RosterSchema)
	}

	if h.table == nil {
		h.table = domain.NewRoster()
	}
	added := h.table.Merge(rows)
	if err := h.store.Save(ctx, h.table); err != nil {
		return res, b, fmt.Errorf("save %s after state %s: %w", h.table.Name, state, err)
	}

	metrics.RowsAppended.WithLabelValues(string(domain.TablePoliticians)).Add(float64(added))
	metrics.TableRows.WithLabelValues(string(domain.TablePoliticians)).Set(float64(h.table.Len()))
	h.log.Debug("Stored roster", "state", state, "records", len(records), "added", added)

	res.Outcome = harvest.OutcomeFetched
	res.Rows = added
	return res, b, nil
}
