// Package sector keeps the local sector-contribution table covering every
// target (candidate, cycle) pair.
package sector

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/harvest"
	"github.com/vietddude/harvester/internal/harvest/metrics"
	"github.com/vietddude/harvester/internal/harvest/throttle"
	"github.com/vietddude/harvester/internal/infra/storage"
)

const endpoint = "sectors"

// Source fetches a candidate's contributions by sector for one cycle.
type Source interface {
	SectorBreakdown(ctx context.Context, candidateID string, cycle int) ([]domain.Record, error)
}

// Harvester fills the Sectors table one (candidate, cycle) pair at a time.
type Harvester struct {
	source Source
	store  storage.TableStore
	caller throttle.Caller
	table  *domain.Table
	log    *slog.Logger
}

// New creates a harvester over table, which may be nil.
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

// Table returns the current sector table, nil if it was never created.
func (h *Harvester) Table() *domain.Table {
	return h.table
}

// EnsureSectors fetches the breakdown for (candidateID, cycle) unless a local
// row already has exactly that pair.
func (h *Harvester) EnsureSectors(
	ctx context.Context,
	b throttle.Backoff,
	candidateID string,
	cycle int,
) (harvest.Result, throttle.Backoff, error) {
	res := harvest.Result{Unit: domain.SectorUnit(candidateID, cycle)}

	if h.table != nil && domain.SectorsHaveUnit(h.table, candidateID, cycle) {
		res.Outcome = harvest.OutcomeCached
		return res, b, nil
	}

	records, b, err := throttle.Invoke(ctx, h.caller, b, endpoint,
		func(ctx context.Context) ([]domain.Record, error) {
			return h.source.SectorBreakdown(ctx, candidateID, cycle)
		})
	if err != nil {
		if harvest.Fatal(ctx, err) {
			return res, b, err
		}
		h.log.Warn("Could not load sectors, skipping",
			"candidate_id", candidateID, "cycle", cycle, "next_delay", b.Current)
		h.log.Error("Sector fetch failed", "candidate_id", candidateID, "cycle", cycle, "error", err)
		res.Outcome = harvest.OutcomeFailed
		res.Err = err
		return res, b, nil
	}

	if len(records) == 0 {
		h.log.Debug("Sector fetch returned no records", "candidate_id", candidateID, "cycle", cycle)
		res.Outcome = harvest.OutcomeEmpty
		return res, b, nil
	}

	unit := map[string]string{
		domain.ColumnCandidateID: candidateID,
		domain.ColumnCycle:       strconv.Itoa(cycle),
	}
	rows := make([]domain.Row, len(records))
	for i, rec := range records {
		rows[i] = domain.Project(rec.With(unit), domain.SectorSchema)
	}

	if h.table == nil {
		h.table = domain.NewSectors()
	}
	added := h.table.Merge(rows)
	if err := h.store.Save(ctx, h.table); err != nil {
		return res, b, fmt.Errorf("save %s after %s: %w", h.table.Name, res.Unit, err)
	}

	metrics.RowsAppended.WithLabelValues(string(domain.TableSectors)).Add(float64(added))
	metrics.TableRows.WithLabelValues(string(domain.TableSectors)).Set(float64(h.table.Len()))

	res.Outcome = harvest.OutcomeFetched
	res.Rows = added
	return res, b, nil
}
