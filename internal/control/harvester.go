package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/harvester/internal/core/config"
	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/harvest"
	"github.com/vietddude/harvester/internal/harvest/health"
	"github.com/vietddude/harvester/internal/harvest/metrics"
	"github.com/vietddude/harvester/internal/harvest/roster"
	"github.com/vietddude/harvester/internal/harvest/sector"
	"github.com/vietddude/harvester/internal/harvest/throttle"
	"github.com/vietddude/harvester/internal/infra/opensecrets"
	redisclient "github.com/vietddude/harvester/internal/infra/redis"
	"github.com/vietddude/harvester/internal/infra/storage"
)

var (
	// ErrStatesMissing is returned when All states are requested but the
	// States reference table has never been seeded.
	ErrStatesMissing = errors.New("States reference table not found; run seed-states first")

	// ErrLocked is returned when another run holds the run lock.
	ErrLocked = errors.New("another harvest run is in progress")
)

// Source is the remote API as the harvesters see it.
type Source interface {
	roster.Source
	sector.Source
}

// Harvester is the main application struct: it owns the store, the remote
// source and the cross-run ledger, and runs one session per Run call.
type Harvester struct {
	cfg    *config.AppConfig
	store  storage.TableStore
	ledger *Ledger
	source Source
	caller throttle.Caller
	now    func() time.Time
	log    *slog.Logger
}

// Option customizes a Harvester.
type Option func(*Harvester)

// WithStore replaces the configured table store.
func WithStore(store storage.TableStore) Option {
	return func(h *Harvester) { h.store = store }
}

// WithSource replaces the OpenSecrets client.
func WithSource(source Source) Option {
	return func(h *Harvester) { h.source = source }
}

// WithCaller replaces the throttle's sleep implementation.
func WithCaller(caller throttle.Caller) Option {
	return func(h *Harvester) { h.caller = caller }
}

// WithClock replaces time.Now for cycle defaults.
func WithClock(now func() time.Time) Option {
	return func(h *Harvester) { h.now = now }
}

// NewHarvester creates a Harvester with all dependencies initialized.
func NewHarvester(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*Harvester, error) {
	h := &Harvester{
		cfg: cfg,
		now: time.Now,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	// 1. Storage
	if h.store == nil {
		store, err := OpenStore(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		h.store = store
	}

	// 2. Lock, failed-unit ledger
	h.ledger = OpenLedger(cfg.Redis)

	// 3. Remote source with its daily budget
	if h.source == nil {
		var budget opensecrets.Budget
		if cfg.API.DailyQuota > 0 {
			if h.ledger.Redis != nil {
				budget = redisclient.NewCallBudget(h.ledger.Redis, cfg.API.DailyQuota)
			} else {
				budget = opensecrets.NewDailyBudget(cfg.API.DailyQuota)
			}
		}
		h.source = opensecrets.NewClient(opensecrets.Config{
			APIKey:  cfg.API.Key,
			BaseURL: cfg.API.BaseURL,
			Timeout: cfg.API.Timeout,
		}, budget)
	}

	return h, nil
}

// Store returns the table store.
func (h *Harvester) Store() storage.TableStore {
	return h.store
}

// Ledger returns the cross-run bookkeeping.
func (h *Harvester) Ledger() *Ledger {
	return h.ledger
}

// Close releases the store and the ledger.
func (h *Harvester) Close() error {
	return errors.Join(h.store.Close(), h.ledger.Close())
}

// Run executes one harvest session. Progress lines go to progress unless it
// is nil. Per-unit failures are skipped and reported in the summary; the
// returned error is set only for preconditions and session-fatal failures.
func (h *Harvester) Run(ctx context.Context, progress io.Writer) (Summary, error) {
	runID := uuid.NewString()
	log := h.log.With("run_id", runID)

	ok, err := h.ledger.Lock.Acquire(ctx, runID, h.cfg.Harvest.LockTTL)
	if err != nil {
		return Summary{}, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return Summary{}, ErrLocked
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.ledger.Lock.Release(releaseCtx, runID); err != nil {
			log.Warn("Failed to release run lock", "error", err)
		}
	}()

	states, err := h.cfg.Harvest.States.Resolve(func() ([]string, error) {
		t, err := storage.LoadOrNil(ctx, h.store, domain.TableStates, domain.StatesSchema)
		if err != nil {
			return nil, fmt.Errorf("load states: %w", err)
		}
		if t == nil {
			return nil, ErrStatesMissing
		}
		return domain.StateCodes(t), nil
	})
	if err != nil {
		return Summary{}, err
	}

	cycles, err := h.cfg.Harvest.Cycles.Resolve(h.now())
	if err != nil {
		return Summary{}, fmt.Errorf("resolve cycles: %w", err)
	}

	rosterTable, err := storage.LoadOrNil(ctx, h.store, domain.TablePoliticians, domain.RosterSchema)
	if err != nil {
		return Summary{}, fmt.Errorf("load politicians: %w", err)
	}
	sectorTable, err := storage.LoadOrNil(ctx, h.store, domain.TableSectors, domain.SectorSchema)
	if err != nil {
		return Summary{}, fmt.Errorf("load sectors: %w", err)
	}
	metrics.TableRows.WithLabelValues(string(domain.TablePoliticians)).Set(float64(rosterTable.Len()))
	metrics.TableRows.WithLabelValues(string(domain.TableSectors)).Set(float64(sectorTable.Len()))

	log.Info("Starting harvest",
		"states", len(states),
		"cycles", cycles,
		"politicians", h.cfg.Harvest.Politicians.String(),
		"roster_rows", rosterTable.Len(),
		"sector_rows", sectorTable.Len(),
	)

	session := NewSession(SessionConfig{
		RunID:    runID,
		Roster:   roster.New(h.source, h.store, h.caller, rosterTable, log),
		Sectors:  sector.New(h.source, h.store, h.caller, sectorTable, log),
		Failed:   h.ledger.Failed,
		Delay:    h.cfg.Harvest.WaitTime,
		Progress: progress,
		Log:      log,
	})

	var sum Summary
	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	checker, _ := h.store.(health.Checker)
	if c, ok := h.store.(interface{ StartMetricsCollector(context.Context) }); ok {
		c.StartMetricsCollector(serverCtx)
	}

	if h.cfg.Metrics.Port > 0 {
		server := health.NewServer(session, checker, h.cfg.Metrics.Port)
		g.Go(func() error {
			if err := server.Run(serverCtx); err != nil {
				log.Error("Health server failed", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer stopServer()
		var err error
		sum, err = session.Run(gctx, states, cycles, h.cfg.Harvest.Politicians)
		return err
	})

	runErr := g.Wait()

	if url := h.cfg.Metrics.PushgatewayURL; url != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := metrics.Push(pushCtx, url, h.cfg.Metrics.Job, runID); err != nil {
			log.Warn("Failed to push metrics", "error", err)
		}
		cancel()
	}

	if runErr != nil {
		log.Error("Harvest stopped", "error", runErr, "units", sum.Units)
		return sum, runErr
	}

	log.Info("Harvest complete",
		"units", sum.Units,
		"fetched", sum.Outcomes[harvest.OutcomeFetched],
		"cached", sum.Outcomes[harvest.OutcomeCached],
		"empty", sum.Outcomes[harvest.OutcomeEmpty],
		"failed", sum.Outcomes[harvest.OutcomeFailed],
		"next_delay", sum.Delay,
	)
	return sum, nil
}
