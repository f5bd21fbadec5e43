package control

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/harvester/internal/core/config"
	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/harvest"
	"github.com/vietddude/harvester/internal/infra/storage/memory"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		API: config.APIConfig{Key: "k"},
		Harvest: config.HarvestConfig{
			WaitTime:    time.Second,
			LockTTL:     time.Hour,
			States:      domain.SelectAll[string](),
			Politicians: domain.SelectAll[string](),
		},
		Storage: config.StorageConfig{Driver: config.DriverMemory},
	}
}

func newTestHarvester(t *testing.T, cfg *config.AppConfig, src *fakeSource) (*Harvester, *memory.MemoryStorage) {
	t.Helper()
	store := memory.NewMemoryStorage()
	rec := &sleepRecorder{}
	h, err := NewHarvester(context.Background(), cfg,
		WithStore(store),
		WithSource(src),
		WithCaller(rec.caller()),
		WithClock(func() time.Time { return time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC) }),
	)
	if err != nil {
		t.Fatalf("NewHarvester failed: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h, store
}

func TestHarvester_AllStatesRequiresReferenceTable(t *testing.T) {
	src := newFixture()
	h, _ := newTestHarvester(t, testConfig(), src)

	_, err := h.Run(context.Background(), nil)
	if !errors.Is(err, ErrStatesMissing) {
		t.Fatalf("expected ErrStatesMissing, got %v", err)
	}
	if src.calls() != 0 {
		t.Errorf("no remote call may happen before preconditions pass, got %d", src.calls())
	}
}

func TestHarvester_RunOverSeededStates(t *testing.T) {
	src := newFixture()
	h, store := newTestHarvester(t, testConfig(), src)
	ctx := context.Background()

	states := domain.NewStates([]domain.State{{Code: "VT", Name: "Vermont"}, {Code: "CA", Name: "California"}})
	if err := store.Save(ctx, states); err != nil {
		t.Fatalf("seed states: %v", err)
	}

	sum, err := h.Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Latest cycle for 2022 is 2020: VT and CA rosters, then V001 and C1.
	if sum.Units != 2+2 {
		t.Errorf("expected 4 units, got %d", sum.Units)
	}
	if sum.Outcomes[harvest.OutcomeFetched] != 3 || sum.Outcomes[harvest.OutcomeEmpty] != 1 {
		t.Errorf("unexpected outcomes: %v", sum.Outcomes)
	}
	if got := len(store.Rows(domain.TablePoliticians)); got != 2 {
		t.Errorf("expected 2 politicians, got %d", got)
	}
	if got := len(store.Rows(domain.TableSectors)); got != 2 {
		t.Errorf("expected 2 sector rows, got %d", got)
	}
	if sum.RunID == "" {
		t.Error("expected a run id")
	}

	// The lock is released after the run.
	if _, err := h.Run(ctx, nil); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
}

func TestHarvester_ExplicitSelectorsSkipReferenceTable(t *testing.T) {
	src := newFixture()
	cfg := testConfig()
	cfg.Harvest.States = domain.SelectExplicit("TX")
	cfg.Harvest.Politicians = domain.SelectExplicit("T2")
	cfg.Harvest.Cycles = config.CyclesConfig{List: []int{2016, 2020}}
	h, store := newTestHarvester(t, cfg, src)

	sum, err := h.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Units != 3 {
		t.Errorf("expected 3 units, got %d", sum.Units)
	}
	if src.sectorCalls != 2 {
		t.Errorf("expected 2 sector calls, got %d", src.sectorCalls)
	}
	if got := len(store.Rows(domain.TableSectors)); got != 1 {
		t.Errorf("expected 1 sector row for T2/2020, got %d", got)
	}
}

func TestHarvester_LockHeld(t *testing.T) {
	src := newFixture()
	cfg := testConfig()
	cfg.Harvest.States = domain.SelectExplicit("VT")
	h, _ := newTestHarvester(t, cfg, src)
	ctx := context.Background()

	if ok, err := h.Ledger().Lock.Acquire(ctx, "other-run", time.Hour); err != nil || !ok {
		t.Fatalf("pre-acquire failed: %v %v", ok, err)
	}

	_, err := h.Run(ctx, nil)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if src.calls() != 0 {
		t.Errorf("locked run made %d calls", src.calls())
	}
}

func TestNewHarvester_MissingDataDir(t *testing.T) {
	cfg := testConfig()
	cfg.Storage = config.StorageConfig{
		Driver:  config.DriverCSV,
		DataDir: filepath.Join(t.TempDir(), "missing"),
	}

	if _, err := NewHarvester(context.Background(), cfg, WithSource(newFixture())); err == nil {
		t.Fatal("expected error for missing data directory")
	}
}
