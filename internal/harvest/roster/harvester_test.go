package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/harvest"
	"github.com/vietddude/harvester/internal/harvest/throttle"
	"github.com/vietddude/harvester/internal/infra/storage/memory"
)

type fakeSource struct {
	rosters map[string][]domain.Record
	fail    map[string]error
	calls   []string
}

func (f *fakeSource) Roster(ctx context.Context, state string) ([]domain.Record, error) {
	f.calls = append(f.calls, state)
	if err := f.fail[state]; err != nil {
		return nil, err
	}
	return f.rosters[state], nil
}

func rec(attrs map[string]string) domain.Record {
	return domain.Record{Attributes: attrs}
}

func noSleep(delays *[]time.Duration) throttle.Caller {
	return throttle.Caller{Sleep: func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}}
}

func TestEnsureState_SingleRecordThenCached(t *testing.T) {
	src := &fakeSource{rosters: map[string][]domain.Record{
		"VT": {rec(map[string]string{"cid": "V001", "office": "VT02", "unknown": "dropped"})},
	}}
	store := memory.NewMemoryStorage()
	var delays []time.Duration
	h := New(src, store, noSleep(&delays), nil, nil)
	ctx := context.Background()
	b := throttle.NewBackoff(time.Second)

	res, b, err := h.EnsureState(ctx, b, "VT")
	if err != nil {
		t.Fatalf("EnsureState failed: %v", err)
	}
	if res.Outcome != harvest.OutcomeFetched || res.Rows != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if h.Table().Len() != 1 {
		t.Fatalf("expected 1 roster row, got %d", h.Table().Len())
	}
	if got := store.Rows(domain.TablePoliticians); len(got) != 1 {
		t.Fatalf("expected roster persisted with 1 row, got %d", len(got))
	}
	row := h.Table().Rows[0]
	if len(row) != len(domain.RosterSchema.Columns) {
		t.Errorf("row has %d cells, want %d", len(row), len(domain.RosterSchema.Columns))
	}
	if v, ok := h.Table().Value(row, "party"); ok {
		t.Errorf("missing field should be null, got %q", v)
	}

	res, _, err = h.EnsureState(ctx, b, "VT")
	if err != nil {
		t.Fatalf("second EnsureState failed: %v", err)
	}
	if res.Outcome != harvest.OutcomeCached {
		t.Errorf("expected cached outcome, got %s", res.Outcome)
	}
	if len(src.calls) != 1 {
		t.Errorf("expected 1 remote call, got %d", len(src.calls))
	}
	if store.Saves(domain.TablePoliticians) != 1 {
		t.Errorf("cache hit must not save, saves = %d", store.Saves(domain.TablePoliticians))
	}
}

func TestEnsureState_PrefixMatchSkipsFetch(t *testing.T) {
	table := domain.NewRoster()
	table.Merge([]domain.Row{domain.Project(rec(map[string]string{"cid": "T1", "office": "TX5"}), domain.RosterSchema)})

	src := &fakeSource{}
	var delays []time.Duration
	h := New(src, memory.NewMemoryStorage(), noSleep(&delays), table, nil)

	res, _, err := h.EnsureState(context.Background(), throttle.NewBackoff(0), "TX")
	if err != nil {
		t.Fatalf("EnsureState failed: %v", err)
	}
	if res.Outcome != harvest.OutcomeCached {
		t.Errorf("expected cached outcome, got %s", res.Outcome)
	}
	if len(src.calls) != 0 || len(delays) != 0 {
		t.Errorf("cache hit must not call or sleep: calls=%v delays=%v", src.calls, delays)
	}
}

func TestEnsureState_FailureIsSkipped(t *testing.T) {
	src := &fakeSource{
		rosters: map[string][]domain.Record{
			"CA": {rec(map[string]string{"cid": "C1", "office": "CA01"})},
			"NY": {rec(map[string]string{"cid": "Y1", "office": "NY01"})},
		},
		fail: map[string]error{"TX": errors.New("upstream 503")},
	}
	store := memory.NewMemoryStorage()
	var delays []time.Duration
	h := New(src, store, noSleep(&delays), nil, nil)
	ctx := context.Background()
	b := throttle.NewBackoff(time.Second)

	var outcomes []harvest.Outcome
	for _, state := range []string{"CA", "TX", "NY"} {
		var res harvest.Result
		var err error
		res, b, err = h.EnsureState(ctx, b, state)
		if err != nil {
			t.Fatalf("EnsureState(%s) returned fatal error: %v", state, err)
		}
		outcomes = append(outcomes, res.Outcome)
	}

	want := []harvest.Outcome{harvest.OutcomeFetched, harvest.OutcomeFailed, harvest.OutcomeFetched}
	if diff := cmp.Diff(want, outcomes); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if domain.RosterHasState(h.Table(), "TX") {
		t.Error("failed state must not have rows")
	}
	if diff := cmp.Diff([]string{"C1", "Y1"}, domain.RosterCandidates(h.Table())); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]time.Duration{time.Second, time.Second, 2 * time.Second}, delays); diff != "" {
		t.Errorf("delays mismatch (-want +got):\n%s", diff)
	}
	if b.Current != time.Second {
		t.Errorf("backoff should reset after NY success, got %v", b.Current)
	}
}

func TestEnsureState_EmptyResult(t *testing.T) {
	src := &fakeSource{}
	store := memory.NewMemoryStorage()
	var delays []time.Duration
	h := New(src, store, noSleep(&delays), nil, nil)

	res, _, err := h.EnsureState(context.Background(), throttle.NewBackoff(0), "GU")
	if err != nil {
		t.Fatalf("EnsureState failed: %v", err)
	}
	if res.Outcome != harvest.OutcomeEmpty {
		t.Errorf("expected empty outcome, got %s", res.Outcome)
	}
	if h.Table() != nil {
		t.Error("empty result must not create the table")
	}
	if store.Saves(domain.TablePoliticians) != 0 {
		t.Error("empty result must not save")
	}
}

func TestEnsureState_QuotaIsFatal(t *testing.T) {
	src := &fakeSource{fail: map[string]error{"TX": domain.ErrQuotaExhausted}}
	var delays []time.Duration
	h := New(src, memory.NewMemoryStorage(), noSleep(&delays), nil, nil)

	_, _, err := h.EnsureState(context.Background(), throttle.NewBackoff(0), "TX")
	if !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
}

func TestEnsureState_CancelledIsFatal(t *testing.T) {
	src := &fakeSource{}
	h := New(src, memory.NewMemoryStorage(), throttle.Caller{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := h.EnsureState(ctx, throttle.NewBackoff(time.Hour), "TX")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(src.calls) != 0 {
		t.Errorf("cancelled wait must not call the source")
	}
}
