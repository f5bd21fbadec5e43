package control

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/harvest"
	"github.com/vietddude/harvester/internal/harvest/metrics"
	"github.com/vietddude/harvester/internal/harvest/roster"
	"github.com/vietddude/harvester/internal/harvest/sector"
	"github.com/vietddude/harvester/internal/harvest/throttle"
	"github.com/vietddude/harvester/internal/infra/storage"
)

// Summary is the result of a completed session.
type Summary struct {
	RunID    string
	Units    int
	Outcomes map[harvest.Outcome]int
	Failed   []domain.FetchUnit
	Delay    time.Duration
}

// Session drives the roster phase then the sector phase over one target
// universe. All remote calls go through a single backoff value that the
// session threads from call to call.
type Session struct {
	runID    string
	roster   *roster.Harvester
	sectors  *sector.Harvester
	failed   storage.FailedUnitRepository
	backoff  throttle.Backoff
	progress io.Writer
	log      *slog.Logger

	mu   sync.Mutex
	snap harvest.Snapshot
}

// SessionConfig holds the collaborators of a Session. Failed and Progress
// are optional; a nil Progress silences the per-unit status lines.
type SessionConfig struct {
	RunID    string
	Roster   *roster.Harvester
	Sectors  *sector.Harvester
	Failed   storage.FailedUnitRepository
	Delay    time.Duration
	Progress io.Writer
	Log      *slog.Logger
}

// NewSession creates a session.
func NewSession(cfg SessionConfig) *Session {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	b := throttle.NewBackoff(cfg.Delay)
	return &Session{
		runID:    cfg.RunID,
		roster:   cfg.Roster,
		sectors:  cfg.Sectors,
		failed:   cfg.Failed,
		backoff:  b,
		progress: cfg.Progress,
		log:      log,
		snap: harvest.Snapshot{
			RunID:    cfg.RunID,
			Phase:    harvest.PhaseIdle,
			Outcomes: make(map[harvest.Outcome]int),
			Delay:    b.Current,
		},
	}
}

// Snapshot returns the current progress.
func (s *Session) Snapshot() harvest.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snap
	snap.Outcomes = maps.Clone(s.snap.Outcomes)
	return snap
}

// Run ensures every state, then every (cycle, politician) pair. States are
// processed as given, repeats included. With an All selector the politician
// universe is the roster as it stands after the state phase.
func (s *Session) Run(
	ctx context.Context,
	states []string,
	cycles []int,
	politicians domain.Selector[string],
) (Summary, error) {
	sum := Summary{RunID: s.runID, Outcomes: make(map[harvest.Outcome]int)}
	now := time.Now()
	s.update(func(snap *harvest.Snapshot) {
		snap.StartedAt = now
	})

	s.startPhase(harvest.PhaseRoster, len(states))
	for i, state := range states {
		res, b, err := s.roster.EnsureState(ctx, s.backoff, state)
		s.backoff = b
		if err != nil {
			return s.finish(sum), fmt.Errorf("roster %s: %w", state, err)
		}
		s.record(ctx, &sum, i, len(states), res)
	}

	candidates, err := politicians.Resolve(func() ([]string, error) {
		return domain.RosterCandidates(s.roster.Table()), nil
	})
	if err != nil {
		return s.finish(sum), fmt.Errorf("resolve politicians: %w", err)
	}

	total := len(cycles) * len(candidates)
	s.log.Info("Fetching sector breakdowns",
		"politicians", len(candidates), "cycles", len(cycles), "units", total)
	s.startPhase(harvest.PhaseSectors, total)

	i := 0
	for _, cycle := range cycles {
		for _, cid := range candidates {
			res, b, err := s.sectors.EnsureSectors(ctx, s.backoff, cid, cycle)
			s.backoff = b
			if err != nil {
				return s.finish(sum), fmt.Errorf("sectors %s %d: %w", cid, cycle, err)
			}
			s.record(ctx, &sum, i, total, res)
			i++
		}
	}

	return s.finish(sum), nil
}

func (s *Session) record(ctx context.Context, sum *Summary, i, total int, res harvest.Result) {
	sum.Units++
	sum.Outcomes[res.Outcome]++
	metrics.UnitsProcessed.WithLabelValues(string(res.Unit.Kind), string(res.Outcome)).Inc()

	if s.progress != nil {
		fmt.Fprintf(s.progress, "%d / %d: %s (%s)\n", i+1, total, res.Unit, res.Outcome)
	}

	switch res.Outcome {
	case harvest.OutcomeFailed:
		sum.Failed = append(sum.Failed, res.Unit)
		if s.failed != nil {
			if err := s.failed.Record(ctx, res.Unit, s.runID, res.Err); err != nil {
				s.log.Warn("Failed to record failed unit", "unit", res.Unit.String(), "error", err)
			}
		}
	case harvest.OutcomeFetched, harvest.OutcomeEmpty:
		if s.failed != nil {
			if err := s.failed.Resolve(ctx, res.Unit); err != nil {
				s.log.Warn("Failed to resolve failed unit", "unit", res.Unit.String(), "error", err)
			}
		}
	}

	s.update(func(snap *harvest.Snapshot) {
		snap.Done = i + 1
		snap.Outcomes[res.Outcome]++
		snap.Delay = s.backoff.Current
	})
}

func (s *Session) startPhase(phase harvest.Phase, total int) {
	s.log.Debug("Starting phase", "phase", phase, "units", total)
	s.update(func(snap *harvest.Snapshot) {
		snap.Phase = phase
		snap.Done = 0
		snap.Total = total
	})
}

func (s *Session) finish(sum Summary) Summary {
	sum.Delay = s.backoff.Current
	s.update(func(snap *harvest.Snapshot) {
		snap.Phase = harvest.PhaseDone
		snap.Delay = s.backoff.Current
	})
	return sum
}

func (s *Session) update(fn func(*harvest.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
	s.snap.UpdatedAt = time.Now()
}
