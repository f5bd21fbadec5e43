package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

// MemoryStorage keeps tables in process memory. Loads and saves copy rows so
// callers never share slices with the store.
type MemoryStorage struct {
	mu     sync.RWMutex
	tables map[domain.TableName][]domain.Row
	saves  map[domain.TableName]int
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tables: make(map[domain.TableName][]domain.Row),
		saves:  make(map[domain.TableName]int),
	}
}

func (s *MemoryStorage) Load(
	ctx context.Context,
	name domain.TableName,
	schema domain.Schema,
) (*domain.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.tables[name]
	if !ok {
		return nil, storage.ErrTableNotFound
	}
	t := domain.NewTable(name, schema)
	t.Merge(copyRows(rows))
	return t, nil
}

func (s *MemoryStorage) Save(ctx context.Context, table *domain.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table.Name] = copyRows(table.Rows)
	s.saves[table.Name]++
	return nil
}

func (s *MemoryStorage) Close() error { return nil }

// Saves returns how many times name was saved.
func (s *MemoryStorage) Saves(name domain.TableName) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves[name]
}

// Rows returns a copy of the stored rows of name.
func (s *MemoryStorage) Rows(name domain.TableName) []domain.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRows(s.tables[name])
}

func copyRows(rows []domain.Row) []domain.Row {
	out := make([]domain.Row, len(rows))
	for i, r := range rows {
		out[i] = append(domain.Row(nil), r...)
	}
	return out
}

// -----------------------------------------------------------------------------
// Failed Unit Repository
// -----------------------------------------------------------------------------

type FailedUnitRepo struct {
	mu    sync.Mutex
	units map[domain.FetchUnit]domain.FailedUnit
	now   func() time.Time
}

func NewFailedUnitRepo() *FailedUnitRepo {
	return &FailedUnitRepo{
		units: make(map[domain.FetchUnit]domain.FailedUnit),
		now:   time.Now,
	}
}

func (r *FailedUnitRepo) Record(ctx context.Context, unit domain.FetchUnit, runID string, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.units[unit]
	f.Unit = unit
	f.RunID = runID
	f.Attempts++
	f.LastAttempt = r.now()
	if cause != nil {
		f.Error = cause.Error()
	}
	r.units[unit] = f
	return nil
}

func (r *FailedUnitRepo) Resolve(ctx context.Context, unit domain.FetchUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.units, unit)
	return nil
}

func (r *FailedUnitRepo) List(ctx context.Context) ([]domain.FailedUnit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.FailedUnit, 0, len(r.units))
	for _, f := range r.units {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Unit.String() < out[j].Unit.String()
	})
	return out, nil
}

// -----------------------------------------------------------------------------
// Run Lock
// -----------------------------------------------------------------------------

// RunLock only guards sessions inside one process.
type RunLock struct {
	mu     sync.Mutex
	holder string
}

func NewRunLock() *RunLock {
	return &RunLock{}
}

func (l *RunLock) Acquire(ctx context.Context, runID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" && l.holder != runID {
		return false, nil
	}
	l.holder = runID
	return true, nil
}

func (l *RunLock) Release(ctx context.Context, runID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == runID {
		l.holder = ""
	}
	return nil
}
