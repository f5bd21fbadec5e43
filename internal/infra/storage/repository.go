package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
)

var (
	// ErrTableNotFound is returned when a table has never been saved
	ErrTableNotFound = errors.New("table not found")
)

// TableStore is the durable mirror of the in-memory tables. Tables are read
// whole at session start and written whole after every successful fetch unit.
type TableStore interface {
	// Load reads a table, mapping stored columns onto schema. It returns
	// ErrTableNotFound when nothing has been saved yet.
	Load(ctx context.Context, name domain.TableName, schema domain.Schema) (*domain.Table, error)

	// Save overwrites the stored table with every row of table
	Save(ctx context.Context, table *domain.Table) error

	// Close releases the underlying resources
	Close() error
}

// FailedUnitRepository keeps the ledger of fetch units whose last remote
// call failed.
type FailedUnitRepository interface {
	// Record adds or updates the entry for unit
	Record(ctx context.Context, unit domain.FetchUnit, runID string, cause error) error

	// Resolve removes the entry for unit, if any
	Resolve(ctx context.Context, unit domain.FetchUnit) error

	// List returns all entries ordered by unit
	List(ctx context.Context) ([]domain.FailedUnit, error)
}

// RunLock keeps two sessions from writing the same tables at once.
type RunLock interface {
	// Acquire takes the lock for runID; false means another run holds it
	Acquire(ctx context.Context, runID string, ttl time.Duration) (bool, error)

	// Release drops the lock if runID still holds it
	Release(ctx context.Context, runID string) error
}

// LoadOrNil loads a table and maps ErrTableNotFound to a nil table.
func LoadOrNil(
	ctx context.Context,
	store TableStore,
	name domain.TableName,
	schema domain.Schema,
) (*domain.Table, error) {
	t, err := store.Load(ctx, name, schema)
	if errors.Is(err, ErrTableNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
