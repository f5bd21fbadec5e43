package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/harvester/internal/core/config"
	redisclient "github.com/vietddude/harvester/internal/infra/redis"
	"github.com/vietddude/harvester/internal/infra/storage"
	"github.com/vietddude/harvester/internal/infra/storage/csvfile"
	"github.com/vietddude/harvester/internal/infra/storage/memory"
	"github.com/vietddude/harvester/internal/infra/storage/postgres"
	"github.com/vietddude/harvester/internal/infra/storage/sqlite"
)

// OpenStore opens the table store selected by cfg.Driver. The csv driver
// fails when the data directory does not exist.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (storage.TableStore, error) {
	switch cfg.Driver {
	case config.DriverCSV, "":
		store, err := csvfile.Open(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		slog.Info("Using CSV storage", "dir", cfg.DataDir)
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		slog.Info("Using SQLite storage", "path", cfg.SQLitePath)
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		slog.Info("Using PostgreSQL storage")
		return store, nil
	case config.DriverMemory:
		slog.Info("Using Memory storage")
		return memory.NewMemoryStorage(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// Ledger bundles the cross-run bookkeeping: run lock and failed units. It is
// Redis-backed when Redis is configured and reachable, in-process otherwise.
type Ledger struct {
	Lock   storage.RunLock
	Failed storage.FailedUnitRepository
	Redis  *redisclient.Client
}

// OpenLedger connects to Redis if configured. A connection failure falls
// back to in-process bookkeeping with a warning.
func OpenLedger(cfg redisclient.Config) *Ledger {
	if cfg.URL != "" {
		client, err := redisclient.NewClient(cfg)
		if err == nil {
			slog.Info("Using Redis for run lock and failed units")
			return &Ledger{
				Lock:   redisclient.NewRunLock(client),
				Failed: redisclient.NewFailedUnitRepo(client),
				Redis:  client,
			}
		}
		slog.Warn("Failed to connect to Redis, using in-process ledger", "error", err)
	}
	return &Ledger{
		Lock:   memory.NewRunLock(),
		Failed: memory.NewFailedUnitRepo(),
	}
}

// Close releases the Redis connection, if any.
func (l *Ledger) Close() error {
	if l.Redis == nil {
		return nil
	}
	return l.Redis.Close()
}
