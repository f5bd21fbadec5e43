package postgres

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/harvest/metrics"
	"github.com/vietddude/harvester/internal/infra/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// Store keeps the tables in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects, applies migrations and returns the store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	// Set pool configuration
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 4
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// goose needs a *sql.DB; borrow one backed by the same pool
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		pool.Close()
		return nil, err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Health checks if the database is reachable.
func (s *Store) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// StartMetricsCollector starts a background goroutine reporting pool usage
// until ctx ends.
func (s *Store) StartMetricsCollector(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stat := s.pool.Stat()
				if stat.MaxConns() > 0 {
					usage := float64(stat.AcquiredConns()) / float64(stat.MaxConns()) * 100
					metrics.StorePoolUsage.Set(usage)
				}
			}
		}
	}()
}

// Load reads a table. An empty SQL table counts as never saved.
func (s *Store) Load(
	ctx context.Context,
	name domain.TableName,
	schema domain.Schema,
) (*domain.Table, error) {
	cols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), sqlTable(name).Sanitize())

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", name, err)
	}
	defer rows.Close()

	var loaded []domain.Row
	for rows.Next() {
		values := make([]*string, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", name, err)
		}
		row := make(domain.Row, len(values))
		for i, v := range values {
			if v != nil {
				row[i] = domain.Cell(*v)
			}
		}
		loaded = append(loaded, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(loaded) == 0 {
		return nil, storage.ErrTableNotFound
	}

	t := domain.NewTable(name, schema)
	t.Merge(loaded)
	return t, nil
}

// Save replaces the table contents in one transaction using COPY.
func (s *Store) Save(ctx context.Context, table *domain.Table) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ident := sqlTable(table.Name)
	if _, err := tx.Exec(ctx, "DELETE FROM "+ident.Sanitize()); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table.Name, err)
	}

	cols := table.Schema.Columns
	values := make([][]any, len(table.Rows))
	for i, row := range table.Rows {
		vals := make([]any, len(cols))
		for j := range cols {
			if j < len(row) && row[j].Valid {
				v := row[j].String
				vals[j] = &v
			} else {
				vals[j] = (*string)(nil)
			}
		}
		values[i] = vals
	}

	if _, err := tx.CopyFrom(ctx, ident, cols, pgx.CopyFromRows(values)); err != nil {
		return fmt.Errorf("failed to copy into %s: %w", table.Name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table.Name, err)
	}
	return nil
}

func sqlTable(name domain.TableName) pgx.Identifier {
	return pgx.Identifier{strings.ToLower(string(name))}
}
