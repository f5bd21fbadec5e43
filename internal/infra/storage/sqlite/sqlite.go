// Package sqlite keeps the tables in a single SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding one SQL table per domain table.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path and applies migrations.
// Pass ":memory:" for an in-memory database (used by tests).
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" on one database and avoids
	// "database is locked" errors.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, err
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads a table. An empty SQL table counts as never saved.
func (s *Store) Load(
	ctx context.Context,
	name domain.TableName,
	schema domain.Schema,
) (*domain.Table, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(schema.Columns, ", "), sqlTable(name))
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}
	defer rows.Close()

	var loaded []domain.Row
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", name, err)
		}
		row := make(domain.Row, len(values))
		for i, v := range values {
			row[i] = toNullString(v)
		}
		loaded = append(loaded, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", name, err)
	}
	if len(loaded) == 0 {
		return nil, storage.ErrTableNotFound
	}

	t := domain.NewTable(name, schema)
	t.Merge(loaded)
	return t, nil
}

// Save replaces the SQL table contents in one transaction.
func (s *Store) Save(ctx context.Context, table *domain.Table) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+sqlTable(table.Name)); err != nil {
		return fmt.Errorf("clearing %s: %w", table.Name, err)
	}

	cols := table.Schema.Columns
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqlTable(table.Name),
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)
	stmt, err := tx.PreparexContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("preparing insert into %s: %w", table.Name, err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for _, row := range table.Rows {
		for i := range args {
			var cell sql.NullString
			if i < len(row) {
				cell = row[i]
			}
			args[i] = cell
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting into %s: %w", table.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", table.Name, err)
	}
	return nil
}

func sqlTable(name domain.TableName) string {
	return strings.ToLower(string(name))
}

func toNullString(v any) sql.NullString {
	switch val := v.(type) {
	case nil:
		return sql.NullString{}
	case string:
		return domain.Cell(val)
	case []byte:
		return domain.Cell(string(val))
	default:
		return domain.Cell(fmt.Sprint(val))
	}
}
