// Package csvfile stores each table as <dir>/<Name>.csv with a header row and
// no index column. Empty cells load as null.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

// Store is a directory of CSV tables.
type Store struct {
	dir string
}

// Open returns a store rooted at dir, which must already exist.
func Open(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("data directory %s does not exist", dir)
		}
		return nil, fmt.Errorf("failed to stat data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", dir)
	}
	return &Store{dir: dir}, nil
}

// Path returns the file backing name.
func (s *Store) Path(name domain.TableName) string {
	return filepath.Join(s.dir, string(name)+".csv")
}

// Load reads a table. Columns are matched by header name, so files written
// with a different column order or extra columns still load.
func (s *Store) Load(
	ctx context.Context,
	name domain.TableName,
	schema domain.Schema,
) (*domain.Table, error) {
	f, err := os.Open(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return domain.NewTable(name, schema), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header: %w", name, err)
	}

	// positions[i] is the file column holding schema column i, or -1
	positions := make([]int, len(schema.Columns))
	for i, col := range schema.Columns {
		positions[i] = -1
		for j, h := range header {
			if h == col {
				positions[i] = j
				break
			}
		}
	}

	var rows []domain.Row
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		row := make(domain.Row, len(schema.Columns))
		for i, pos := range positions {
			if pos >= 0 && pos < len(rec) && rec[pos] != "" {
				row[i] = domain.Cell(rec[pos])
			}
		}
		rows = append(rows, row)
	}

	t := domain.NewTable(name, schema)
	t.Merge(rows)
	return t, nil
}

// Save writes the table to a temporary file and renames it into place, so a
// crash mid-write leaves the previous version intact.
func (s *Store) Save(ctx context.Context, table *domain.Table) error {
	tmp, err := os.CreateTemp(s.dir, "."+string(table.Name)+"-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", table.Name, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(table.Schema.Columns); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s header: %w", table.Name, err)
	}
	rec := make([]string, len(table.Schema.Columns))
	for _, row := range table.Rows {
		for i := range rec {
			rec[i] = ""
			if i < len(row) && row[i].Valid {
				rec[i] = row[i].String
			}
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write %s: %w", table.Name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush %s: %w", table.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", table.Name, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(table.Name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", table.Name, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }
