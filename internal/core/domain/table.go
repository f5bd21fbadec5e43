package domain

import (
	"database/sql"
	"strings"
)

// TableName identifies a durable table.
type TableName string

const (
	TableStates      TableName = "States"
	TablePoliticians TableName = "Politicians"
	TableSectors     TableName = "Sectors"
)

// Schema is the ordered column list of a table. Key names the columns that
// identify a row; rows sharing a key are merged away.
type Schema struct {
	Columns []string
	Key     []string
}

// Index returns the position of column, or -1.
func (s Schema) Index(column string) int {
	for i, c := range s.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Row holds one cell per schema column. An invalid cell is null.
type Row []sql.NullString

// Cell builds a non-null cell.
func Cell(v string) sql.NullString {
	return sql.NullString{String: v, Valid: true}
}

// Table is an in-memory table mirrored to durable storage. Rows are only ever
// appended through Merge, which keeps at most one row per key.
type Table struct {
	Name   TableName
	Schema Schema
	Rows   []Row

	keys map[string]struct{}
}

// NewTable creates an empty table.
func NewTable(name TableName, schema Schema) *Table {
	return &Table{
		Name:   name,
		Schema: schema,
		keys:   make(map[string]struct{}),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Value returns the cell of row at column. The bool is false for null cells
// and unknown columns.
func (t *Table) Value(row Row, column string) (string, bool) {
	i := t.Schema.Index(column)
	if i < 0 || i >= len(row) || !row[i].Valid {
		return "", false
	}
	return row[i].String, true
}

// Merge appends rows whose key is not yet present and returns how many were
// added. Duplicate keys inside rows are collapsed to their first occurrence.
func (t *Table) Merge(rows []Row) int {
	t.ensureKeys()
	added := 0
	for _, r := range rows {
		k := t.key(r)
		if _, ok := t.keys[k]; ok {
			continue
		}
		t.keys[k] = struct{}{}
		t.Rows = append(t.Rows, r)
		added++
	}
	return added
}

// Any reports whether some row satisfies match.
func (t *Table) Any(match func(Row) bool) bool {
	if t == nil {
		return false
	}
	for _, r := range t.Rows {
		if match(r) {
			return true
		}
	}
	return false
}

// Delete removes every row satisfying match and returns how many were removed.
func (t *Table) Delete(match func(Row) bool) int {
	kept := t.Rows[:0]
	removed := 0
	for _, r := range t.Rows {
		if match(r) {
			delete(t.keys, t.key(r))
			removed++
			continue
		}
		kept = append(kept, r)
	}
	t.Rows = kept
	return removed
}

// Distinct returns the non-null values of column in order of first appearance.
func (t *Table) Distinct(column string) []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.Rows {
		v, ok := t.Value(r, column)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (t *Table) ensureKeys() {
	if t.keys != nil {
		return
	}
	t.keys = make(map[string]struct{}, len(t.Rows))
	for _, r := range t.Rows {
		t.keys[t.key(r)] = struct{}{}
	}
}

func (t *Table) key(r Row) string {
	cols := t.Schema.Key
	if len(cols) == 0 {
		cols = t.Schema.Columns
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		if v, ok := t.Value(r, c); ok {
			parts[i] = v
		} else {
			parts[i] = "\x00"
		}
	}
	return strings.Join(parts, "\x1f")
}
