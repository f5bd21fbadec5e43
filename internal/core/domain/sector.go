package domain

import "strconv"

// Sector columns used by the engine.
const (
	ColumnCandidateID = "candidate_id"
	ColumnCycle       = "cycle"
	ColumnSectorID    = "sectorid"
)

// SectorSchema is the fixed column layout of the Sectors table.
var SectorSchema = Schema{
	Columns: []string{
		"candidate_id",
		"cycle",
		"sector_name",
		"sectorid",
		"indivs",
		"pacs",
		"total",
	},
	Key: []string{ColumnCandidateID, ColumnCycle, ColumnSectorID},
}

// NewSectors returns an empty Sectors table.
func NewSectors() *Table {
	return NewTable(TableSectors, SectorSchema)
}

// SectorsHaveUnit reports whether the table holds at least one row for the
// exact (candidate, cycle) pair.
func SectorsHaveUnit(sectors *Table, candidateID string, cycle int) bool {
	c := strconv.Itoa(cycle)
	return sectors.Any(func(r Row) bool {
		id, ok := sectors.Value(r, ColumnCandidateID)
		if !ok || id != candidateID {
			return false
		}
		v, ok := sectors.Value(r, ColumnCycle)
		return ok && v == c
	})
}
