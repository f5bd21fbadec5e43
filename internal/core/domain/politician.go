package domain

import "strings"

// Roster columns used by the engine.
const (
	ColumnCID    = "cid"
	ColumnOffice = "office"
)

// RosterSchema is the fixed column layout of the Politicians table.
var RosterSchema = Schema{
	Columns: []string{
		"cid",
		"firstlast",
		"lastname",
		"party",
		"office",
		"gender",
		"firstelectoff",
		"exitcode",
		"comments",
		"phone",
		"fax",
		"website",
		"webform",
		"congress_office",
		"bioguide_id",
		"votesmart_id",
		"feccandid",
		"twitter_id",
		"youtube_url",
		"facebook_id",
		"birthdate",
	},
	Key: []string{ColumnCID},
}

// NewRoster returns an empty Politicians table.
func NewRoster() *Table {
	return NewTable(TablePoliticians, RosterSchema)
}

// StateOf returns the owning state of an office code such as "TX05".
func StateOf(office string) string {
	if len(office) < 2 {
		return office
	}
	return office[:2]
}

// RosterHasState reports whether any roster row's office starts with state.
// This is a presence check, not a completeness check.
func RosterHasState(roster *Table, state string) bool {
	return roster.Any(func(r Row) bool {
		office, ok := roster.Value(r, ColumnOffice)
		return ok && strings.HasPrefix(office, state)
	})
}

// RosterCandidates returns every candidate identifier in the roster.
func RosterCandidates(roster *Table) []string {
	return roster.Distinct(ColumnCID)
}
