package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// UnitKind distinguishes the two kinds of remote work.
type UnitKind string

const (
	UnitRoster  UnitKind = "roster"
	UnitSectors UnitKind = "sectors"
)

// FetchUnit is the granularity at which local presence is checked and
// remote calls are issued: a state, or a (candidate, cycle) pair.
type FetchUnit struct {
	Kind        UnitKind
	State       string
	CandidateID string
	Cycle       int
}

// StateUnit returns the roster unit for a state.
func StateUnit(state string) FetchUnit {
	return FetchUnit{Kind: UnitRoster, State: state}
}

// SectorUnit returns the sector unit for a candidate and cycle.
func SectorUnit(candidateID string, cycle int) FetchUnit {
	return FetchUnit{Kind: UnitSectors, CandidateID: candidateID, Cycle: cycle}
}

// String renders the unit as "roster:TX" or "sectors:N00001:2020".
func (u FetchUnit) String() string {
	if u.Kind == UnitRoster {
		return fmt.Sprintf("%s:%s", u.Kind, u.State)
	}
	return fmt.Sprintf("%s:%s:%d", u.Kind, u.CandidateID, u.Cycle)
}

// ParseFetchUnit is the inverse of FetchUnit.String.
func ParseFetchUnit(s string) (FetchUnit, error) {
	parts := strings.Split(s, ":")
	switch {
	case len(parts) == 2 && parts[0] == string(UnitRoster):
		return StateUnit(parts[1]), nil
	case len(parts) == 3 && parts[0] == string(UnitSectors):
		cycle, err := strconv.Atoi(parts[2])
		if err != nil {
			return FetchUnit{}, fmt.Errorf("invalid cycle in unit %q: %w", s, err)
		}
		return SectorUnit(parts[1], cycle), nil
	}
	return FetchUnit{}, fmt.Errorf("invalid fetch unit %q", s)
}
