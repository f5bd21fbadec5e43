package control

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/harvest/throttle"
)

type fakeSource struct {
	rosters     map[string][]domain.Record
	sectors     map[string][]domain.Record
	failStates  map[string]error
	rosterCalls int
	sectorCalls int
}

func sectorKey(cid string, cycle int) string {
	return fmt.Sprintf("%s/%d", cid, cycle)
}

func (f *fakeSource) Roster(ctx context.Context, state string) ([]domain.Record, error) {
	f.rosterCalls++
	if err := f.failStates[state]; err != nil {
		return nil, err
	}
	return f.rosters[state], nil
}

func (f *fakeSource) SectorBreakdown(ctx context.Context, cid string, cycle int) ([]domain.Record, error) {
	f.sectorCalls++
	return f.sectors[sectorKey(cid, cycle)], nil
}

func (f *fakeSource) calls() int {
	return f.rosterCalls + f.sectorCalls
}

func politician(cid, office string) domain.Record {
	return domain.Record{Attributes: map[string]string{"cid": cid, "office": office, "party": "I"}}
}

func sectorBreakdown(ids ...string) []domain.Record {
	out := make([]domain.Record, len(ids))
	for i, id := range ids {
		out[i] = domain.Record{Attributes: map[string]string{
			"sector_name": "Sector " + id,
			"sectorid":    id,
			"total":       "100",
		}}
	}
	return out
}

// newFixture returns a source covering TX, VT and CA for cycles 2016 and 2020.
func newFixture() *fakeSource {
	return &fakeSource{
		rosters: map[string][]domain.Record{
			"TX": {politician("T1", "TX01"), politician("T2", "TX02")},
			"VT": {politician("V001", "VT02")},
			"CA": {politician("C1", "CA12")},
		},
		sectors: map[string][]domain.Record{
			sectorKey("T1", 2016):   sectorBreakdown("A", "B"),
			sectorKey("T1", 2020):   sectorBreakdown("A"),
			sectorKey("T2", 2020):   sectorBreakdown("H"),
			sectorKey("V001", 2020): sectorBreakdown("E", "H"),
			sectorKey("C1", 2016):   sectorBreakdown("K"),
		},
	}
}

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) caller() throttle.Caller {
	return throttle.Caller{Sleep: func(ctx context.Context, d time.Duration) error {
		r.delays = append(r.delays, d)
		return ctx.Err()
	}}
}
