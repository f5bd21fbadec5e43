package harvest

import "time"

// Phase names a stage of a session.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRoster  Phase = "roster"
	PhaseSectors Phase = "sectors"
	PhaseDone    Phase = "done"
)

// Snapshot is a point-in-time view of a running session.
type Snapshot struct {
	RunID     string          `json:"run_id"`
	Phase     Phase           `json:"phase"`
	Done      int             `json:"done"`
	Total     int             `json:"total"`
	Outcomes  map[Outcome]int `json:"outcomes"`
	Delay     time.Duration   `json:"delay_ns"`
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
