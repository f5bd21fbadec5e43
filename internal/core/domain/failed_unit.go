package domain

import "time"

// FailedUnit records a fetch unit whose remote call failed.
type FailedUnit struct {
	Unit        FetchUnit `json:"unit"`
	RunID       string    `json:"run_id"`
	Error       string    `json:"error"`
	Attempts    int       `json:"attempts"`
	LastAttempt time.Time `json:"last_attempt"`
}
