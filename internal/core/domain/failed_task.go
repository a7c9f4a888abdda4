package domain

import "time"

// FailedTask is a ledger entry for a task that exhausted its attempts.
type FailedTask struct {
	ID          string    `json:"id"          db:"id"`
	Destination string    `json:"destination" db:"destination"`
	FlightDate  string    `json:"flight_date" db:"flight_date"`
	Attempts    int       `json:"attempts"    db:"attempts"`
	LastOutcome Outcome   `json:"last_outcome" db:"last_outcome"`
	Error       string    `json:"error_msg"   db:"error_msg"`
	RunID       string    `json:"run_id"      db:"run_id"`
	FailedAt    time.Time `json:"failed_at"   db:"failed_at"`
}
