package domain

import "time"

// Outcome classifies how a single attempt ended.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeChallenge Outcome = "challenge"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeEmpty     Outcome = "empty"
	OutcomeError     Outcome = "error"
	// OutcomeExhausted means no proxy was available to run the attempt.
	OutcomeExhausted Outcome = "exhausted"
)

// Attempt is the ephemeral record of one try at a task.
type Attempt struct {
	Task      TaskKey
	Number    int
	Proxy     string
	Outcome   Outcome
	Records   int
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
