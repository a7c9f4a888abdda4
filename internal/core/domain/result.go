package domain

import "time"

// NotAvailable is the sentinel value for a field an extractor could not read.
const NotAvailable = "N/A"

// Record is one extracted search result. Its fields are defined by the extractor.
type Record map[string]any

// Provenance describes how a result was obtained.
type Provenance struct {
	RunID     string    `json:"run_id"`
	Proxy     string    `json:"proxy"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

// ExtractionResult is the output of a successful attempt.
type ExtractionResult struct {
	Records    []Record
	Provenance Provenance
}

// Artifact is the persisted document for one task.
type Artifact struct {
	SearchDate      string     `json:"search_date"`
	FlightDate      string     `json:"flight_date"`
	Origin          string     `json:"origin"`
	Destination     string     `json:"destination"`
	DestinationCity string     `json:"destination_city"`
	URL             string     `json:"url"`
	Flights         []Record   `json:"flights"`
	Provenance      Provenance `json:"provenance"`
}

// TaskReport is the per-task result emitted by the scheduler.
type TaskReport struct {
	Key      TaskKey
	Status   TaskStatus
	Proxy    string
	Attempts int
	Records  int
	Duration time.Duration
	Error    string
}

// DestinationSummary counts task results for a single destination.
type DestinationSummary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// RunSummary aggregates one scheduler run.
type RunSummary struct {
	RunID          string                         `json:"run_id"`
	Dispatched     int                            `json:"dispatched"`
	Succeeded      int                            `json:"succeeded"`
	Failed         int                            `json:"failed"`
	Skipped        int                            `json:"skipped"`
	Exhausted      bool                           `json:"exhausted"`
	PerDestination map[string]*DestinationSummary `json:"per_destination"`
	Reports        []TaskReport                   `json:"-"`
	StartedAt      time.Time                      `json:"started_at"`
	FinishedAt     time.Time                      `json:"finished_at"`
}
