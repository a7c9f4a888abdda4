// Package health reports whether a harvest can make progress.
package health

import "time"

// SystemStatus represents the overall health state of the harvester.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ProxyHealth summarises the proxy pool.
type ProxyHealth struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Blacklisted int `json:"blacklisted"`
}

// RunHealth summarises the current or last run.
type RunHealth struct {
	RunID      string    `json:"run_id"`
	Dispatched int       `json:"dispatched"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Exhausted  bool      `json:"exhausted"`
	StartedAt  time.Time `json:"started_at"`
	Finished   bool      `json:"finished"`
}

// HealthReport contains the full health report.
type HealthReport struct {
	SystemStatus SystemStatus      `json:"system_status"`
	Proxies      ProxyHealth       `json:"proxies"`
	Run          *RunHealth        `json:"run,omitempty"`
	FailedTasks  int               `json:"failed_tasks"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	CheckedAt    time.Time         `json:"checked_at"`
}
