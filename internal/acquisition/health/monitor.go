package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/farewatch/internal/core/domain"
	"github.com/vietddude/farewatch/internal/infra/proxy"
)

// ProxyStats exposes pool counters.
type ProxyStats interface {
	Stats() proxy.Stats
}

// ProgressSource exposes scheduler progress.
type ProgressSource interface {
	Progress() (domain.RunSummary, bool)
}

// FailedCounter counts ledger entries.
type FailedCounter interface {
	Count(ctx context.Context) (int, error)
}

// CheckFunc pings an external dependency.
type CheckFunc func(ctx context.Context) error

// Monitor aggregates health status from the pool, scheduler and ledger.
type Monitor struct {
	proxies  ProxyStats
	progress ProgressSource
	failed   FailedCounter
	checks   map[string]CheckFunc
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *HealthReport
}

// NewMonitor creates a new health monitor. progress and failed may be nil.
func NewMonitor(proxies ProxyStats, progress ProgressSource, failed FailedCounter) *Monitor {
	return &Monitor{
		proxies:  proxies,
		progress: progress,
		failed:   failed,
		checks:   make(map[string]CheckFunc),
		interval: 5 * time.Second,
		now:      time.Now,
	}
}

// AddCheck registers a dependency that degrades the report when it fails.
func (m *Monitor) AddCheck(name string, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = fn
}

// CheckHealth builds a report, reusing the previous one for a few seconds.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.lastReport != nil && now.Sub(m.lastCheck) < m.interval {
		return *m.lastReport
	}

	stats := m.proxies.Stats()
	report := HealthReport{
		SystemStatus: StatusHealthy,
		Proxies: ProxyHealth{
			Total:       stats.Total,
			Active:      stats.Active,
			Blacklisted: stats.Blacklisted,
		},
		CheckedAt: now,
	}

	if m.progress != nil {
		if sum, ok := m.progress.Progress(); ok {
			report.Run = &RunHealth{
				RunID:      sum.RunID,
				Dispatched: sum.Dispatched,
				Succeeded:  sum.Succeeded,
				Failed:     sum.Failed,
				Skipped:    sum.Skipped,
				Exhausted:  sum.Exhausted,
				StartedAt:  sum.StartedAt,
				Finished:   !sum.FinishedAt.IsZero(),
			}
		}
	}

	if m.failed != nil {
		if n, err := m.failed.Count(ctx); err == nil {
			report.FailedTasks = n
		}
	}

	depFailed := false
	if len(m.checks) > 0 {
		report.Dependencies = make(map[string]string, len(m.checks))
		for name, check := range m.checks {
			cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := check(cctx)
			cancel()
			if err != nil {
				report.Dependencies[name] = err.Error()
				depFailed = true
				continue
			}
			report.Dependencies[name] = "ok"
		}
	}

	switch {
	case stats.Active == 0 || (report.Run != nil && report.Run.Exhausted):
		report.SystemStatus = StatusCritical
	case stats.Blacklisted > stats.Active || depFailed:
		report.SystemStatus = StatusDegraded
	case report.Run != nil && report.Run.Failed > report.Run.Succeeded:
		report.SystemStatus = StatusDegraded
	}

	m.lastCheck = now
	m.lastReport = &report
	return report
}
