package scheduler

import (
	"sync"
	"time"

	"github.com/vietddude/farewatch/internal/acquisition/metrics"
	"github.com/vietddude/farewatch/internal/core/domain"
)

// aggregator collects task results from all workers.
type aggregator struct {
	mu      sync.Mutex
	summary domain.RunSummary
}

func newAggregator(runID string, start time.Time) *aggregator {
	return &aggregator{summary: domain.RunSummary{
		RunID:          runID,
		PerDestination: make(map[string]*domain.DestinationSummary),
		StartedAt:      start,
	}}
}

func (a *aggregator) dest(code string) *domain.DestinationSummary {
	d, ok := a.summary.PerDestination[code]
	if !ok {
		d = &domain.DestinationSummary{}
		a.summary.PerDestination[code] = d
	}
	return d
}

func (a *aggregator) skip(key domain.TaskKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary.Skipped++
	a.dest(key.Destination).Skipped++
	metrics.TasksTotal.WithLabelValues(key.Destination, "skipped").Inc()
}

func (a *aggregator) dispatch(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary.Dispatched += n
}

func (a *aggregator) exhausted() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary.Exhausted = true
}

func (a *aggregator) finish(r domain.TaskReport) {
	a.mu.Lock()
	defer a.mu.Unlock()

	d := a.dest(r.Key.Destination)
	if r.Status == domain.TaskSucceeded {
		a.summary.Succeeded++
		d.Succeeded++
	} else {
		a.summary.Failed++
		d.Failed++
	}
	a.summary.Reports = append(a.summary.Reports, r)
	metrics.TasksTotal.WithLabelValues(r.Key.Destination, string(r.Status)).Inc()
}

func (a *aggregator) close(end time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary.FinishedAt = end
}

// snapshot returns a deep copy safe to hand to other goroutines.
func (a *aggregator) snapshot() domain.RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.summary
	s.PerDestination = make(map[string]*domain.DestinationSummary, len(a.summary.PerDestination))
	for k, v := range a.summary.PerDestination {
		cp := *v
		s.PerDestination[k] = &cp
	}
	s.Reports = append([]domain.TaskReport(nil), a.summary.Reports...)
	return s
}
