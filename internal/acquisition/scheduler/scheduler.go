// Package scheduler fans (destination, date) tasks out to a fixed pool of
// workers. Each worker owns a task from its first attempt until it reaches
// a terminal state; tasks already present in the result store are skipped
// without opening a browser.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vietddude/farewatch/internal/acquisition/metrics"
	"github.com/vietddude/farewatch/internal/acquisition/retry"
	"github.com/vietddude/farewatch/internal/core/config"
	"github.com/vietddude/farewatch/internal/core/domain"
	"github.com/vietddude/farewatch/internal/extract"
	"github.com/vietddude/farewatch/internal/infra/browser"
	"github.com/vietddude/farewatch/internal/infra/storage"
)

// Config holds scheduler settings.
type Config struct {
	Concurrency       int
	RequestDelay      config.Window
	RequestsPerMinute float64 // 0 = unlimited
	Search            config.SearchConfig
}

// ConfigFromApp extracts scheduler settings from the application config.
func ConfigFromApp(cfg *config.AppConfig) Config {
	return Config{
		Concurrency:       cfg.Scheduler.Concurrency,
		RequestDelay:      cfg.Scheduler.RequestDelay,
		RequestsPerMinute: cfg.Scheduler.RequestsPerMinute,
		Search:            cfg.Search,
	}
}

// ProxySource hands out proxies.
type ProxySource interface {
	Acquire() (string, bool)
}

// Acquirer runs one browser attempt.
type Acquirer interface {
	Acquire(ctx context.Context, proxy, url string) (*browser.Capture, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithFailedTasks records abandoned tasks in a ledger.
func WithFailedTasks(repo storage.FailedTaskRepository) Option {
	return func(s *Scheduler) { s.failed = repo }
}

// WithReportHook is called once per finished task.
func WithReportHook(fn func(domain.TaskReport)) Option {
	return func(s *Scheduler) { s.onReport = fn }
}

// Scheduler dispatches tasks to workers.
type Scheduler struct {
	cfg        Config
	proxies    ProxySource
	acquirer   Acquirer
	extractor  extract.Extractor
	store      storage.ResultStore
	failed     storage.FailedTaskRepository
	controller *retry.Controller
	limiter    *rate.Limiter
	onReport   func(domain.TaskReport)
	log        *slog.Logger

	current atomic.Pointer[aggregator]
}

// New creates a scheduler.
func New(
	cfg Config,
	proxies ProxySource,
	acquirer Acquirer,
	extractor extract.Extractor,
	store storage.ResultStore,
	controller *retry.Controller,
	opts ...Option,
) *Scheduler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	s := &Scheduler{
		cfg:        cfg,
		proxies:    proxies,
		acquirer:   acquirer,
		extractor:  extractor,
		store:      store,
		controller: controller,
		log:        slog.Default().With("component", "scheduler"),
	}
	if cfg.RequestsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), 1)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Progress returns the counters of the current or last run.
func (s *Scheduler) Progress() (domain.RunSummary, bool) {
	agg := s.current.Load()
	if agg == nil {
		return domain.RunSummary{}, false
	}
	return agg.snapshot(), true
}

// Run processes tasks until all are terminal or ctx is cancelled. A failed
// task never stops its siblings. The summary is returned even when ctx ends
// the run early, together with ctx's error.
func (s *Scheduler) Run(ctx context.Context, tasks []*domain.Task) (*domain.RunSummary, error) {
	agg := newAggregator(uuid.New().String(), time.Now())
	s.current.Store(agg)
	runID := agg.summary.RunID

	log := s.log.With("run_id", runID)
	log.Info("Starting run", "tasks", len(tasks), "workers", s.cfg.Concurrency)

	var pending []*domain.Task
	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		exists, err := s.store.Exists(ctx, t.Key.Destination, t.Key.Date)
		if err != nil {
			log.Warn("Failed to check result store, dispatching", "task", t.Key.String(), "error", err)
		}
		if exists {
			log.Debug("Result already stored, skipping", "task", t.Key.String())
			agg.skip(t.Key)
			continue
		}
		pending = append(pending, t)
	}

	queue := make(chan *domain.Task)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		for _, t := range pending {
			if gctx.Err() != nil {
				return nil
			}
			select {
			case queue <- t:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < s.cfg.Concurrency; i++ {
		w := &worker{id: i, s: s, runID: runID, agg: agg, log: log.With("worker", i)}
		g.Go(func() error {
			w.loop(gctx, queue)
			return nil
		})
	}
	_ = g.Wait()

	agg.close(time.Now())
	summary := agg.snapshot()
	s.logSummary(log, &summary)

	if err := ctx.Err(); err != nil {
		return &summary, fmt.Errorf("run interrupted: %w", err)
	}
	return &summary, nil
}

func (s *Scheduler) logSummary(log *slog.Logger, sum *domain.RunSummary) {
	codes := make([]string, 0, len(sum.PerDestination))
	for code := range sum.PerDestination {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		d := sum.PerDestination[code]
		log.Info("Destination finished",
			"destination", code,
			"city", domain.DestinationName(code),
			"succeeded", d.Succeeded,
			"failed", d.Failed,
			"skipped", d.Skipped,
		)
	}

	attrs := []any{
		"dispatched", sum.Dispatched,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
		"duration", sum.FinishedAt.Sub(sum.StartedAt).Round(time.Second),
	}
	if sum.Exhausted {
		log.Error("Run finished with proxy pool exhausted", attrs...)
		return
	}
	log.Info("Run finished", attrs...)
}

// worker owns tasks pulled from the queue, one at a time.
type worker struct {
	id    int
	s     *Scheduler
	runID string
	agg   *aggregator
	log   *slog.Logger
}

func (w *worker) loop(ctx context.Context, queue <-chan *domain.Task) {
	first := true
	for t := range queue {
		// Only tasks a worker holds count as dispatched, so every one gets a report.
		w.agg.dispatch(1)
		if !first {
			// Space out independent requests from the same worker
			if err := sleep(ctx, w.s.cfg.RequestDelay.Pick()); err != nil {
				w.interrupted(t, time.Now(), err)
				continue
			}
		}
		first = false
		w.process(ctx, t)
	}
}

// process runs attempts for t until the controller reaches a verdict.
func (w *worker) process(ctx context.Context, t *domain.Task) {
	s := w.s
	start := time.Now()
	url := s.cfg.Search.SearchURL(t.Key)
	log := w.log.With("task", t.Key.String())

	for {
		if err := s.controller.Begin(t); err != nil {
			log.Error("Cannot start attempt", "error", err)
			w.report(t, start, 0, err)
			return
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				w.interrupted(t, start, err)
				return
			}
		}

		a := w.attempt(ctx, t, url)
		if ctx.Err() != nil {
			w.interrupted(t, start, ctx.Err())
			return
		}

		var records []domain.Record
		if a.Err == nil && s.controller.Accepts(a.Attempt) {
			records = a.records
			if err := w.persist(ctx, t, url, a); err != nil {
				metrics.StoreWriteErrors.WithLabelValues("results").Inc()
				log.Error("Failed to store result", "error", err)
				a.Outcome = domain.OutcomeError
				a.Err = err
			}
		}

		d, err := s.controller.Record(t, a.Attempt)
		if err != nil {
			log.Error("Cannot record attempt", "error", err)
			w.report(t, start, 0, err)
			return
		}

		switch d.Action {
		case retry.ActionSucceed:
			metrics.RecordsExtracted.WithLabelValues(t.Key.Destination).Add(float64(len(records)))
			w.report(t, start, len(records), nil)
			return

		case retry.ActionFail:
			if d.Class == retry.ClassResourceExhausted {
				w.agg.exhausted()
			}
			w.recordFailure(ctx, t)
			w.report(t, start, 0, a.Err)
			return

		case retry.ActionRetry:
			if err := sleep(ctx, d.Cooldown); err != nil {
				w.interrupted(t, start, err)
				return
			}
		}
	}
}

type attemptResult struct {
	domain.Attempt
	records []domain.Record
}

func (w *worker) attempt(ctx context.Context, t *domain.Task, url string) attemptResult {
	s := w.s
	a := attemptResult{Attempt: domain.Attempt{
		Task:      t.Key,
		Number:    t.AttemptCount,
		StartedAt: time.Now(),
	}}

	proxy, ok := s.proxies.Acquire()
	if !ok {
		a.Outcome = domain.OutcomeExhausted
		a.Err = domain.ErrNoActiveProxies
		return a
	}
	a.Proxy = proxy

	w.log.Debug("Attempting", "task", t.Key.String(), "attempt", t.AttemptCount, "proxy", proxy)

	capture, err := s.acquirer.Acquire(ctx, proxy, url)
	a.Duration = time.Since(a.StartedAt)
	if err != nil {
		a.Err = err
		a.Outcome = retry.OutcomeOf(err, 0)
		return a
	}

	a.records = s.extractor.Extract(capture.HTML)
	a.Records = len(a.records)
	a.Outcome = retry.OutcomeOf(nil, a.Records)
	return a
}

func (w *worker) persist(ctx context.Context, t *domain.Task, url string, a attemptResult) error {
	s := w.s
	flights := a.records
	if flights == nil {
		flights = []domain.Record{}
	}

	artifact := &domain.Artifact{
		SearchDate:      a.StartedAt.Format(domain.DateLayout),
		FlightDate:      t.Key.DateString(),
		Origin:          s.cfg.Search.Origin,
		Destination:     t.Key.Destination,
		DestinationCity: domain.DestinationName(t.Key.Destination),
		URL:             url,
		Flights:         flights,
		Provenance: domain.Provenance{
			RunID:     w.runID,
			Proxy:     a.Proxy,
			Attempts:  t.AttemptCount,
			Timestamp: time.Now().UTC(),
		},
	}

	if err := s.store.Write(ctx, t.Key.Destination, t.Key.Date, artifact); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreWrite, err)
	}
	return nil
}

func (w *worker) recordFailure(ctx context.Context, t *domain.Task) {
	if w.s.failed == nil {
		return
	}

	ft := &domain.FailedTask{
		ID:          uuid.New().String(),
		Destination: t.Key.Destination,
		FlightDate:  t.Key.DateString(),
		Attempts:    t.AttemptCount,
		LastOutcome: t.LastOutcome,
		Error:       t.LastError,
		RunID:       w.runID,
		FailedAt:    time.Now().UTC(),
	}
	if err := w.s.failed.Add(ctx, ft); err != nil {
		w.log.Warn("Failed to record failed task", "task", t.Key.String(), "error", err)
	}
}

// interrupted reports a task cut short by cancellation. It is counted as
// failed for this run but not written to the ledger.
func (w *worker) interrupted(t *domain.Task, start time.Time, err error) {
	w.log.Warn("Task interrupted", "task", t.Key.String(), "status", t.Status, "error", err)
	w.report(t, start, 0, err)
}

func (w *worker) report(t *domain.Task, start time.Time, records int, err error) {
	r := domain.TaskReport{
		Key:      t.Key,
		Status:   t.Status,
		Proxy:    t.LastProxy,
		Attempts: t.AttemptCount,
		Records:  records,
		Duration: time.Since(start),
	}
	if r.Status != domain.TaskSucceeded {
		r.Status = domain.TaskFailed
	}
	if err != nil {
		r.Error = err.Error()
	} else if t.LastError != "" && r.Status == domain.TaskFailed {
		r.Error = t.LastError
	}

	w.agg.finish(r)
	if w.s.onReport != nil {
		w.s.onReport(r)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
