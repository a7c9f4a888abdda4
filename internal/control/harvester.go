package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/farewatch/internal/acquisition/health"
	"github.com/vietddude/farewatch/internal/acquisition/retry"
	"github.com/vietddude/farewatch/internal/acquisition/scheduler"
	"github.com/vietddude/farewatch/internal/core/config"
	"github.com/vietddude/farewatch/internal/core/domain"
	"github.com/vietddude/farewatch/internal/extract"
	"github.com/vietddude/farewatch/internal/infra/browser"
	"github.com/vietddude/farewatch/internal/infra/proxy"
	redisclient "github.com/vietddude/farewatch/internal/infra/redis"
	"github.com/vietddude/farewatch/internal/infra/storage"
	"github.com/vietddude/farewatch/internal/infra/storage/file"
	"github.com/vietddude/farewatch/internal/infra/storage/memory"
	"github.com/vietddude/farewatch/internal/infra/storage/postgres"
)

const smokeInterval = 2 * time.Second

// VerifiedCache remembers the proxies that passed their last health probe.
type VerifiedCache interface {
	Load(ctx context.Context) ([]string, bool, error)
	Store(ctx context.Context, addresses []string, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// Harvester wires the proxy pool, browser session, retry controller and
// scheduler into one run.
type Harvester struct {
	cfg *config.AppConfig
	log *slog.Logger

	launcher  browser.Launcher
	prober    proxy.Prober
	extractor extract.Extractor
	store     storage.ResultStore
	failed    storage.FailedTaskRepository

	db         *postgres.DB
	redis      *redisclient.Client
	probeCache VerifiedCache

	pool         *proxy.Pool
	sched        *scheduler.Scheduler
	healthServer *health.Server
}

// Option overrides a Harvester dependency.
type Option func(*Harvester)

// WithLauncher replaces the Chrome launcher.
func WithLauncher(l browser.Launcher) Option {
	return func(h *Harvester) { h.launcher = l }
}

// WithProber replaces the HTTP proxy prober.
func WithProber(p proxy.Prober) Option {
	return func(h *Harvester) { h.prober = p }
}

// WithStore replaces the configured result store.
func WithStore(s storage.ResultStore) Option {
	return func(h *Harvester) { h.store = s }
}

// WithFailedTasks replaces the configured failed task ledger.
func WithFailedTasks(r storage.FailedTaskRepository) Option {
	return func(h *Harvester) { h.failed = r }
}

// WithVerifiedCache replaces the Redis backed verified proxy cache.
func WithVerifiedCache(c VerifiedCache) Option {
	return func(h *Harvester) { h.probeCache = c }
}

// NewHarvester opens storage and the optional Redis connection. It does not
// touch the network beyond those.
func NewHarvester(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*Harvester, error) {
	h := &Harvester{
		cfg:       cfg,
		log:       slog.Default().With("component", "harvester"),
		extractor: extract.NewFlightExtractor(cfg.Search.Origin),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.launcher == nil {
		h.launcher = browser.NewChromeLauncher(cfg.Browser)
	}
	if h.prober == nil {
		fp := browser.NewFingerprint(cfg.Browser)
		h.prober = proxy.NewHTTPProber(cfg.Proxy.ProbeURL, cfg.Proxy.ConnectTimeout, cfg.Proxy.ReadTimeout, fp.ProbeHeaders())
	}

	if err := h.initStorage(ctx); err != nil {
		h.Close()
		return nil, err
	}
	h.initRedis()
	h.initLedger()

	return h, nil
}

func (h *Harvester) initStorage(ctx context.Context) error {
	if h.store != nil {
		return nil
	}

	switch h.cfg.Storage.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, h.cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		h.db = db
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate db: %w", err)
		}
		h.store = postgres.NewResultRepo(db)
		h.log.Info("Using PostgreSQL storage")

	case "memory":
		h.store = memory.NewResultRepo(memory.NewMemoryStorage())
		h.log.Info("Using memory storage")

	default:
		st, err := file.NewStore(h.cfg.Storage.Dir)
		if err != nil {
			return fmt.Errorf("failed to init file store: %w", err)
		}
		h.store = st
		h.log.Info("Using file storage", "dir", h.cfg.Storage.Dir)
	}
	return nil
}

func (h *Harvester) initRedis() {
	if h.cfg.Redis.URL == "" {
		return
	}
	client, err := redisclient.NewClient(h.cfg.Redis)
	if err != nil {
		h.log.Warn("Failed to connect to Redis, proxy cache disabled", "error", err)
		return
	}
	h.redis = client
	if h.probeCache == nil {
		h.probeCache = redisclient.NewProbeCache(client)
	}
}

func (h *Harvester) initLedger() {
	switch {
	case h.failed != nil:
	case h.redis != nil:
		h.failed = redisclient.NewFailedTaskRepo(h.redis)
	case h.db != nil:
		h.failed = postgres.NewFailedTaskRepo(h.db)
	default:
		h.failed = memory.NewFailedTaskRepo(memory.NewMemoryStorage())
	}
}

// Coverage reports stored artifacts per destination when the store supports it.
func (h *Harvester) Coverage(ctx context.Context) (map[string]int, bool, error) {
	cr, ok := h.store.(storage.CoverageReporter)
	if !ok {
		return nil, false, nil
	}
	cov, err := cr.Coverage(ctx)
	return cov, true, err
}

// FailedTasks returns the ledger in use.
func (h *Harvester) FailedTasks() storage.FailedTaskRepository { return h.failed }

// Plan expands the search window into tasks.
func (h *Harvester) Plan(now time.Time) ([]*domain.Task, error) {
	dates, err := h.cfg.Search.Dates(now)
	if err != nil {
		return nil, err
	}
	return scheduler.Plan(h.cfg.Search.DestinationCodes(), dates), nil
}

// Stored reports whether the store already holds a result for key.
func (h *Harvester) Stored(ctx context.Context, key domain.TaskKey) (bool, error) {
	return h.store.Exists(ctx, key.Destination, key.Date)
}

// ProbeProxies checks every configured candidate without building a pool
// and refreshes the verified proxy cache with the outcome.
func (h *Harvester) ProbeProxies(ctx context.Context) []proxy.ProbeResult {
	results := proxy.ProbeAll(ctx, h.prober, h.cfg.Proxy.Addresses, h.cfg.Proxy.ProbeWorkers)
	h.refreshCache(ctx, proxy.HealthyAddresses(results))
	return results
}

func (h *Harvester) refreshCache(ctx context.Context, healthy []string) {
	if h.probeCache == nil {
		return
	}
	if len(healthy) == 0 || h.cfg.Proxy.CacheTTL <= 0 {
		if err := h.probeCache.Clear(ctx); err != nil {
			h.log.Warn("Failed to clear verified proxy cache", "error", err)
		}
		return
	}
	if err := h.probeCache.Store(ctx, healthy, h.cfg.Proxy.CacheTTL); err != nil {
		h.log.Warn("Failed to cache verified proxies", "error", err)
	}
}

// Prepare builds the proxy pool and checks that a browser can start through
// it. Both failures are fatal for the run.
func (h *Harvester) Prepare(ctx context.Context) error {
	pool, err := h.buildPool(ctx)
	if err != nil {
		return err
	}
	h.pool = pool

	if h.cfg.Browser.SmokeURL != "" {
		first := pool.Snapshot()[0].Address
		if err := browser.CheckLaunch(ctx, h.launcher, first, h.cfg.Browser.SmokeURL,
			h.cfg.Browser.SmokeBudget, smokeInterval); err != nil {
			return err
		}
		h.log.Info("Browser smoke check passed", "proxy", first)
	}

	controller := retry.NewController(retry.PolicyFromConfig(h.cfg.Scheduler), pool)
	session := browser.NewSession(h.launcher, h.cfg.Browser)
	h.sched = scheduler.New(
		scheduler.ConfigFromApp(h.cfg),
		pool,
		session,
		h.extractor,
		h.store,
		controller,
		scheduler.WithFailedTasks(h.failed),
	)

	if h.cfg.Server.Port > 0 {
		monitor := health.NewMonitor(pool, h.sched, h.failed)
		if h.db != nil {
			monitor.AddCheck("postgres", h.db.Health)
		}
		if h.redis != nil {
			monitor.AddCheck("redis", h.redis.Ping)
		}
		h.healthServer = health.NewServer(monitor, h.cfg.Server.Port)
	}
	return nil
}

func (h *Harvester) buildPool(ctx context.Context) (*proxy.Pool, error) {
	ttl := h.cfg.Proxy.BlacklistTTL

	if h.probeCache != nil {
		cached, found, err := h.probeCache.Load(ctx)
		switch {
		case err != nil:
			h.log.Warn("Failed to read verified proxy cache", "error", err)
		case found && len(cached) > 0:
			// Cached entries may have died since they were verified.
			h.log.Info("Re-checking cached verified proxies", "count", len(cached))
			pool, _, err := proxy.NewProbedPool(ctx, cached, ttl, h.prober, h.cfg.Proxy.ProbeWorkers)
			if err == nil {
				if live := addresses(pool); len(live) < len(cached) {
					h.refreshCache(ctx, live)
				}
				return pool, nil
			}
			h.log.Warn("Cached proxies failed re-check, probing all candidates",
				"cached", len(cached), "error", err)
		}
	}

	pool, _, err := proxy.NewProbedPool(ctx, h.cfg.Proxy.Addresses, ttl, h.prober, h.cfg.Proxy.ProbeWorkers)
	if err != nil {
		return nil, err
	}

	h.refreshCache(ctx, addresses(pool))
	return pool, nil
}

func addresses(pool *proxy.Pool) []string {
	var out []string
	for _, r := range pool.Snapshot() {
		out = append(out, r.Address)
	}
	return out
}

// Pool returns the proxy pool built by Prepare.
func (h *Harvester) Pool() *proxy.Pool { return h.pool }

// Run plans and processes every task. Prepare must have succeeded.
func (h *Harvester) Run(ctx context.Context) (*domain.RunSummary, error) {
	if h.sched == nil {
		return nil, errors.New("harvester not prepared")
	}

	tasks, err := h.Plan(time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to plan tasks: %w", err)
	}

	if h.healthServer != nil {
		go func() {
			if err := h.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				h.log.Error("Health server failed", "error", err)
			}
		}()
	}

	if h.db != nil {
		h.db.StartMetricsCollector(ctx)
	}

	h.log.Info("Harvest starting",
		"origin", h.cfg.Search.Origin,
		"tasks", len(tasks),
		"proxies", h.pool.Stats().String(),
	)
	return h.sched.Run(ctx, tasks)
}

// Close releases every connection. It is safe to call more than once.
func (h *Harvester) Close() {
	if h.healthServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := h.healthServer.Stop(ctx); err != nil {
			h.log.Warn("Failed to stop health server", "error", err)
		}
		cancel()
		h.healthServer = nil
	}
	if h.redis != nil {
		if err := h.redis.Close(); err != nil {
			h.log.Warn("Failed to close Redis", "error", err)
		}
		h.redis = nil
	}
	if h.db != nil {
		if err := h.db.Close(); err != nil {
			h.log.Warn("Failed to close database", "error", err)
		}
		h.db = nil
	}
}
