package control

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/farewatch/internal/core/config"
	"github.com/vietddude/farewatch/internal/core/domain"
	"github.com/vietddude/farewatch/internal/infra/browser"
	"github.com/vietddude/farewatch/internal/infra/storage/memory"
)

// =============================================================================
// Fakes
// =============================================================================

const card = `<div class="nrc6"><div class="vmXl">07:05</div><div class="vmXl">09:30</div>` +
	`<div class="f8F1">120 €</div><div class="c5iUd-leg-carrier"><img alt="easyJet"></div></div>`

type fakeDriver struct {
	mu  sync.Mutex
	url string
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
	return nil
}

func (d *fakeDriver) cards() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if strings.Contains(d.url, "-LON/") {
		return 3
	}
	return 1
}

func (d *fakeDriver) HTML(context.Context) (string, error) {
	return "<html><body>" + strings.Repeat(card, d.cards()) + "</body></html>", nil
}

func (d *fakeDriver) Count(_ context.Context, selector string) (int, error) {
	if selector == "div.nrc6" {
		return d.cards(), nil
	}
	return 0, nil
}

func (d *fakeDriver) Scroll(context.Context, float64) error       { return nil }
func (d *fakeDriver) Click(context.Context, string) (bool, error) { return false, nil }
func (d *fakeDriver) Close() error                                { return nil }

type launchLog struct {
	mu      sync.Mutex
	proxies []string
}

func (l *launchLog) launcher(fail bool) browser.Launcher {
	return browser.LauncherFunc(func(_ context.Context, proxy string) (browser.Driver, error) {
		l.mu.Lock()
		l.proxies = append(l.proxies, proxy)
		l.mu.Unlock()
		if fail {
			return nil, errors.New("chrome not found")
		}
		return &fakeDriver{}, nil
	})
}

type fakeProber struct {
	bad map[string]bool

	mu     sync.Mutex
	probed []string
}

func (p *fakeProber) Probe(_ context.Context, address string) error {
	p.mu.Lock()
	p.probed = append(p.probed, address)
	p.mu.Unlock()
	if p.bad[address] {
		return errors.New("connection refused")
	}
	return nil
}

func (p *fakeProber) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.probed)
}

// memCache keeps the verified proxy list in memory.
type memCache struct {
	mu        sync.Mutex
	addresses []string
}

func (c *memCache) Load(context.Context) ([]string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.addresses...), len(c.addresses) > 0, nil
}

func (c *memCache) Store(_ context.Context, addresses []string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addresses = append([]string(nil), addresses...)
	return nil
}

func (c *memCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addresses = nil
	return nil
}

func (c *memCache) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.addresses...)
}

func poolAddresses(h *Harvester) []string {
	var out []string
	for _, r := range h.Pool().Snapshot() {
		out = append(out, r.Address)
	}
	return out
}

func testConfig() *config.AppConfig {
	cfg := &config.AppConfig{}
	config.ApplyDefaults(cfg)

	cfg.Search.Destinations = []string{"LON", "PAR"}
	cfg.Search.StartDate = "2025-04-01"
	cfg.Search.EndDate = "2025-04-02"
	cfg.Scheduler.Concurrency = 2
	cfg.Scheduler.RetryCooldown = config.Window{}
	cfg.Scheduler.ChallengeCooldown = config.Window{}
	cfg.Scheduler.RequestDelay = config.Window{}
	cfg.Browser.Pause = config.Window{}
	cfg.Browser.SmokeURL = "http://smoke.test"
	cfg.Browser.SmokeBudget = 20 * time.Millisecond
	cfg.Proxy.Addresses = []string{"http://p1:8080", "http://p2:8080", "http://p3:8080"}
	cfg.Storage.Driver = "memory"
	return cfg
}

// =============================================================================
// Tests
// =============================================================================

func TestHarvester_EndToEnd(t *testing.T) {
	ctx := context.Background()
	launches := &launchLog{}
	results := memory.NewResultRepo(memory.NewMemoryStorage())

	h, err := NewHarvester(ctx, testConfig(),
		WithLauncher(launches.launcher(false)),
		WithProber(&fakeProber{bad: map[string]bool{"http://p3:8080": true}}),
		WithStore(results),
	)
	if err != nil {
		t.Fatalf("NewHarvester failed: %v", err)
	}
	defer h.Close()

	if err := h.Prepare(ctx); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if stats := h.Pool().Stats(); stats.Active != 2 {
		t.Fatalf("Expected 2 active proxies after probing, got %s", stats)
	}

	sum, err := h.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Succeeded != 4 || sum.Failed != 0 {
		t.Fatalf("Expected 4 successes, got %+v", sum)
	}

	day := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	art, err := results.Read(ctx, "LON", day)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(art.Flights) != 3 || art.Origin != "BOD" {
		t.Errorf("Unexpected artifact %+v", art)
	}
	if !strings.Contains(art.URL, "BOD-LON/2025-04-02") {
		t.Errorf("Unexpected URL %s", art.URL)
	}

	for _, p := range launches.proxies {
		if p == "http://p3:8080" {
			t.Error("Unhealthy proxy must never be used")
		}
	}

	// Second run finds everything stored
	sum, err = h.Run(ctx)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if sum.Skipped != 4 || sum.Dispatched != 0 {
		t.Errorf("Expected all tasks skipped, got %+v", sum)
	}
}

func TestHarvester_NoHealthyProxies(t *testing.T) {
	ctx := context.Background()
	bad := map[string]bool{"http://p1:8080": true, "http://p2:8080": true, "http://p3:8080": true}

	h, err := NewHarvester(ctx, testConfig(),
		WithLauncher((&launchLog{}).launcher(false)),
		WithProber(&fakeProber{bad: bad}),
	)
	if err != nil {
		t.Fatalf("NewHarvester failed: %v", err)
	}
	defer h.Close()

	if err := h.Prepare(ctx); !errors.Is(err, domain.ErrNoActiveProxies) {
		t.Fatalf("Expected ErrNoActiveProxies, got %v", err)
	}
	if _, err := h.Run(ctx); err == nil {
		t.Error("Run must refuse to start without Prepare")
	}
}

func TestHarvester_CachedProxiesRechecked(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{addresses: []string{"http://p1:8080", "http://p2:8080"}}
	prober := &fakeProber{bad: map[string]bool{"http://p2:8080": true}}

	h, err := NewHarvester(ctx, testConfig(),
		WithLauncher((&launchLog{}).launcher(false)),
		WithProber(prober),
		WithVerifiedCache(cache),
	)
	if err != nil {
		t.Fatalf("NewHarvester failed: %v", err)
	}
	defer h.Close()

	if err := h.Prepare(ctx); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if prober.count() != 2 {
		t.Errorf("Expected only the 2 cached proxies to be checked, got %d", prober.count())
	}
	if got := poolAddresses(h); len(got) != 1 || got[0] != "http://p1:8080" {
		t.Errorf("Expected pool [p1], got %v", got)
	}
	if got := cache.list(); len(got) != 1 || got[0] != "http://p1:8080" {
		t.Errorf("Expected cache narrowed to [p1], got %v", got)
	}
}

func TestHarvester_DeadCacheFallsBackToFullCheck(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{addresses: []string{"http://p3:8080"}}
	prober := &fakeProber{bad: map[string]bool{"http://p3:8080": true}}

	h, err := NewHarvester(ctx, testConfig(),
		WithLauncher((&launchLog{}).launcher(false)),
		WithProber(prober),
		WithVerifiedCache(cache),
	)
	if err != nil {
		t.Fatalf("NewHarvester failed: %v", err)
	}
	defer h.Close()

	if err := h.Prepare(ctx); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	// 1 re-check of the cached entry, then all 3 candidates
	if prober.count() != 4 {
		t.Errorf("Expected 4 health checks, got %d", prober.count())
	}
	if got := poolAddresses(h); len(got) != 2 || got[0] != "http://p1:8080" || got[1] != "http://p2:8080" {
		t.Errorf("Expected pool [p1 p2], got %v", got)
	}
	if got := cache.list(); len(got) != 2 {
		t.Errorf("Expected cache refreshed with 2 healthy proxies, got %v", got)
	}
}

func TestHarvester_BrowserUnavailable(t *testing.T) {
	ctx := context.Background()

	h, err := NewHarvester(ctx, testConfig(),
		WithLauncher((&launchLog{}).launcher(true)),
		WithProber(&fakeProber{}),
	)
	if err != nil {
		t.Fatalf("NewHarvester failed: %v", err)
	}
	defer h.Close()

	if err := h.Prepare(ctx); !errors.Is(err, domain.ErrDriverUnavailable) {
		t.Fatalf("Expected ErrDriverUnavailable, got %v", err)
	}
}

func TestHarvester_Plan(t *testing.T) {
	h, err := NewHarvester(context.Background(), testConfig(), WithProber(&fakeProber{}))
	if err != nil {
		t.Fatalf("NewHarvester failed: %v", err)
	}
	defer h.Close()

	tasks, err := h.Plan(time.Now())
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(tasks) != 4 || tasks[0].Key.String() != "LON/2025-04-01" {
		t.Errorf("Unexpected plan %v", tasks)
	}

	results := h.ProbeProxies(context.Background())
	if len(results) != 3 {
		t.Errorf("Expected 3 probe results, got %d", len(results))
	}
}

func TestHarvester_StoredAndCoverage(t *testing.T) {
	ctx := context.Background()
	results := memory.NewResultRepo(memory.NewMemoryStorage())
	day := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	_ = results.Write(ctx, "BCN", day, &domain.Artifact{Flights: []domain.Record{{"price": "59 €"}}})

	h, err := NewHarvester(ctx, testConfig(), WithProber(&fakeProber{}), WithStore(results))
	if err != nil {
		t.Fatalf("NewHarvester failed: %v", err)
	}
	defer h.Close()

	if ok, _ := h.Stored(ctx, domain.NewTaskKey("BCN", day)); !ok {
		t.Error("Expected BCN/2025-04-02 to be stored")
	}
	if ok, _ := h.Stored(ctx, domain.NewTaskKey("LON", day)); ok {
		t.Error("Expected LON/2025-04-02 to be missing")
	}

	cov, supported, err := h.Coverage(ctx)
	if !supported || err != nil || cov["BCN"] != 1 {
		t.Errorf("Unexpected coverage %v supported=%v err=%v", cov, supported, err)
	}
}
