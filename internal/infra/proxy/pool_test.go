package proxy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/farewatch/internal/core/domain"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestPool_RoundRobin(t *testing.T) {
	p := NewPool([]string{"a:1", "b:1", "c:1"}, time.Minute)

	var got []string
	for i := 0; i < 6; i++ {
		addr, ok := p.Acquire()
		if !ok {
			t.Fatalf("Acquire %d returned no proxy", i)
		}
		got = append(got, addr)
	}

	want := []string{"a:1", "b:1", "c:1", "a:1", "b:1", "c:1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected rotation %v, got %v", want, got)
		}
	}
}

func TestPool_DropsDuplicates(t *testing.T) {
	p := NewPool([]string{"a:1", "b:1", "a:1"}, time.Minute)
	if s := p.Stats(); s.Total != 2 {
		t.Errorf("Expected 2 proxies, got %d", s.Total)
	}
}

func TestPool_BlacklistTTL(t *testing.T) {
	clock := newFakeClock()
	ttl := 30 * time.Minute
	p := NewPool([]string{"a:1", "b:1"}, ttl, WithClock(clock.Now))

	p.Blacklist("a:1")

	for i := 0; i < 4; i++ {
		addr, ok := p.Acquire()
		if !ok || addr != "b:1" {
			t.Fatalf("Expected only b:1 while a:1 is blacklisted, got %q (ok=%v)", addr, ok)
		}
	}

	clock.Advance(ttl - time.Second)
	if addr, _ := p.Acquire(); addr == "a:1" {
		t.Fatal("a:1 returned before its TTL elapsed")
	}

	clock.Advance(time.Second)
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		addr, _ := p.Acquire()
		seen[addr] = true
	}
	if !seen["a:1"] {
		t.Error("Expected a:1 to be reactivated once its TTL elapsed")
	}
	if s := p.Stats(); s.Blacklisted != 0 || s.Active != 2 {
		t.Errorf("Expected 2 active and 0 blacklisted, got %+v", s)
	}
}

func TestPool_ReconcilePreservesOrder(t *testing.T) {
	clock := newFakeClock()
	p := NewPool([]string{"a:1", "b:1", "c:1", "d:1"}, time.Minute, WithClock(clock.Now))

	p.Blacklist("c:1")
	p.Blacklist("a:1")
	clock.Advance(time.Minute)

	if n := p.Reconcile(); n != 2 {
		t.Fatalf("Expected 2 reactivated proxies, got %d", n)
	}

	snapshot := p.Snapshot()
	want := []string{"a:1", "b:1", "c:1", "d:1"}
	for i, r := range snapshot {
		if r.Address != want[i] || r.State != domain.ProxyActive {
			t.Fatalf("Expected %v all active, got %+v", want, snapshot)
		}
	}
}

func TestPool_BlacklistIdempotent(t *testing.T) {
	clock := newFakeClock()
	p := NewPool([]string{"a:1", "b:1"}, time.Minute, WithClock(clock.Now))

	p.Blacklist("a:1")
	clock.Advance(30 * time.Second)
	p.Blacklist("a:1")
	p.Blacklist("unknown:1")

	s := p.Stats()
	if s.Active != 1 || s.Blacklisted != 1 || s.Total != 2 {
		t.Fatalf("Unexpected stats %+v", s)
	}

	// The first blacklisting timestamp must still govern reactivation.
	clock.Advance(30 * time.Second)
	if n := p.Reconcile(); n != 1 {
		t.Errorf("Expected a:1 back after the original TTL, got %d reactivated", n)
	}
}

func TestPool_EmptyAfterBlacklistingAll(t *testing.T) {
	p := NewPool([]string{"a:1"}, time.Hour)
	p.Blacklist("a:1")

	if _, ok := p.Acquire(); ok {
		t.Error("Expected Acquire to report no proxy")
	}
}

func TestPool_RotationAfterBlacklist(t *testing.T) {
	p := NewPool([]string{"a:1", "b:1", "c:1"}, time.Hour)

	first, _ := p.Acquire()  // a
	second, _ := p.Acquire() // b
	p.Blacklist(first)

	next, _ := p.Acquire()
	if next != "c:1" {
		t.Errorf("Expected rotation to continue with c:1 after %s, got %s", second, next)
	}
}

func TestPool_ConcurrentAccess(t *testing.T) {
	addrs := make([]string, 20)
	for i := range addrs {
		addrs[i] = fmt.Sprintf("10.0.0.%d:3128", i)
	}
	p := NewPool(addrs, time.Hour)

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if addr, ok := p.Acquire(); ok && (i+g)%7 == 0 {
					p.Blacklist(addr)
				}
				_ = p.Stats()
			}
		}(g)
	}
	wg.Wait()

	s := p.Stats()
	if s.Total != len(addrs) {
		t.Errorf("Expected total %d, got %d", len(addrs), s.Total)
	}
	if s.Active != s.Total-s.Blacklisted {
		t.Errorf("Partition broken: %+v", s)
	}
	if len(p.Snapshot()) != len(addrs) {
		t.Errorf("Snapshot lost proxies: %d", len(p.Snapshot()))
	}
}

// ============================================================================
// Probed pool
// ============================================================================

type mockProber struct {
	mu      sync.Mutex
	failing map[string]bool
	calls   []string
}

func (m *mockProber) Probe(_ context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, address)
	if m.failing[address] {
		return errors.New("connection refused")
	}
	return nil
}

func TestNewProbedPool_DropsFailedProxies(t *testing.T) {
	prober := &mockProber{failing: map[string]bool{"p1:8080": true}}

	p, results, err := NewProbedPool(context.Background(), []string{"p1:8080", "p2:8080"}, time.Hour, prober, 2)
	if err != nil {
		t.Fatalf("NewProbedPool failed: %v", err)
	}

	if len(results) != 2 || results[0].Healthy() || !results[1].Healthy() {
		t.Errorf("Unexpected probe results %+v", results)
	}

	snapshot := p.Snapshot()
	if len(snapshot) != 1 || snapshot[0].Address != "p2:8080" {
		t.Errorf("Expected active set [p2:8080], got %+v", snapshot)
	}
	if len(prober.calls) != 2 {
		t.Errorf("Expected exactly one probe per candidate, got %d", len(prober.calls))
	}
}

func TestNewProbedPool_AllFail(t *testing.T) {
	prober := &mockProber{failing: map[string]bool{"p1:8080": true, "p2:8080": true}}

	_, _, err := NewProbedPool(context.Background(), []string{"p1:8080", "p2:8080"}, time.Hour, prober, 2)
	if !errors.Is(err, domain.ErrNoActiveProxies) {
		t.Errorf("Expected ErrNoActiveProxies, got %v", err)
	}
}
