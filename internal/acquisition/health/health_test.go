package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/farewatch/internal/core/domain"
	"github.com/vietddude/farewatch/internal/infra/proxy"
)

// =============================================================================
// Stubs
// =============================================================================

type stubProxies struct {
	stats proxy.Stats
}

func (s *stubProxies) Stats() proxy.Stats { return s.stats }

type stubProgress struct {
	sum domain.RunSummary
	ok  bool
}

func (s *stubProgress) Progress() (domain.RunSummary, bool) { return s.sum, s.ok }

type stubFailed struct {
	count int
}

func (s *stubFailed) Count(ctx context.Context) (int, error) { return s.count, nil }

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Status(t *testing.T) {
	tests := []struct {
		name     string
		stats    proxy.Stats
		progress *stubProgress
		want     SystemStatus
	}{
		{"healthy", proxy.Stats{Total: 3, Active: 3}, &stubProgress{}, StatusHealthy},
		{"no active proxies", proxy.Stats{Total: 3, Blacklisted: 3}, &stubProgress{}, StatusCritical},
		{"mostly blacklisted", proxy.Stats{Total: 3, Active: 1, Blacklisted: 2}, &stubProgress{}, StatusDegraded},
		{
			"exhausted run",
			proxy.Stats{Total: 1, Active: 1},
			&stubProgress{sum: domain.RunSummary{Exhausted: true}, ok: true},
			StatusCritical,
		},
		{
			"failing run",
			proxy.Stats{Total: 2, Active: 2},
			&stubProgress{sum: domain.RunSummary{Failed: 3, Succeeded: 1}, ok: true},
			StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(&stubProxies{stats: tt.stats}, tt.progress, &stubFailed{})
			if got := m.CheckHealth(context.Background()).SystemStatus; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMonitor_CachesReport(t *testing.T) {
	px := &stubProxies{stats: proxy.Stats{Total: 2, Active: 2}}
	m := NewMonitor(px, nil, &stubFailed{count: 4})

	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	first := m.CheckHealth(context.Background())
	if first.FailedTasks != 4 || first.Run != nil {
		t.Fatalf("unexpected report %+v", first)
	}

	px.stats = proxy.Stats{Total: 2, Blacklisted: 2}
	if got := m.CheckHealth(context.Background()).SystemStatus; got != StatusHealthy {
		t.Errorf("expected cached healthy report, got %s", got)
	}

	now = now.Add(10 * time.Second)
	if got := m.CheckHealth(context.Background()).SystemStatus; got != StatusCritical {
		t.Errorf("expected critical after refresh, got %s", got)
	}
}

func TestServer_Endpoints(t *testing.T) {
	px := &stubProxies{stats: proxy.Stats{Total: 2, Active: 2}}
	progress := &stubProgress{
		sum: domain.RunSummary{RunID: "run-1", Succeeded: 2, FinishedAt: time.Now()},
		ok:  true,
	}
	srv := httptest.NewServer(NewServer(NewMonitor(px, progress, nil), 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	var short map[string]string
	json.NewDecoder(resp.Body).Decode(&short)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || short["status"] != "healthy" {
		t.Errorf("unexpected /health response %d %v", resp.StatusCode, short)
	}

	resp, err = http.Get(srv.URL + "/health/detailed")
	if err != nil {
		t.Fatalf("GET /health/detailed failed: %v", err)
	}
	var report HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	resp.Body.Close()
	if report.Run == nil || report.Run.RunID != "run-1" || !report.Run.Finished {
		t.Errorf("unexpected run section %+v", report.Run)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /metrics, got %d", resp.StatusCode)
	}
}

func TestServer_CriticalReturns503(t *testing.T) {
	px := &stubProxies{stats: proxy.Stats{Total: 1, Blacklisted: 1}}
	srv := httptest.NewServer(NewServer(NewMonitor(px, nil, nil), 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestMonitor_DependencyFailureDegrades(t *testing.T) {
	m := NewMonitor(&stubProxies{stats: proxy.Stats{Total: 2, Active: 2}}, nil, nil)
	m.AddCheck("postgres", func(context.Context) error { return nil })
	m.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	if report.Dependencies["postgres"] != "ok" || report.Dependencies["redis"] != "connection refused" {
		t.Errorf("unexpected dependencies %v", report.Dependencies)
	}
}
