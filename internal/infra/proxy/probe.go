package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/farewatch/internal/acquisition/metrics"
	"github.com/vietddude/farewatch/internal/core/domain"
)

// Prober checks that a proxy can relay a request.
type Prober interface {
	Probe(ctx context.Context, address string) error
}

// HTTPProber fetches an echo endpoint through the proxy. It never retries.
type HTTPProber struct {
	url            string
	connectTimeout time.Duration
	readTimeout    time.Duration
	headers        map[string]string
}

// NewHTTPProber creates a prober for the given echo endpoint.
func NewHTTPProber(
	probeURL string,
	connectTimeout, readTimeout time.Duration,
	headers map[string]string,
) *HTTPProber {
	return &HTTPProber{
		url:            probeURL,
		connectTimeout: connectTimeout,
		readTimeout:    readTimeout,
		headers:        headers,
	}
}

// Probe returns nil when the echo endpoint answers 200 through the proxy.
func (p *HTTPProber) Probe(ctx context.Context, address string) error {
	proxyURL, err := ParseAddress(address)
	if err != nil {
		return err
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyURL(proxyURL),
		DialContext:           (&net.Dialer{Timeout: p.connectTimeout}).DialContext,
		TLSHandshakeTimeout:   p.connectTimeout,
		ResponseHeaderTimeout: p.readTimeout,
		DisableKeepAlives:     true,
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   p.connectTimeout + p.readTimeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe via %s failed: %w", address, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe via %s: unexpected status %d", address, resp.StatusCode)
	}
	return nil
}

// ParseAddress accepts "host:port" or a full proxy URL.
func ParseAddress(address string) (*url.URL, error) {
	raw := address
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy address %q: %w", address, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy address %q: missing host", address)
	}
	return u, nil
}

// ProbeResult is the outcome of probing one candidate.
type ProbeResult struct {
	Address string
	Err     error
	Latency time.Duration
}

// Healthy reports whether the probe passed.
func (r ProbeResult) Healthy() bool { return r.Err == nil }

// ProbeAll probes every candidate with at most workers probes in flight.
// Results keep the candidate order.
func ProbeAll(ctx context.Context, prober Prober, candidates []string, workers int) []ProbeResult {
	if workers < 1 {
		workers = 1
	}

	results := make([]ProbeResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, addr := range candidates {
		g.Go(func() error {
			start := time.Now()
			err := prober.Probe(gctx, addr)
			results[i] = ProbeResult{Address: addr, Err: err, Latency: time.Since(start)}

			if err != nil {
				metrics.ProxyProbeTotal.WithLabelValues("failed").Inc()
			} else {
				metrics.ProxyProbeTotal.WithLabelValues("ok").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// HealthyAddresses filters results down to passing addresses.
func HealthyAddresses(results []ProbeResult) []string {
	var healthy []string
	for _, r := range results {
		if r.Healthy() {
			healthy = append(healthy, r.Address)
		}
	}
	return healthy
}

// NewProbedPool probes candidates and seeds a pool with the ones that pass.
// It returns domain.ErrNoActiveProxies when none do.
func NewProbedPool(
	ctx context.Context,
	candidates []string,
	ttl time.Duration,
	prober Prober,
	workers int,
	opts ...Option,
) (*Pool, []ProbeResult, error) {
	log := slog.Default().With("component", "proxy_probe")
	log.Info("Probing proxies", "candidates", len(candidates), "workers", workers)

	results := ProbeAll(ctx, prober, candidates, workers)
	for _, r := range results {
		if r.Err != nil {
			log.Warn("Proxy failed health probe", "proxy", r.Address, "error", r.Err)
		} else {
			log.Debug("Proxy passed health probe", "proxy", r.Address, "latency", r.Latency)
		}
	}

	healthy := HealthyAddresses(results)
	if len(healthy) == 0 {
		return nil, results, fmt.Errorf("%w: all %d candidates failed the health probe",
			domain.ErrNoActiveProxies, len(candidates))
	}

	log.Info("Proxy pool ready", "active", len(healthy), "rejected", len(candidates)-len(healthy))
	return NewPool(healthy, ttl, opts...), results, nil
}
