// Package proxy manages the set of forward proxies used for acquisition.
//
// The pool partitions proxies into an active set, served round-robin, and a
// blacklist whose entries come back automatically once their TTL elapses.
// Every read or write of that partition happens under a single mutex.
package proxy

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/farewatch/internal/acquisition/metrics"
	"github.com/vietddude/farewatch/internal/core/domain"
)

// Stats is a point-in-time count of the pool partition.
type Stats struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Blacklisted int `json:"blacklisted"`
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// WithLogger sets the pool logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pool) { p.log = log }
}

// Pool hands out proxies round-robin and tracks temporary demotions.
type Pool struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time
	log *slog.Logger

	rank        map[string]int // seed position, used to keep reactivated proxies in order
	active      []string
	blacklisted map[string]time.Time
	next        int
}

// NewPool seeds a pool with addresses, all active, in the given order.
// Duplicates are dropped.
func NewPool(addresses []string, ttl time.Duration, opts ...Option) *Pool {
	p := &Pool{
		ttl:         ttl,
		now:         time.Now,
		log:         slog.Default().With("component", "proxy_pool"),
		rank:        make(map[string]int, len(addresses)),
		blacklisted: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, addr := range addresses {
		if _, seen := p.rank[addr]; seen {
			continue
		}
		p.rank[addr] = len(p.active)
		p.active = append(p.active, addr)
	}

	p.updateGaugesLocked()
	return p
}

// Acquire returns the next active proxy. It reactivates expired blacklist
// entries first. The boolean is false when no proxy is active.
func (p *Pool) Acquire() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reconcileLocked()

	if len(p.active) == 0 {
		return "", false
	}
	if p.next >= len(p.active) {
		p.next = 0
	}

	addr := p.active[p.next]
	p.next = (p.next + 1) % len(p.active)
	return addr, true
}

// Blacklist demotes an active proxy. Blacklisting an already blacklisted or
// unknown proxy is a no-op.
func (p *Pool) Blacklist(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.blacklisted[addr]; ok {
		return
	}
	i := slices.Index(p.active, addr)
	if i < 0 {
		return
	}

	p.active = slices.Delete(p.active, i, i+1)
	if i < p.next {
		p.next--
	}
	p.blacklisted[addr] = p.now()

	metrics.ProxyBlacklistTotal.WithLabelValues(addr).Inc()
	p.updateGaugesLocked()
	p.log.Warn("Proxy blacklisted",
		"proxy", addr,
		"ttl", p.ttl,
		"active", len(p.active),
	)
}

// Reconcile moves every blacklisted proxy whose TTL has elapsed back into the
// active set and returns how many were reactivated.
func (p *Pool) Reconcile() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reconcileLocked()
}

func (p *Pool) reconcileLocked() int {
	if len(p.blacklisted) == 0 {
		return 0
	}

	now := p.now()
	restored := 0
	for addr, at := range p.blacklisted {
		if now.Sub(at) < p.ttl {
			continue
		}
		delete(p.blacklisted, addr)

		pos := sort.Search(len(p.active), func(i int) bool {
			return p.rank[p.active[i]] > p.rank[addr]
		})
		p.active = slices.Insert(p.active, pos, addr)
		if pos < p.next {
			p.next++
		}
		restored++
		p.log.Info("Proxy reactivated", "proxy", addr, "blacklisted_for", now.Sub(at).Round(time.Second))
	}

	if restored > 0 {
		p.updateGaugesLocked()
	}
	return restored
}

// Snapshot returns the state of every proxy in seed order.
func (p *Pool) Snapshot() []domain.ProxyRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	records := make([]domain.ProxyRecord, 0, len(p.rank))
	for _, addr := range p.active {
		records = append(records, domain.ProxyRecord{Address: addr, State: domain.ProxyActive})
	}
	for addr, at := range p.blacklisted {
		records = append(records, domain.ProxyRecord{
			Address:       addr,
			State:         domain.ProxyBlacklisted,
			BlacklistedAt: &at,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return p.rank[records[i].Address] < p.rank[records[j].Address]
	})
	return records
}

// Stats returns active and blacklisted counts.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Total:       len(p.active) + len(p.blacklisted),
		Active:      len(p.active),
		Blacklisted: len(p.blacklisted),
	}
}

func (p *Pool) updateGaugesLocked() {
	metrics.ProxiesByState.WithLabelValues(string(domain.ProxyActive)).Set(float64(len(p.active)))
	metrics.ProxiesByState.WithLabelValues(string(domain.ProxyBlacklisted)).Set(float64(len(p.blacklisted)))
}

func (s Stats) String() string {
	return fmt.Sprintf("%d/%d active", s.Active, s.Total)
}
