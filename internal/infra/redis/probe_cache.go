package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProbeCache remembers which proxies passed their health probe recently.
type ProbeCache struct {
	client *Client
}

// NewProbeCache creates a verified-proxy cache.
func NewProbeCache(client *Client) *ProbeCache {
	return &ProbeCache{client: client}
}

type verifiedProxies struct {
	Addresses  []string  `json:"addresses"`
	VerifiedAt time.Time `json:"verified_at"`
}

// Load returns the cached verified list. found is false on a miss.
func (c *ProbeCache) Load(ctx context.Context) (addresses []string, found bool, err error) {
	data, err := c.client.rdb.Get(ctx, c.client.verifiedProxiesKey()).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get verified proxies: %w", err)
	}

	var v verifiedProxies
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal verified proxies: %w", err)
	}
	return v.Addresses, len(v.Addresses) > 0, nil
}

// Store caches addresses for ttl.
func (c *ProbeCache) Store(ctx context.Context, addresses []string, ttl time.Duration) error {
	data, err := json.Marshal(verifiedProxies{Addresses: addresses, VerifiedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal verified proxies: %w", err)
	}
	if err := c.client.rdb.Set(ctx, c.client.verifiedProxiesKey(), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set verified proxies: %w", err)
	}
	return nil
}

// Clear drops the cached list.
func (c *ProbeCache) Clear(ctx context.Context) error {
	return c.client.rdb.Del(ctx, c.client.verifiedProxiesKey()).Err()
}
