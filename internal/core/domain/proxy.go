package domain

import "time"

type ProxyState string

const (
	ProxyActive      ProxyState = "active"
	ProxyBlacklisted ProxyState = "blacklisted"
)

// ProxyRecord is a point-in-time view of one relay endpoint ("host:port").
type ProxyRecord struct {
	Address       string     `json:"address"`
	State         ProxyState `json:"state"`
	BlacklistedAt *time.Time `json:"blacklisted_at,omitempty"`
}
