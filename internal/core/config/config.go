package config

import (
	"time"

	redisclient "github.com/vietddude/farewatch/internal/infra/redis"
	"github.com/vietddude/farewatch/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Search    SearchConfig       `yaml:"search"`
	Scheduler SchedulerConfig    `yaml:"scheduler"`
	Proxy     ProxyConfig        `yaml:"proxy"`
	Browser   BrowserConfig      `yaml:"browser"`
	Storage   StorageConfig      `yaml:"storage"`
	Redis     redisclient.Config `yaml:"redis"`
	Database  postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"` // 0 disables the health server
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SearchConfig selects what gets searched.
type SearchConfig struct {
	Origin       string   `yaml:"origin"`
	Destinations []string `yaml:"destinations"` // empty = every known destination
	StartDate    string   `yaml:"start_date"`   // YYYY-MM-DD, empty = today
	EndDate      string   `yaml:"end_date"`     // inclusive
	NumDays      int      `yaml:"num_days"`     // used when end_date is empty
	URLTemplate  string   `yaml:"url_template"`
}

// EmptyPolicy decides what a successful load with zero records means.
type EmptyPolicy string

const (
	EmptyRetry     EmptyPolicy = "retry"     // retry, keep the proxy
	EmptyBlacklist EmptyPolicy = "blacklist" // retry, demote the proxy
	EmptyAccept    EmptyPolicy = "accept"    // treat as a finished task
)

// SchedulerConfig controls dispatch and retry behaviour.
type SchedulerConfig struct {
	Concurrency       int         `yaml:"concurrency"`
	MaxAttempts       int         `yaml:"max_attempts"`
	RetryCooldown     Window      `yaml:"retry_cooldown"`
	ChallengeCooldown Window      `yaml:"challenge_cooldown"`
	RequestDelay      Window      `yaml:"request_delay"`
	RequestsPerMinute float64     `yaml:"requests_per_minute"` // 0 = unlimited
	EmptyPolicy       EmptyPolicy `yaml:"empty_policy"`
}

// ProxyConfig lists candidate relays and how they are checked.
type ProxyConfig struct {
	Addresses      []string      `yaml:"addresses"`
	BlacklistTTL   time.Duration `yaml:"blacklist_ttl"`
	ProbeURL       string        `yaml:"probe_url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	ProbeWorkers   int           `yaml:"probe_workers"`
	CacheTTL       time.Duration `yaml:"cache_ttl"` // verified list cache, needs redis
}

// BrowserConfig configures the automated browser and the page it inspects.
type BrowserConfig struct {
	Headless         bool          `yaml:"headless"`
	ExecPath         string        `yaml:"exec_path"`
	PageLoadTimeout  time.Duration `yaml:"page_load_timeout"`
	ScriptTimeout    time.Duration `yaml:"script_timeout"`
	ResultsTimeout   time.Duration `yaml:"results_timeout"`
	UserAgent        string        `yaml:"user_agent"`
	AcceptLanguage   string        `yaml:"accept_language"`
	Referer          string        `yaml:"referer"`
	ChallengeMarkers []string      `yaml:"challenge_markers"`
	Selectors        Selectors     `yaml:"selectors"`
	Pause            Window        `yaml:"pause"`
	SmokeURL         string        `yaml:"smoke_url"`
	SmokeBudget      time.Duration `yaml:"smoke_budget"`
}

// Selectors are the CSS selectors the session relies on.
type Selectors struct {
	Results      string `yaml:"results"`
	LoadMore     string `yaml:"load_more"`
	Challenge    string `yaml:"challenge"`
	CookieReject string `yaml:"cookie_reject"`
}

// StorageConfig picks the result store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // file, postgres, memory
	Dir    string `yaml:"dir"`
}
