package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/farewatch/internal/core/domain"
)

const (
	DefaultURLTemplate = "https://www.kayak.fr/flights/{origin}-{destination}/{date}?sort=bestflight_a"
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills unset fields with production values.
func ApplyDefaults(cfg *AppConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	s := &cfg.Search
	if s.Origin == "" {
		s.Origin = domain.DefaultOrigin
	}
	if s.NumDays == 0 {
		s.NumDays = 30
	}
	if s.URLTemplate == "" {
		s.URLTemplate = DefaultURLTemplate
	}

	sc := &cfg.Scheduler
	if sc.Concurrency == 0 {
		sc.Concurrency = 3
	}
	if sc.MaxAttempts == 0 {
		sc.MaxAttempts = 3
	}
	if sc.RetryCooldown == (Window{}) {
		sc.RetryCooldown = Window{Min: 400 * time.Second, Max: 600 * time.Second}
	}
	if sc.ChallengeCooldown == (Window{}) {
		sc.ChallengeCooldown = Window{Min: 600 * time.Second, Max: 900 * time.Second}
	}
	if sc.RequestDelay == (Window{}) {
		sc.RequestDelay = Window{Min: 25 * time.Second, Max: 45 * time.Second}
	}
	if sc.EmptyPolicy == "" {
		sc.EmptyPolicy = EmptyRetry
	}

	p := &cfg.Proxy
	if p.BlacklistTTL == 0 {
		p.BlacklistTTL = 30 * time.Minute
	}
	if p.ProbeURL == "" {
		p.ProbeURL = "http://httpbin.org/ip"
	}
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = 10 * time.Second
	}
	if p.ReadTimeout == 0 {
		p.ReadTimeout = 30 * time.Second
	}
	if p.ProbeWorkers == 0 {
		p.ProbeWorkers = 8
	}
	if p.CacheTTL == 0 {
		p.CacheTTL = time.Hour
	}

	b := &cfg.Browser
	if b.PageLoadTimeout == 0 {
		b.PageLoadTimeout = 30 * time.Second
	}
	if b.ScriptTimeout == 0 {
		b.ScriptTimeout = 30 * time.Second
	}
	if b.ResultsTimeout == 0 {
		b.ResultsTimeout = 15 * time.Second
	}
	if b.UserAgent == "" {
		b.UserAgent = DefaultUserAgent
	}
	if b.AcceptLanguage == "" {
		b.AcceptLanguage = "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7"
	}
	if b.Referer == "" {
		b.Referer = "https://www.google.com/"
	}
	if len(b.ChallengeMarkers) == 0 {
		b.ChallengeMarkers = []string{"captcha", "verify you're a human"}
	}
	if b.Selectors.Results == "" {
		b.Selectors.Results = "div.nrc6"
	}
	if b.Selectors.LoadMore == "" {
		b.Selectors.LoadMore = "#listWrapper > div > div.ULvh > div"
	}
	if b.Selectors.Challenge == "" {
		b.Selectors.Challenge = ".WZTU-wrap"
	}
	if b.Selectors.CookieReject == "" {
		b.Selectors.CookieReject = "button[aria-label='Tout refuser']"
	}
	if b.Pause == (Window{}) {
		b.Pause = Window{Min: 2 * time.Second, Max: 5 * time.Second}
	}
	if b.SmokeURL == "" {
		b.SmokeURL = "https://www.google.com"
	}
	if b.SmokeBudget == 0 {
		b.SmokeBudget = 30 * time.Second
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "file"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "data"
	}
}

// Validate checks invariants the rest of the program relies on.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Scheduler.Concurrency < 1 {
		errs = append(errs, errors.New("scheduler.concurrency must be at least 1"))
	}
	if c.Scheduler.MaxAttempts < 1 {
		errs = append(errs, errors.New("scheduler.max_attempts must be at least 1"))
	}
	if c.Scheduler.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("scheduler.requests_per_minute must not be negative"))
	}
	switch c.Scheduler.EmptyPolicy {
	case EmptyRetry, EmptyBlacklist, EmptyAccept:
	default:
		errs = append(errs, fmt.Errorf("scheduler.empty_policy: unknown policy %q", c.Scheduler.EmptyPolicy))
	}
	for name, w := range map[string]Window{
		"scheduler.retry_cooldown":     c.Scheduler.RetryCooldown,
		"scheduler.challenge_cooldown": c.Scheduler.ChallengeCooldown,
		"scheduler.request_delay":      c.Scheduler.RequestDelay,
		"browser.pause":                c.Browser.Pause,
	} {
		if err := w.validate(name); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Browser.PageLoadTimeout <= 0 || c.Browser.ScriptTimeout <= 0 || c.Browser.ResultsTimeout <= 0 {
		errs = append(errs, errors.New("browser timeouts must be positive"))
	}
	if c.Proxy.BlacklistTTL <= 0 {
		errs = append(errs, errors.New("proxy.blacklist_ttl must be positive"))
	}

	if _, err := c.Search.Dates(time.Now()); err != nil {
		errs = append(errs, err)
	}

	switch c.Storage.Driver {
	case "file", "memory":
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}

	return errors.Join(errs...)
}

// DestinationCodes returns the configured destinations, or the whole catalogue
// in code order when none are configured.
func (s SearchConfig) DestinationCodes() []string {
	if len(s.Destinations) > 0 {
		codes := make([]string, len(s.Destinations))
		for i, d := range s.Destinations {
			codes[i] = strings.ToUpper(strings.TrimSpace(d))
		}
		return codes
	}

	codes := make([]string, 0, len(domain.Destinations))
	for code := range domain.Destinations {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Dates returns the contiguous, inclusive range of travel dates to search.
func (s SearchConfig) Dates(now time.Time) ([]time.Time, error) {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if s.StartDate != "" {
		parsed, err := time.Parse(domain.DateLayout, s.StartDate)
		if err != nil {
			return nil, fmt.Errorf("search.start_date: %w", err)
		}
		start = parsed
	}

	var end time.Time
	switch {
	case s.EndDate != "":
		parsed, err := time.Parse(domain.DateLayout, s.EndDate)
		if err != nil {
			return nil, fmt.Errorf("search.end_date: %w", err)
		}
		end = parsed
	case s.NumDays > 0:
		end = start.AddDate(0, 0, s.NumDays-1)
	default:
		return nil, errors.New("search: either end_date or num_days is required")
	}

	if end.Before(start) {
		return nil, fmt.Errorf("search: end date %s is before start date %s",
			end.Format(domain.DateLayout), start.Format(domain.DateLayout))
	}

	var dates []time.Time
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		dates = append(dates, day)
	}
	return dates, nil
}

// SearchURL renders the URL template for one task.
func (s SearchConfig) SearchURL(key domain.TaskKey) string {
	return strings.NewReplacer(
		"{origin}", s.Origin,
		"{destination}", key.Destination,
		"{date}", key.DateString(),
	).Replace(s.URLTemplate)
}
