package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/vietddude/farewatch/internal/core/config"
	"github.com/vietddude/farewatch/internal/core/domain"
)

const defaultPollInterval = 250 * time.Millisecond

// Session runs acquisition attempts. Each call to Acquire owns one browser
// for its whole duration and always closes it before returning.
type Session struct {
	launcher     Launcher
	cfg          config.BrowserConfig
	pollInterval time.Duration
	log          *slog.Logger
}

// NewSession creates a session runner.
func NewSession(launcher Launcher, cfg config.BrowserConfig) *Session {
	return &Session{
		launcher:     launcher,
		cfg:          cfg,
		pollInterval: defaultPollInterval,
		log:          slog.Default().With("component", "session"),
	}
}

// Acquire loads url through proxy and returns the page once results render.
//
// Errors wrap domain.ErrChallengeDetected when the target served a bot check
// and domain.ErrTimeout when the page or the result list did not load in time.
func (s *Session) Acquire(ctx context.Context, proxy, url string) (*Capture, error) {
	start := time.Now()

	driver, err := s.launcher.Launch(ctx, proxy)
	if err != nil {
		return nil, fmt.Errorf("launch browser via %s: %w", proxy, err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			s.log.Debug("Browser close returned error", "proxy", proxy, "error", err)
		}
	}()

	if err := driver.Navigate(ctx, url); err != nil {
		return nil, timeoutError(ctx, "page load", err)
	}

	html, err := driver.HTML(ctx)
	if err != nil {
		return nil, timeoutError(ctx, "read page", err)
	}
	if marker, ok := s.challengeMarker(html); ok {
		return nil, fmt.Errorf("%w: page contains %q", domain.ErrChallengeDetected, marker)
	}

	if err := s.actHuman(ctx, driver); err != nil {
		return nil, err
	}
	s.rejectCookies(ctx, driver)

	if n, err := driver.Count(ctx, s.cfg.Selectors.Challenge); err == nil && n > 0 {
		return nil, fmt.Errorf("%w: challenge element %s present", domain.ErrChallengeDetected, s.cfg.Selectors.Challenge)
	}

	if err := s.waitForResults(ctx, driver); err != nil {
		return nil, err
	}

	loadedMore := s.loadMore(ctx, driver)

	html, err = driver.HTML(ctx)
	if err != nil {
		return nil, timeoutError(ctx, "read page", err)
	}

	return &Capture{
		URL:        url,
		Proxy:      proxy,
		HTML:       html,
		LoadedMore: loadedMore,
		Elapsed:    time.Since(start),
	}, nil
}

func (s *Session) challengeMarker(html string) (string, bool) {
	lower := strings.ToLower(html)
	for _, m := range s.cfg.ChallengeMarkers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return m, true
		}
	}
	return "", false
}

// actHuman scrolls a little and pauses for a random interval.
func (s *Session) actHuman(ctx context.Context, driver Driver) error {
	if err := driver.Scroll(ctx, rand.Float64()*0.1); err != nil {
		s.log.Debug("Scroll failed", "error", err)
	}
	return sleep(ctx, s.cfg.Pause.Pick())
}

// rejectCookies dismisses the consent banner when one is shown.
func (s *Session) rejectCookies(ctx context.Context, driver Driver) {
	if s.cfg.Selectors.CookieReject == "" {
		return
	}
	clicked, err := driver.Click(ctx, s.cfg.Selectors.CookieReject)
	if err != nil {
		s.log.Debug("Cookie banner click failed", "error", err)
		return
	}
	if clicked {
		s.log.Debug("Cookie banner rejected")
	}
}

// waitForResults polls until the result container has content or the
// results timeout elapses.
func (s *Session) waitForResults(ctx context.Context, driver Driver) error {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.ResultsTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		n, err := driver.Count(wctx, s.cfg.Selectors.Results)
		if err == nil && n > 0 {
			return nil
		}

		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: no results matching %s after %s",
				domain.ErrTimeout, s.cfg.Selectors.Results, s.cfg.ResultsTimeout)
		case <-ticker.C:
		}
	}
}

// loadMore clicks the "show more" control once. Failures are ignored.
func (s *Session) loadMore(ctx context.Context, driver Driver) bool {
	if s.cfg.Selectors.LoadMore == "" {
		return false
	}
	if err := driver.Scroll(ctx, 0.7); err != nil {
		s.log.Debug("Scroll failed", "error", err)
	}

	clicked, err := driver.Click(ctx, s.cfg.Selectors.LoadMore)
	if err != nil {
		s.log.Debug("Load more failed", "error", err)
		return false
	}
	if !clicked {
		return false
	}

	if err := sleep(ctx, s.cfg.Pause.Pick()); err != nil {
		return false
	}
	if err := s.waitForResults(ctx, driver); err != nil {
		s.log.Debug("Results did not settle after load more", "error", err)
	}
	return true
}

// timeoutError maps deadline errors from the driver onto domain.ErrTimeout,
// leaving caller cancellation untouched.
func timeoutError(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", domain.ErrTimeout, stage, err)
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
