package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/farewatch/internal/core/domain"
)

// CheckLaunch verifies a browser can start and load url through proxy,
// retrying every interval until budget is spent. Failure wraps
// domain.ErrDriverUnavailable.
func CheckLaunch(
	ctx context.Context,
	launcher Launcher,
	proxy, url string,
	budget, interval time.Duration,
) error {
	log := slog.Default().With("component", "browser")
	backoff := retry.WithMaxDuration(budget, retry.NewConstant(interval))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		driver, err := launcher.Launch(ctx, proxy)
		if err != nil {
			log.Warn("Browser launch failed", "attempt", attempt, "proxy", proxy, "error", err)
			return retry.RetryableError(err)
		}
		defer driver.Close()

		if err := driver.Navigate(ctx, url); err != nil {
			log.Warn("Browser smoke navigation failed", "attempt", attempt, "url", url, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w after %d attempts: %v", domain.ErrDriverUnavailable, attempt, err)
	}

	log.Info("Browser driver ready", "attempts", attempt, "proxy", proxy)
	return nil
}
