// Package browser runs acquisition attempts in an automated browser.
//
// This package contains:
//   - Driver / Launcher: the narrow browser surface an attempt needs
//   - ChromeLauncher: the chromedp implementation with proxy and fingerprint
//   - Session: one attempt bound to one proxy, released on every exit path
//   - CheckLaunch: startup smoke check for the driver
package browser

import (
	"context"
	"time"
)

// Driver is a single browser instance.
type Driver interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// HTML returns the current document's outer HTML.
	HTML(ctx context.Context) (string, error)

	// Count returns the number of elements matching selector that have visible text.
	Count(ctx context.Context, selector string) (int, error)

	// Scroll scrolls to fraction (0..1) of the page height.
	Scroll(ctx context.Context, fraction float64) error

	// Click clicks the first element matching selector. It reports false
	// when nothing matches.
	Click(ctx context.Context, selector string) (bool, error)

	// Close releases the browser process.
	Close() error
}

// Launcher starts a Driver routed through a proxy.
type Launcher interface {
	Launch(ctx context.Context, proxy string) (Driver, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, proxy string) (Driver, error)

func (f LauncherFunc) Launch(ctx context.Context, proxy string) (Driver, error) {
	return f(ctx, proxy)
}

// Capture is the page content obtained by a successful attempt.
type Capture struct {
	URL        string
	Proxy      string
	HTML       string
	LoadedMore bool
	Elapsed    time.Duration
}
