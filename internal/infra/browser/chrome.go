package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/vietddude/farewatch/internal/core/config"
)

// ChromeLauncher starts headless Chrome instances through chromedp.
type ChromeLauncher struct {
	cfg config.BrowserConfig
	fp  Fingerprint
}

// NewChromeLauncher creates a launcher for the given browser config.
func NewChromeLauncher(cfg config.BrowserConfig) *ChromeLauncher {
	return &ChromeLauncher{cfg: cfg, fp: NewFingerprint(cfg)}
}

// Launch starts a browser whose traffic goes through proxy. An empty proxy
// connects directly.
func (l *ChromeLauncher) Launch(ctx context.Context, proxy string) (Driver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("lang", l.fp.AcceptLanguage),
		chromedp.UserAgent(l.fp.UserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.WSURLReadTimeout(l.cfg.PageLoadTimeout),
	)
	if proxy != "" {
		opts = append(opts, chromedp.ProxyServer(proxy))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	d := &chromeDriver{
		ctx:           browserCtx,
		cancel:        browserCancel,
		allocCancel:   allocCancel,
		loadTimeout:   l.cfg.PageLoadTimeout,
		scriptTimeout: l.cfg.ScriptTimeout,
	}

	headers := make(network.Headers)
	for k, v := range l.fp.Headers() {
		headers[k] = v
	}

	// The first Run allocates the browser and must not carry a deadline,
	// otherwise the process dies with it.
	if err := chromedp.Run(browserCtx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	setupCtx, cancel := d.bound(ctx, l.cfg.ScriptTimeout)
	defer cancel()

	err := chromedp.Run(setupCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		emulation.SetUserAgentOverride(l.fp.UserAgent).WithAcceptLanguage(l.fp.AcceptLanguage),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideAutomation).Do(ctx)
			return err
		}),
	)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to configure browser: %w", err)
	}

	return d, nil
}

type chromeDriver struct {
	ctx           context.Context
	cancel        context.CancelFunc
	allocCancel   context.CancelFunc
	loadTimeout   time.Duration
	scriptTimeout time.Duration
}

// bound derives a context from the browser context that also ends when
// parent is cancelled or timeout elapses.
func (d *chromeDriver) bound(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(d.ctx, timeout)
	stop := context.AfterFunc(parent, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (d *chromeDriver) Navigate(ctx context.Context, url string) error {
	tctx, cancel := d.bound(ctx, d.loadTimeout)
	defer cancel()

	if err := chromedp.Run(tctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (d *chromeDriver) HTML(ctx context.Context) (string, error) {
	tctx, cancel := d.bound(ctx, d.scriptTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(tctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

func (d *chromeDriver) Count(ctx context.Context, selector string) (int, error) {
	tctx, cancel := d.bound(ctx, d.scriptTimeout)
	defer cancel()

	js := `Array.from(document.querySelectorAll(` + strconv.Quote(selector) + `))` +
		`.filter(el => el.textContent.trim() !== '').length`

	var n int
	if err := chromedp.Run(tctx, chromedp.Evaluate(js, &n)); err != nil {
		return 0, fmt.Errorf("count %s: %w", selector, err)
	}
	return n, nil
}

func (d *chromeDriver) Scroll(ctx context.Context, fraction float64) error {
	tctx, cancel := d.bound(ctx, d.scriptTimeout)
	defer cancel()

	js := fmt.Sprintf(`window.scrollTo(0, document.body.scrollHeight * %f)`, fraction)
	return chromedp.Run(tctx, chromedp.Evaluate(js, nil))
}

func (d *chromeDriver) Click(ctx context.Context, selector string) (bool, error) {
	tctx, cancel := d.bound(ctx, d.scriptTimeout)
	defer cancel()

	js := `(() => {
	const el = document.querySelector(` + strconv.Quote(selector) + `);
	if (!el) return false;
	el.scrollIntoView({block: 'center'});
	el.click();
	return true;
})()`

	var clicked bool
	if err := chromedp.Run(tctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return false, fmt.Errorf("click %s: %w", selector, err)
	}
	return clicked, nil
}

func (d *chromeDriver) Close() error {
	err := chromedp.Cancel(d.ctx)
	d.cancel()
	d.allocCancel()
	return err
}
