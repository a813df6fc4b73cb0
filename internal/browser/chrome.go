// File: internal/browser/chrome.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/engager-cli/internal/config"
	"github.com/xkilldash9x/engager-cli/internal/humanize"
)

// ChromeDriver implements Driver over a real Chromium instance via the
// DevTools protocol. The browser profile is persistent so the logged-in
// account survives process restarts.
type ChromeDriver struct {
	cfg    config.BrowserConfig
	sim    *humanize.Simulator
	logger *zap.Logger

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	// lastPointer tracks the virtual cursor between pointer sequences.
	pointerMu   sync.Mutex
	lastPointer humanize.Point

	closeOnce sync.Once
	closeErr  error
}

var _ Driver = (*ChromeDriver)(nil)

// NewChromeDriver launches (or attaches to) a Chromium instance.
func NewChromeDriver(ctx context.Context, cfg config.BrowserConfig, sim *humanize.Simulator, logger *zap.Logger) (*ChromeDriver, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless, chromedp.DisableGPU)
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	for _, arg := range cfg.Args {
		name, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if found {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		cfg:           cfg,
		sim:           sim,
		logger:        logger.Named("browser"),
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		lastPointer:   humanize.Point{X: 200, Y: 200},
	}

	// First Run starts the browser process.
	startCtx, cancel := context.WithTimeout(browserCtx, 60*time.Second)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	if cfg.Stealth {
		if err := ApplyStealth(d, cfg); err != nil {
			d.logger.Warn("Stealth setup failed; continuing without it.", zap.Error(err))
		}
	}

	d.logger.Info("Browser launched.",
		zap.Bool("headless", cfg.Headless),
		zap.String("profile", cfg.UserDataDir))
	return d, nil
}

// RunActions executes chromedp actions against the browser target,
// bounded by the caller's context.
func (d *ChromeDriver) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	combined, cancel := CombineContext(d.browserCtx, ctx)
	defer cancel()

	err := chromedp.Run(combined, actions...)
	if err != nil {
		// Prefer the cause over the generic chromedp wrapping.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.browserCtx.Err() != nil {
			return fmt.Errorf("browser context closed: %w", d.browserCtx.Err())
		}
	}
	return err
}

// Navigate loads url and waits for the document body.
func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	timeout := d.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d.logger.Info("Navigating.", zap.String("url", url))
	return d.RunActions(opCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Reload reloads the page. Element handles become invalid afterwards.
func (d *ChromeDriver) Reload(ctx context.Context) error {
	timeout := d.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d.logger.Info("Reloading page.")
	return d.RunActions(opCtx,
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// ScrollBy scrolls vertically by a number of viewport heights.
func (d *ChromeDriver) ScrollBy(ctx context.Context, viewports float64) error {
	script := fmt.Sprintf(`window.scrollBy({top: window.innerHeight * %f, behavior: 'smooth'}); true`, viewports)
	return d.Evaluate(ctx, script, nil)
}

// Evaluate runs script in the page and unmarshals the JSON result into
// out when out is non-nil.
func (d *ChromeDriver) Evaluate(ctx context.Context, script string, out any) error {
	var res json.RawMessage

	opCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	err := d.RunActions(opCtx,
		chromedp.Evaluate(script, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}),
	)
	if err != nil {
		if opCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("timeout during script evaluation: %w", opCtx.Err())
		}
		return fmt.Errorf("script evaluation failed: %w", err)
	}

	if out == nil {
		return nil
	}
	if len(res) == 0 || string(res) == "null" || string(res) == "undefined" {
		return ErrStaleElement
	}
	if err := json.Unmarshal(res, out); err != nil {
		return fmt.Errorf("unmarshal evaluation result: %w (payload: %s)", err, string(res))
	}
	return nil
}

// Close shuts the browser down. Safe to call more than once.
func (d *ChromeDriver) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.logger.Info("Closing browser.")
		// Give the browser a moment to shut down cleanly before the
		// allocator kills the process.
		cancelCtx, cancel := context.WithTimeout(Detach(d.browserCtx), 10*time.Second)
		defer cancel()
		if err := chromedp.Cancel(cancelCtx); err != nil && ctx.Err() == nil {
			d.closeErr = err
		}
		d.browserCancel()
		d.allocCancel()
	})
	return d.closeErr
}

// jsonEncode safely encodes a value for embedding in injected JS.
func jsonEncode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

// isStaleError recognizes CDP responses meaning the node left the DOM.
func isStaleError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Could not find node") ||
		strings.Contains(msg, "-32000") ||
		strings.Contains(msg, "node with given id does not belong to the document")
}
