// File: internal/browser/stealth.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/engager-cli/internal/config"
)

// evasionsScript runs before any page script and papers over the most
// common automation tells.
const evasionsScript = `
(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });

	// A headless Chrome ships zero plugins; real profiles never do.
	if (navigator.plugins.length === 0) {
		Object.defineProperty(navigator, 'plugins', {
			get: () => [{ name: 'Chrome PDF Viewer' }, { name: 'Native Client' }],
		});
	}

	Object.defineProperty(navigator, 'languages', {
		get: () => ['en-US', 'en'],
	});

	// window.chrome exists on every real desktop Chrome.
	if (!window.chrome) {
		window.chrome = { runtime: {} };
	}

	// The permissions API in automation answers 'denied' synchronously.
	const originalQuery = window.navigator.permissions.query;
	window.navigator.permissions.query = (parameters) =>
		parameters.name === 'notifications'
			? Promise.resolve({ state: Notification.permission })
			: originalQuery(parameters);
})();`

// ApplyStealth installs evasion scripts and consistency overrides on the
// browser target. Called once after launch; the new-document script
// persists across navigations.
func ApplyStealth(d *ChromeDriver, cfg config.BrowserConfig) error {
	return applyStealth(d, cfg.Timezone, cfg.Locale)
}

func applyStealth(d *ChromeDriver, timezone, locale string) error {
	ctx, cancel := context.WithTimeout(d.browserCtx, 15*time.Second)
	defer cancel()

	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(evasionsScript).Do(ctx)
			return err
		}),
	}
	if timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(timezone))
	}
	if locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(locale))
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("applying stealth overrides: %w", err)
	}
	return nil
}
