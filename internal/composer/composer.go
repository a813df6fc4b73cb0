// File: internal/composer/composer.go
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/engager-cli/internal/browser"
	"github.com/xkilldash9x/engager-cli/internal/humanize"
)

// Errors surfaced by composer operations.
var (
	// ErrComposerNotFound means the reply surface never appeared.
	ErrComposerNotFound = errors.New("composer: reply surface did not appear")
	// ErrInjectionFailed means neither write path produced verifiable text.
	ErrInjectionFailed = errors.New("composer: text injection could not be verified")
)

// editorSelectors locate the reply text editor, most specific first.
var editorSelectors = []string{
	`[data-testid="tweetTextarea_0"]`,
	`div[role="textbox"][contenteditable="true"]`,
	`div[contenteditable="true"]`,
}

const (
	dialogSelector = `div[role="dialog"]`
	closeSelector  = `[data-testid="app-bar-close"]`

	// The reply surface renders asynchronously after the control is
	// activated; poll with a bounded budget.
	openPollAttempts = 80
	openPollInterval = 150 * time.Millisecond

	// verifyPrefixRunes is how much of the draft must read back to
	// consider an injection successful.
	verifyPrefixRunes = 20
)

// Composer opens the reply surface and performs verified text injection.
type Composer struct {
	drv    browser.Driver
	sim    *humanize.Simulator
	logger *zap.Logger

	pollAttempts int
	pollInterval time.Duration
}

// New wires a composer to the driver.
func New(drv browser.Driver, sim *humanize.Simulator, logger *zap.Logger) *Composer {
	return &Composer{
		drv:          drv,
		sim:          sim,
		logger:       logger.Named("composer"),
		pollAttempts: openPollAttempts,
		pollInterval: openPollInterval,
	}
}

// Open activates the reply control and waits for the editor to render.
// Editors inside a dialog are preferred over inline ones, which avoids
// grabbing the feed's own top-level composer.
func (c *Composer) Open(ctx context.Context, replyControlHandle string) (string, error) {
	kind := browser.InteractClick
	if c.sim != nil && c.sim.Enabled() {
		if err := c.sim.Pause(ctx); err != nil {
			return "", err
		}
		kind = browser.InteractPointerSequence
	}
	if err := c.drv.Dispatch(ctx, replyControlHandle, browser.Interaction{Kind: kind}); err != nil {
		return "", fmt.Errorf("activate reply control: %w", err)
	}

	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		if handle, ok := c.findEditor(ctx); ok {
			c.logger.Debug("Composer ready.", zap.String("handle", handle), zap.Int("attempt", attempt))
			return handle, nil
		}
		if err := sleep(ctx, c.pollInterval); err != nil {
			return "", err
		}
	}
	return "", ErrComposerNotFound
}

// findEditor scans dialog scope first, then the whole document.
func (c *Composer) findEditor(ctx context.Context) (string, bool) {
	scopes := []string{""}
	if dialogs, err := c.drv.Query(ctx, "", dialogSelector); err == nil && len(dialogs) > 0 {
		scopes = []string{dialogs[0].Handle, ""}
	}
	for _, scope := range scopes {
		for _, sel := range editorSelectors {
			els, err := c.drv.Query(ctx, scope, sel)
			if err != nil || len(els) == 0 {
				continue
			}
			return els[0].Handle, true
		}
	}
	return "", false
}

// Write injects text into the editor with verification: the trusted
// insert path first, the degraded direct write if the readback does not
// carry the draft's prefix. Both failing is an injection error.
func (c *Composer) Write(ctx context.Context, editorHandle, text string) error {
	// An editor that already holds the full draft needs no injection.
	// Retried writes would duplicate the text through the insert path.
	if len([]rune(text)) >= verifyPrefixRunes {
		if cur, err := c.drv.ReadText(ctx, editorHandle); err == nil && normalize(cur) == normalize(text) {
			c.logger.Debug("Editor already carries the draft.", zap.String("handle", editorHandle))
			return nil
		}
	}

	if err := c.drv.WriteText(ctx, editorHandle, text); err != nil && !errors.Is(err, browser.ErrStaleElement) {
		c.logger.Debug("Trusted write failed.", zap.Error(err))
	} else if err == nil {
		if ok, verr := c.verifyWritten(ctx, editorHandle, text); verr == nil && ok {
			return nil
		}
	}

	c.logger.Warn("Trusted write unverified, using degraded path.", zap.String("handle", editorHandle))
	if err := c.drv.SetText(ctx, editorHandle, text); err != nil {
		return fmt.Errorf("%w: degraded write: %v", ErrInjectionFailed, err)
	}
	ok, err := c.verifyWritten(ctx, editorHandle, text)
	if err != nil {
		return fmt.Errorf("%w: verification: %v", ErrInjectionFailed, err)
	}
	if !ok {
		return ErrInjectionFailed
	}
	return nil
}

// verifyWritten reads the editor back and checks the draft prefix.
func (c *Composer) verifyWritten(ctx context.Context, editorHandle, text string) (bool, error) {
	got, err := c.drv.ReadText(ctx, editorHandle)
	if err != nil {
		return false, err
	}
	return strings.Contains(normalize(got), prefix(normalize(text), verifyPrefixRunes)), nil
}

// Close dismisses the reply surface so an abandoned item leaves the
// page clean for the next one. Best effort.
func (c *Composer) Close(ctx context.Context, editorHandle string) {
	if err := c.drv.Dispatch(ctx, editorHandle, browser.Interaction{Kind: browser.InteractEscape}); err == nil {
		if attached, _ := c.drv.IsAttached(ctx, editorHandle); !attached {
			return
		}
	}
	if closers, err := c.drv.Query(ctx, "", closeSelector); err == nil && len(closers) > 0 {
		if err := c.drv.Dispatch(ctx, closers[0].Handle, browser.Interaction{Kind: browser.InteractClick}); err != nil {
			c.logger.Debug("Composer close control failed.", zap.Error(err))
		}
	}
}

// normalize collapses whitespace so editor re-rendering does not break
// prefix comparison.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
