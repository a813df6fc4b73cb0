// File: internal/submit/submit.go
package submit

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/engager-cli/internal/browser"
	"github.com/xkilldash9x/engager-cli/internal/humanize"
)

// Errors surfaced by submission.
var (
	// ErrControlNotFound means no submit control could be located.
	ErrControlNotFound = errors.New("submit: no submit control found")
	// ErrSubmissionFailed means every strategy ran and none verified.
	ErrSubmissionFailed = errors.New("submit: all strategies exhausted without verification")
)

const (
	toolbarSelector = `[data-testid="toolBar"]`
	controlSelector = `[data-testid="tweetButton"], [data-testid="tweetButtonInline"]`
	genericControls = `button, div[role="button"]`
	toastSelector   = `[data-testid="toast"], div[role="alert"], div[role="status"]`
	articleSelector = `article[data-testid="tweet"], article[role="article"]`

	readyAttempts = 20
	readyInterval = 250 * time.Millisecond

	verifyAttempts = 12
	verifyInterval = 250 * time.Millisecond

	// A composer holding fewer runes than this after a submit attempt is
	// treated as cleared.
	clearedThreshold = 10
)

var (
	verbPattern  = regexp.MustCompile(`(?i)^(reply|post|tweet)$`)
	toastPattern = regexp.MustCompile(`(?i)sent|posted|reply`)
)

// enabledBackground is the platform's active submit button color. The
// disabled signatures exist too but are informational only; themes and
// experiments move them, so color never blocks a submission on its own.
const enabledBackground = "rgb(29, 155, 240)"

// Strategy names, in cascade order.
const (
	StrategyShortcut   = "shortcut"
	StrategyPointer    = "pointer"
	StrategyClick      = "click"
	StrategyEnter      = "enter"
	StrategyEventFlood = "event_flood"
)

// controlState is what the readiness probe reads off the live control.
type controlState struct {
	AriaDisabled bool    `json:"ariaDisabled"`
	DisabledAttr bool    `json:"disabledAttr"`
	Opacity      float64 `json:"opacity"`
	Background   string  `json:"background"`
}

// Submitter drives a drafted reply through the submit control using an
// ordered strategy cascade, each attempt gated by the same verification.
type Submitter struct {
	drv    browser.Driver
	sim    *humanize.Simulator
	logger *zap.Logger

	readyAttempts  int
	readyInterval  time.Duration
	verifyAttempts int
	verifyInterval time.Duration
}

// New wires a submitter to the driver.
func New(drv browser.Driver, sim *humanize.Simulator, logger *zap.Logger) *Submitter {
	return &Submitter{
		drv:            drv,
		sim:            sim,
		logger:         logger.Named("submit"),
		readyAttempts:  readyAttempts,
		readyInterval:  readyInterval,
		verifyAttempts: verifyAttempts,
		verifyInterval: verifyInterval,
	}
}

// FindControl locates the submit control: toolbar scope first, the
// platform test ids next, a text-verb scan over generic buttons last.
func (s *Submitter) FindControl(ctx context.Context) (string, error) {
	scopes := []string{""}
	if toolbars, err := s.drv.Query(ctx, "", toolbarSelector); err == nil && len(toolbars) > 0 {
		scopes = []string{toolbars[0].Handle, ""}
	}

	for _, scope := range scopes {
		if els, err := s.drv.Query(ctx, scope, controlSelector); err == nil && len(els) > 0 {
			return els[0].Handle, nil
		}
	}

	els, err := s.drv.Query(ctx, "", genericControls)
	if err != nil {
		return "", fmt.Errorf("scan controls: %w", err)
	}
	for _, el := range els {
		if verbPattern.MatchString(strings.TrimSpace(el.Text)) {
			return el.Handle, nil
		}
	}
	return "", ErrControlNotFound
}

// WaitReady polls the control until its disabled signals clear. The
// wait is advisory: when the budget runs out the cascade proceeds
// anyway, since a stuck-looking control sometimes still accepts input.
func (s *Submitter) WaitReady(ctx context.Context, controlHandle string) bool {
	for attempt := 0; attempt < s.readyAttempts; attempt++ {
		state, err := s.probeControl(ctx, controlHandle)
		if err != nil {
			s.logger.Debug("Control probe failed.", zap.Error(err))
		} else if !state.AriaDisabled && !state.DisabledAttr && state.Opacity >= 0.6 {
			if state.Background != "" && state.Background != enabledBackground {
				s.logger.Debug("Control enabled structurally, color unexpected.",
					zap.String("background", state.Background))
			}
			return true
		}
		if sleep(ctx, s.readyInterval) != nil {
			return false
		}
	}
	s.logger.Warn("Submit control never signalled ready.", zap.String("handle", controlHandle))
	return false
}

func (s *Submitter) probeControl(ctx context.Context, controlHandle string) (controlState, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector('[data-engager-id=%s]');
		if (!el) return null;
		const style = window.getComputedStyle(el);
		return {
			ariaDisabled: el.getAttribute('aria-disabled') === 'true',
			disabledAttr: el.hasAttribute('disabled'),
			opacity: parseFloat(style.opacity) || 1,
			background: style.backgroundColor || '',
		};
	})()`, strconv.Quote(controlHandle))

	var state controlState
	if err := s.drv.Evaluate(ctx, script, &state); err != nil {
		return controlState{}, err
	}
	return state, nil
}

// Submit runs the strategy cascade. Every strategy is followed by the
// shared verification gate; the first verified strategy's name comes
// back so callers can log which path landed.
func (s *Submitter) Submit(ctx context.Context, composerHandle, controlHandle, draft string) (string, error) {
	needle := firstWords(draft, 5)
	baseline := s.countMatchingArticles(ctx, needle)
	s.WaitReady(ctx, controlHandle)

	strategies := []struct {
		name  string
		apply func(context.Context) error
	}{
		{StrategyShortcut, func(ctx context.Context) error {
			return s.drv.Dispatch(ctx, composerHandle, browser.Interaction{
				Kind:      browser.InteractShortcut,
				Key:       "Enter",
				Modifiers: browser.ModCtrl,
			})
		}},
		{StrategyPointer, func(ctx context.Context) error {
			return s.drv.Dispatch(ctx, controlHandle, browser.Interaction{Kind: browser.InteractPointerSequence})
		}},
		{StrategyClick, func(ctx context.Context) error {
			return s.drv.Dispatch(ctx, controlHandle, browser.Interaction{Kind: browser.InteractClick})
		}},
		{StrategyEnter, func(ctx context.Context) error {
			return s.drv.Dispatch(ctx, controlHandle, browser.Interaction{Kind: browser.InteractKeyActivate})
		}},
		{StrategyEventFlood, func(ctx context.Context) error {
			return s.drv.Dispatch(ctx, controlHandle, browser.Interaction{Kind: browser.InteractEventFlood})
		}},
	}

	for _, strat := range strategies {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if s.sim != nil && s.sim.Enabled() {
			if err := s.sim.Pause(ctx); err != nil {
				return "", err
			}
		}
		if err := strat.apply(ctx); err != nil {
			s.logger.Debug("Strategy dispatch failed.", zap.String("strategy", strat.name), zap.Error(err))
			continue
		}
		ok, err := s.verify(ctx, composerHandle, needle, baseline)
		if err != nil {
			return "", err
		}
		if ok {
			s.logger.Info("Submission verified.", zap.String("strategy", strat.name))
			return strat.name, nil
		}
		s.logger.Debug("Strategy unverified.", zap.String("strategy", strat.name))
	}
	return "", ErrSubmissionFailed
}

// verify polls the shared success predicates. Any one of them passing
// counts as a confirmed submission:
//   - the composer detached from the document
//   - the composer cleared down to a trivial remnant
//   - a toast or status region announcing the send
//   - a new article carrying the draft's opening words
func (s *Submitter) verify(ctx context.Context, composerHandle, needle string, baseline int) (bool, error) {
	for attempt := 0; attempt < s.verifyAttempts; attempt++ {
		if attached, err := s.drv.IsAttached(ctx, composerHandle); err == nil && !attached {
			return true, nil
		}

		if text, err := s.drv.ReadText(ctx, composerHandle); err == nil {
			if len([]rune(strings.TrimSpace(text))) < clearedThreshold {
				return true, nil
			}
		} else if errors.Is(err, browser.ErrStaleElement) {
			return true, nil
		}

		if toasts, err := s.drv.Query(ctx, "", toastSelector); err == nil {
			for _, toast := range toasts {
				if toastPattern.MatchString(toast.Text) {
					return true, nil
				}
			}
		}

		if needle != "" && s.countMatchingArticles(ctx, needle) > baseline {
			return true, nil
		}

		if err := sleep(ctx, s.verifyInterval); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (s *Submitter) countMatchingArticles(ctx context.Context, needle string) int {
	if needle == "" {
		return 0
	}
	els, err := s.drv.Query(ctx, "", articleSelector)
	if err != nil {
		return 0
	}
	count := 0
	for _, el := range els {
		if strings.Contains(normalize(el.Text), needle) {
			count++
		}
	}
	return count
}

// firstWords returns the first n whitespace-separated words, normalized.
func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
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
