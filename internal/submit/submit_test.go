// File: internal/submit/submit_test.go
package submit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/engager-cli/internal/browser"
	"github.com/xkilldash9x/engager-cli/internal/mocks"
)

func newTestSubmitter(drv browser.Driver) *Submitter {
	s := New(drv, nil, zap.NewNop())
	s.readyAttempts = 2
	s.readyInterval = time.Millisecond
	s.verifyAttempts = 2
	s.verifyInterval = time.Millisecond
	return s
}

func TestFindControlPrefersToolbarScope(t *testing.T) {
	drv := &mocks.FakeDriver{
		QueryFunc: func(_ context.Context, scope, selector string) ([]browser.Element, error) {
			switch {
			case selector == toolbarSelector:
				return []browser.Element{{Handle: "bar"}}, nil
			case scope == "bar" && selector == controlSelector:
				return []browser.Element{{Handle: "btn-toolbar"}}, nil
			case scope == "" && selector == controlSelector:
				return []browser.Element{{Handle: "btn-global"}}, nil
			}
			return nil, nil
		},
	}

	s := newTestSubmitter(drv)
	handle, err := s.FindControl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "btn-toolbar", handle)
}

func TestFindControlFallsBackToTextVerbs(t *testing.T) {
	drv := &mocks.FakeDriver{
		QueryFunc: func(_ context.Context, _, selector string) ([]browser.Element, error) {
			if selector == genericControls {
				return []browser.Element{
					{Handle: "btn-cancel", Text: "Cancel"},
					{Handle: "btn-reply", Text: "Reply"},
				}, nil
			}
			return nil, nil
		},
	}

	s := newTestSubmitter(drv)
	handle, err := s.FindControl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "btn-reply", handle)
}

func TestFindControlNothingMatches(t *testing.T) {
	drv := &mocks.FakeDriver{
		QueryFunc: func(context.Context, string, string) ([]browser.Element, error) {
			return nil, nil
		},
	}

	s := newTestSubmitter(drv)
	_, err := s.FindControl(context.Background())
	assert.ErrorIs(t, err, ErrControlNotFound)
}

func TestSubmitFirstStrategyVerifiesOnDetach(t *testing.T) {
	var submitted bool
	drv := &mocks.FakeDriver{
		DispatchFunc: func(_ context.Context, _ string, in browser.Interaction) error {
			if in.Kind == browser.InteractShortcut {
				submitted = true
			}
			return nil
		},
		IsAttachedFunc: func(context.Context, string) (bool, error) {
			return !submitted, nil
		},
	}

	s := newTestSubmitter(drv)
	strategy, err := s.Submit(context.Background(), "editor", "btn", "A reply with enough words to build a needle.")
	require.NoError(t, err)
	assert.Equal(t, StrategyShortcut, strategy)
	assert.Equal(t, 0, drv.CallCount("Dispatch:click"))
}

func TestSubmitCascadesToClickWhenShortcutIgnored(t *testing.T) {
	var clicked bool
	drv := &mocks.FakeDriver{
		DispatchFunc: func(_ context.Context, _ string, in browser.Interaction) error {
			switch in.Kind {
			case browser.InteractPointerSequence:
				return browser.ErrStaleElement
			case browser.InteractClick:
				clicked = true
			}
			return nil
		},
		IsAttachedFunc: func(context.Context, string) (bool, error) {
			return true, nil
		},
		ReadTextFunc: func(context.Context, string) (string, error) {
			if clicked {
				return "", nil
			}
			return "A reply with enough words to build a needle.", nil
		},
	}

	s := newTestSubmitter(drv)
	strategy, err := s.Submit(context.Background(), "editor", "btn", "A reply with enough words to build a needle.")
	require.NoError(t, err)
	assert.Equal(t, StrategyClick, strategy)
}

func TestSubmitVerifiesViaToast(t *testing.T) {
	var attempted bool
	drv := &mocks.FakeDriver{
		DispatchFunc: func(_ context.Context, _ string, in browser.Interaction) error {
			if in.Kind == browser.InteractShortcut {
				attempted = true
			}
			return nil
		},
		IsAttachedFunc: func(context.Context, string) (bool, error) {
			return true, nil
		},
		ReadTextFunc: func(context.Context, string) (string, error) {
			return "Draft text still sitting in the editor somehow.", nil
		},
		QueryFunc: func(_ context.Context, _, selector string) ([]browser.Element, error) {
			if attempted && selector == toastSelector {
				return []browser.Element{{Handle: "toast", Text: "Your reply was sent."}}, nil
			}
			return nil, nil
		},
	}

	s := newTestSubmitter(drv)
	strategy, err := s.Submit(context.Background(), "editor", "btn", "Draft text still sitting in the editor somehow.")
	require.NoError(t, err)
	assert.Equal(t, StrategyShortcut, strategy)
}

func TestSubmitVerifiesViaNewArticle(t *testing.T) {
	draft := "Discipline beats motivation every single time here."
	var attempted bool
	drv := &mocks.FakeDriver{
		DispatchFunc: func(_ context.Context, _ string, in browser.Interaction) error {
			if in.Kind == browser.InteractShortcut {
				attempted = true
			}
			return nil
		},
		IsAttachedFunc: func(context.Context, string) (bool, error) {
			return true, nil
		},
		ReadTextFunc: func(context.Context, string) (string, error) {
			return draft, nil
		},
		QueryFunc: func(_ context.Context, _, selector string) ([]browser.Element, error) {
			if selector == articleSelector && attempted {
				return []browser.Element{{Handle: "a1", Text: draft}}, nil
			}
			return nil, nil
		},
	}

	s := newTestSubmitter(drv)
	strategy, err := s.Submit(context.Background(), "editor", "btn", draft)
	require.NoError(t, err)
	assert.Equal(t, StrategyShortcut, strategy)
}

func TestSubmitAllStrategiesExhausted(t *testing.T) {
	drv := &mocks.FakeDriver{
		IsAttachedFunc: func(context.Context, string) (bool, error) {
			return true, nil
		},
		ReadTextFunc: func(context.Context, string) (string, error) {
			return "Draft text that refuses to leave the editor no matter what.", nil
		},
	}

	s := newTestSubmitter(drv)
	_, err := s.Submit(context.Background(), "editor", "btn", "Draft text that refuses to leave the editor no matter what.")
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.Equal(t, 1, drv.CallCount("Dispatch:shortcut"))
	assert.Equal(t, 1, drv.CallCount("Dispatch:pointer_sequence"))
	assert.Equal(t, 1, drv.CallCount("Dispatch:click"))
	assert.Equal(t, 1, drv.CallCount("Dispatch:key_activate"))
	assert.Equal(t, 1, drv.CallCount("Dispatch:event_flood"))
}

func TestSubmitStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	drv := &mocks.FakeDriver{}
	s := newTestSubmitter(drv)
	_, err := s.Submit(ctx, "editor", "btn", "Anything at all.")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFirstWords(t *testing.T) {
	assert.Equal(t, "one two three four five", firstWords("one two  three\nfour five six seven", 5))
	assert.Equal(t, "short draft", firstWords("short draft", 5))
	assert.Equal(t, "", firstWords("   ", 5))
}

func TestWaitReadyHonorsDisabledSignals(t *testing.T) {
	states := []controlState{
		{AriaDisabled: true, Opacity: 1},
		{Opacity: 1, Background: enabledBackground},
	}
	i := 0
	drv := &mocks.FakeDriver{
		EvaluateFunc: func(_ context.Context, _ string, out any) error {
			*(out.(*controlState)) = states[i]
			if i < len(states)-1 {
				i++
			}
			return nil
		},
	}

	s := newTestSubmitter(drv)
	assert.True(t, s.WaitReady(context.Background(), "btn"))
	assert.GreaterOrEqual(t, i, 1)
}

func TestWaitReadyBudgetExhausted(t *testing.T) {
	drv := &mocks.FakeDriver{
		EvaluateFunc: func(_ context.Context, _ string, out any) error {
			*(out.(*controlState)) = controlState{DisabledAttr: true, Opacity: 1}
			return nil
		},
	}

	s := newTestSubmitter(drv)
	assert.False(t, s.WaitReady(context.Background(), "btn"))
}
