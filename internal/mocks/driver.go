// File: internal/mocks/driver.go
package mocks

import (
	"context"
	"sync"

	"github.com/xkilldash9x/engager-cli/internal/browser"
)

// FakeDriver is a scriptable browser.Driver for tests. Behavior is
// injected per method; unset methods succeed with zero values. Every
// call is recorded for assertion.
type FakeDriver struct {
	mu    sync.Mutex
	calls []string

	NavigateFunc     func(ctx context.Context, url string) error
	ReloadFunc       func(ctx context.Context) error
	ScrollByFunc     func(ctx context.Context, viewports float64) error
	QueryFunc        func(ctx context.Context, scope, selector string) ([]browser.Element, error)
	ReadTextFunc     func(ctx context.Context, handle string) (string, error)
	WriteTextFunc    func(ctx context.Context, handle, text string) error
	SetTextFunc      func(ctx context.Context, handle, text string) error
	DispatchFunc     func(ctx context.Context, handle string, in browser.Interaction) error
	IsAttachedFunc   func(ctx context.Context, handle string) (bool, error)
	SetAttributeFunc func(ctx context.Context, handle, name, value string) error
	EvaluateFunc     func(ctx context.Context, script string, out any) error
	CloseFunc        func(ctx context.Context) error
}

var _ browser.Driver = (*FakeDriver)(nil)

func (f *FakeDriver) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

// Calls returns a copy of the recorded call log.
func (f *FakeDriver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of recorded calls with the given name.
func (f *FakeDriver) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *FakeDriver) Navigate(ctx context.Context, url string) error {
	f.record("Navigate")
	if f.NavigateFunc != nil {
		return f.NavigateFunc(ctx, url)
	}
	return nil
}

func (f *FakeDriver) Reload(ctx context.Context) error {
	f.record("Reload")
	if f.ReloadFunc != nil {
		return f.ReloadFunc(ctx)
	}
	return nil
}

func (f *FakeDriver) ScrollBy(ctx context.Context, viewports float64) error {
	f.record("ScrollBy")
	if f.ScrollByFunc != nil {
		return f.ScrollByFunc(ctx, viewports)
	}
	return nil
}

func (f *FakeDriver) Query(ctx context.Context, scope, selector string) ([]browser.Element, error) {
	f.record("Query")
	if f.QueryFunc != nil {
		return f.QueryFunc(ctx, scope, selector)
	}
	return nil, nil
}

func (f *FakeDriver) ReadText(ctx context.Context, handle string) (string, error) {
	f.record("ReadText")
	if f.ReadTextFunc != nil {
		return f.ReadTextFunc(ctx, handle)
	}
	return "", nil
}

func (f *FakeDriver) WriteText(ctx context.Context, handle, text string) error {
	f.record("WriteText")
	if f.WriteTextFunc != nil {
		return f.WriteTextFunc(ctx, handle, text)
	}
	return nil
}

func (f *FakeDriver) SetText(ctx context.Context, handle, text string) error {
	f.record("SetText")
	if f.SetTextFunc != nil {
		return f.SetTextFunc(ctx, handle, text)
	}
	return nil
}

func (f *FakeDriver) Dispatch(ctx context.Context, handle string, in browser.Interaction) error {
	f.record("Dispatch:" + string(in.Kind))
	if f.DispatchFunc != nil {
		return f.DispatchFunc(ctx, handle, in)
	}
	return nil
}

func (f *FakeDriver) IsAttached(ctx context.Context, handle string) (bool, error) {
	f.record("IsAttached")
	if f.IsAttachedFunc != nil {
		return f.IsAttachedFunc(ctx, handle)
	}
	return true, nil
}

func (f *FakeDriver) SetAttribute(ctx context.Context, handle, name, value string) error {
	f.record("SetAttribute")
	if f.SetAttributeFunc != nil {
		return f.SetAttributeFunc(ctx, handle, name, value)
	}
	return nil
}

func (f *FakeDriver) Evaluate(ctx context.Context, script string, out any) error {
	f.record("Evaluate")
	if f.EvaluateFunc != nil {
		return f.EvaluateFunc(ctx, script, out)
	}
	return nil
}

func (f *FakeDriver) Close(ctx context.Context) error {
	f.record("Close")
	if f.CloseFunc != nil {
		return f.CloseFunc(ctx)
	}
	return nil
}
