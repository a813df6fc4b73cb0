// File: internal/browser/context.go
package browser

import (
	"context"
	"time"
)

// CombineContext creates a context derived from ctx1 that is canceled
// when either ctx1 or ctx2 is canceled. It inherits values from ctx1,
// which matters for chromedp where ctx1 carries the CDP target and ctx2
// carries the operational deadline.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext inherits values from its parent but ignores the
// parent's deadline and cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context carrying ctx's values that outlives ctx's
// cancellation. Used for cleanup actions against the CDP target.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
