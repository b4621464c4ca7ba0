// internal/browser/session/context_utils.go
package session

import (
	"context"
	"errors"
	"time"
)

// CombineContext returns a context that carries the values of primary (the
// chromedp tab context) and is done when either primary or op is done. When op
// has a deadline the combined context inherits it, so an operational timeout
// surfaces as context.DeadlineExceeded rather than a plain cancellation.
func CombineContext(primary, op context.Context) (context.Context, context.CancelFunc) {
	var (
		combined context.Context
		cancel   context.CancelFunc
	)
	dl, hasDeadline := op.Deadline()
	if hasDeadline {
		combined, cancel = context.WithDeadline(primary, dl)
	} else {
		combined, cancel = context.WithCancel(primary)
	}

	stop := context.AfterFunc(op, func() {
		// The inherited deadline fires on its own with the right error.
		if hasDeadline && errors.Is(op.Err(), context.DeadlineExceeded) {
			return
		}
		cancel()
	})
	return combined, func() {
		stop()
		cancel()
	}
}

// valueOnlyContext keeps the parent's values but drops its deadline and
// cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that inherits values from ctx but is never
// canceled with it. Used for cleanup that must outlive an expired run.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
