// internal/navigator/browser.go
package navigator

import (
	"context"
	"time"

	"github.com/xkilldash9x/checkout-navigator/internal/browser/humanoid"
	"github.com/xkilldash9x/checkout-navigator/internal/browser/session"
	"github.com/xkilldash9x/checkout-navigator/internal/resolver"
)

// Browser is the page surface one run drives. *session.Session implements it.
type Browser interface {
	resolver.DOM
	humanoid.Executor

	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	// SetValue assigns a form control's value and returns what it holds afterwards.
	SetValue(ctx context.Context, selector, value string) (string, error)
	Value(ctx context.Context, selector string) (string, error)
	// AdoptNewTab switches to a tab opened by the active page, if any.
	AdoptNewTab(ctx context.Context, wait time.Duration) (bool, error)

	Expired() bool
	Handoff() error
	Close(ctx context.Context) error
}

// Launcher starts one browser per run. The browser must be killed once
// deadline passes unless it was handed off.
type Launcher interface {
	Launch(ctx context.Context, deadline time.Duration) (Browser, error)
}

// LaunchFunc adapts a function to Launcher.
type LaunchFunc func(ctx context.Context, deadline time.Duration) (Browser, error)

// Launch calls f.
func (f LaunchFunc) Launch(ctx context.Context, deadline time.Duration) (Browser, error) {
	return f(ctx, deadline)
}

var _ Browser = (*session.Session)(nil)

// SessionLauncher launches real Chrome sessions through c.
func SessionLauncher(c *session.Controller) Launcher {
	return LaunchFunc(func(ctx context.Context, deadline time.Duration) (Browser, error) {
		s, err := c.Launch(ctx, deadline)
		if err != nil {
			// Never return a typed nil inside the interface.
			return nil, err
		}
		return s, nil
	})
}
