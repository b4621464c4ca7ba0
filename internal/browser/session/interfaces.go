// internal/browser/session/interfaces.go
package session

import (
	"context"

	"github.com/chromedp/chromedp"
)

// ActionExecutor runs chromedp actions against the session's active tab.
// The implementation combines the operational ctx with the tab context so
// actions carry the CDP target while honouring the caller's deadline.
type ActionExecutor interface {
	RunActions(ctx context.Context, actions ...chromedp.Action) error
}
