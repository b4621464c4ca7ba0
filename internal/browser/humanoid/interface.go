// internal/browser/humanoid/interface.go
package humanoid

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
)

// Controller is the action surface the navigator drives. It is implemented by *Humanoid.
type Controller interface {
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector string, text string) error
	ScrollIntoView(ctx context.Context, selector string) error
	// Pause waits base +/- jitter between actions.
	Pause(ctx context.Context) error
	Hesitate(ctx context.Context, d time.Duration) error
}

// Executor defines the low-level page primitives the Humanoid needs.
type Executor interface {
	Sleep(ctx context.Context, d time.Duration) error
	DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error
	SendKeys(ctx context.Context, keys string) error
	// DispatchStructuredKey presses and releases a key with modifiers held.
	DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error
	GetElementGeometry(ctx context.Context, selector string) (*schemas.ElementGeometry, error)
	// ExecuteScript invokes script, a JavaScript function expression, with args.
	ExecuteScript(ctx context.Context, script string, args []interface{}) (json.RawMessage, error)
}

// ControlKey defines control characters accepted by SendKeys.
type ControlKey string

const (
	KeyBackspace ControlKey = "\b"
	KeyEnter     ControlKey = "\r"
	KeyTab       ControlKey = "\t"
)
