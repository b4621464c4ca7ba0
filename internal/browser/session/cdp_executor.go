// internal/browser/session/cdp_executor.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
	"github.com/xkilldash9x/checkout-navigator/internal/browser/humanoid"
)

const (
	inputTimeout  = 5 * time.Second
	scriptTimeout = 10 * time.Second
)

// cdpExecutor implements humanoid.Executor with chromedp actions.
type cdpExecutor struct {
	logger *zap.Logger
	runner ActionExecutor
	// elementTimeout bounds geometry lookups.
	elementTimeout time.Duration
}

var _ humanoid.Executor = (*cdpExecutor)(nil)

// Sleep pauses for d unless ctx ends first. It does not touch the page.
func (e *cdpExecutor) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DispatchMouseEvent dispatches a single mouse event via CDP.
func (e *cdpExecutor) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	p := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y).
		WithButtons(data.Buttons).
		WithClickCount(int64(data.ClickCount))
	if data.Button != "" {
		p = p.WithButton(input.MouseButton(data.Button))
	}
	if data.Type == schemas.MouseWheel {
		p = p.WithDeltaX(data.DeltaX).WithDeltaY(data.DeltaY)
	}
	return e.run(ctx, inputTimeout, "DispatchMouseEvent", p)
}

// SendKeys types keys into the focused element.
func (e *cdpExecutor) SendKeys(ctx context.Context, keys string) error {
	return e.run(ctx, inputTimeout, "SendKeys", chromedp.KeyEvent(keys))
}

// DispatchStructuredKey presses and releases a key with modifiers held.
func (e *cdpExecutor) DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error {
	mods := cdpModifiers(data.Modifiers)
	keyDown := input.DispatchKeyEvent(input.KeyDown).WithModifiers(mods).WithKey(data.Key)
	keyUp := input.DispatchKeyEvent(input.KeyUp).WithModifiers(mods).WithKey(data.Key)
	if len(data.Key) == 1 && data.Key[0] >= 'a' && data.Key[0] <= 'z' {
		// Shortcuts such as ctrl+a only register with a physical key code.
		code := "Key" + strings.ToUpper(data.Key)
		keyDown = keyDown.WithCode(code)
		keyUp = keyUp.WithCode(code)
	}
	return e.run(ctx, inputTimeout, "DispatchStructuredKey", keyDown, keyUp)
}

func cdpModifiers(m schemas.KeyModifier) input.Modifier {
	var mods input.Modifier
	if m&schemas.ModAlt != 0 {
		mods |= input.ModifierAlt
	}
	if m&schemas.ModCtrl != 0 {
		mods |= input.ModifierCtrl
	}
	if m&schemas.ModMeta != 0 {
		mods |= input.ModifierMeta
	}
	if m&schemas.ModShift != 0 {
		mods |= input.ModifierShift
	}
	return mods
}

// GetElementGeometry returns the on-screen quad of the element at selector.
func (e *cdpExecutor) GetElementGeometry(ctx context.Context, selector string) (*schemas.ElementGeometry, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.elementTimeout)
	defer cancel()

	res, err := e.ExecuteScript(opCtx, geometryJS, []interface{}{selector})
	if err != nil {
		return nil, fmt.Errorf("failed to get geometry for '%s': %w", selector, err)
	}
	if string(res) == "null" || len(res) == 0 {
		e.logger.Debug("Element not found or not visible.", zap.String("selector", selector))
		return nil, fmt.Errorf("element '%s' not found or not visible", selector)
	}

	var geom schemas.ElementGeometry
	if err := json.Unmarshal(res, &geom); err != nil {
		return nil, fmt.Errorf("failed to unmarshal geometry for '%s': %w (payload: %s)", selector, err, string(res))
	}
	return &geom, nil
}

// ExecuteScript invokes the function expression script with args and returns
// its JSON result.
func (e *cdpExecutor) ExecuteScript(ctx context.Context, script string, args []interface{}) (json.RawMessage, error) {
	expr, err := invocation(script, args...)
	if err != nil {
		return nil, err
	}

	var res json.RawMessage
	err = e.run(ctx, scriptTimeout, "ExecuteScript",
		chromedp.Evaluate(expr, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}),
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// run executes actions with a per-operation timeout layered on ctx.
func (e *cdpExecutor) run(ctx context.Context, timeout time.Duration, op string, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := e.runner.RunActions(opCtx, actions...)
	if err == nil {
		return nil
	}
	// Prefer the caller's error so run-level cancellation is not misreported
	// as an operation timeout.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		e.logger.Debug("CDP operation timed out.", zap.String("op", op), zap.Duration("timeout", timeout))
		return fmt.Errorf("cdpExecutor %s timed out after %v: %w", op, timeout, context.DeadlineExceeded)
	}
	return fmt.Errorf("cdpExecutor %s failed: %w", op, err)
}
