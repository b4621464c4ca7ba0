// internal/browser/humanoid/scrolling.go
package humanoid

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// scrollIntoViewJS centers an element in the viewport when it is not fully
// visible and reports whether it exists.
//
//go:embed scroll_into_view.js
var scrollIntoViewJS string

type scrollResult struct {
	Exists   bool `json:"exists"`
	InView   bool `json:"inView"`
	Scrolled bool `json:"scrolled"`
}

// ScrollIntoView brings the element at selector into the viewport.
func (h *Humanoid) ScrollIntoView(ctx context.Context, selector string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scrollIntoView(ctx, selector)
}

// scrollIntoView assumes the lock is held.
func (h *Humanoid) scrollIntoView(ctx context.Context, selector string) error {
	raw, err := h.executor.ExecuteScript(ctx, scrollIntoViewJS, []interface{}{selector})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("humanoid: scroll into view failed for '%s': %w", selector, err)
	}

	var res scrollResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("humanoid: unexpected scroll result for '%s': %w", selector, err)
	}
	if !res.Exists {
		return fmt.Errorf("humanoid: '%s' is not in the document: %w", selector, ErrNotInteractable)
	}
	if res.Scrolled {
		h.logger.Debug("Scrolled element into view.", zap.String("selector", selector))
		// Let smooth scrolling and lazy layout settle before measuring.
		return h.pause(ctx)
	}
	return nil
}
