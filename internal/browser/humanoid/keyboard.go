package humanoid

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
)

// Type focuses the element at selector with a click, clears its current
// content with select-all and backspace, then types text one character at a
// time with a per-character delay. Used when a page rejects direct value
// assignment and only reacts to key events.
func (h *Humanoid) Type(ctx context.Context, selector string, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.click(ctx, selector); err != nil {
		return fmt.Errorf("humanoid: failed to focus '%s': %w", selector, err)
	}
	if err := h.clearFocused(ctx); err != nil {
		return fmt.Errorf("humanoid: failed to clear '%s': %w", selector, err)
	}

	if !h.cfg.Enabled {
		if text == "" {
			return nil
		}
		return h.executor.SendKeys(ctx, text)
	}

	for _, r := range text {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h.executor.SendKeys(ctx, string(r)); err != nil {
			return fmt.Errorf("humanoid: failed to send key %q: %w", r, err)
		}
		if err := h.executor.Sleep(ctx, h.jittered(h.cfg.KeyDelayMean, h.cfg.KeyDelayJitter)); err != nil {
			return err
		}
	}
	return nil
}

// clearFocused selects all content of the focused field and deletes it.
// Assumes the lock is held.
func (h *Humanoid) clearFocused(ctx context.Context) error {
	if err := h.executor.DispatchStructuredKey(ctx, schemas.KeyEventData{Key: "a", Modifiers: schemas.ModCtrl}); err != nil {
		return err
	}
	return h.executor.SendKeys(ctx, string(KeyBackspace))
}
