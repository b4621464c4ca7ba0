package humanoid

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
)

// Click scrolls the element into view, moves to a randomized point inside it,
// presses, holds and releases the left button, then pauses.
func (h *Humanoid) Click(ctx context.Context, selector string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.click(ctx, selector)
}

// click assumes the lock is held.
func (h *Humanoid) click(ctx context.Context, selector string) error {
	if err := h.scrollIntoView(ctx, selector); err != nil {
		return err
	}
	b, err := h.elementBox(ctx, selector)
	if err != nil {
		return err
	}
	if err := h.moveTo(ctx, h.samplePoint(b)); err != nil {
		return fmt.Errorf("humanoid: move to '%s' failed: %w", selector, err)
	}

	pos := h.currentPos
	if err := h.executor.DispatchMouseEvent(ctx, schemas.MouseEventData{
		Type:       schemas.MousePress,
		X:          pos.X,
		Y:          pos.Y,
		Button:     schemas.ButtonLeft,
		ClickCount: 1,
		Buttons:    1,
	}); err != nil {
		return err
	}

	if h.cfg.Enabled {
		if err := h.executor.Sleep(ctx, h.holdDuration()); err != nil {
			// Never leave the button pressed on the page.
			_ = h.release(context.WithoutCancel(ctx), pos)
			return err
		}
	}

	if err := h.release(ctx, pos); err != nil {
		return err
	}
	return h.pause(ctx)
}

func (h *Humanoid) release(ctx context.Context, pos Vector2D) error {
	return h.executor.DispatchMouseEvent(ctx, schemas.MouseEventData{
		Type:       schemas.MouseRelease,
		X:          pos.X,
		Y:          pos.Y,
		Button:     schemas.ButtonLeft,
		ClickCount: 1,
		Buttons:    0,
	})
}

// holdDuration is uniform in [ClickHoldMinMs, ClickHoldMaxMs]. Assumes the lock is held.
func (h *Humanoid) holdDuration() time.Duration {
	lo, hi := h.cfg.ClickHoldMinMs, h.cfg.ClickHoldMaxMs
	ms := lo
	if hi > lo {
		ms += h.rng.Intn(hi - lo + 1)
	}
	return time.Duration(ms) * time.Millisecond
}
