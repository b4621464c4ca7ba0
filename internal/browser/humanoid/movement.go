// internal/browser/humanoid/movement.go
package humanoid

import (
	"context"
	"math"
	"time"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
)

// stepInterval is the nominal time between two pointer-move events.
const stepInterval = 12 * time.Millisecond

// MoveTo moves the pointer to a sampled point inside the element at selector.
func (h *Humanoid) MoveTo(ctx context.Context, selector string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, err := h.elementBox(ctx, selector)
	if err != nil {
		return err
	}
	return h.moveTo(ctx, h.samplePoint(b))
}

// moveTo dispatches an eased path from the current position to target.
// Assumes the lock is held.
func (h *Humanoid) moveTo(ctx context.Context, target Vector2D) error {
	path := h.planPath(h.currentPos, target)
	for _, p := range path {
		if err := h.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := h.executor.DispatchMouseEvent(ctx, schemas.MouseEventData{
			Type: schemas.MouseMove,
			X:    p.X,
			Y:    p.Y,
		}); err != nil {
			return err
		}
		h.currentPos = p
		if h.cfg.Enabled {
			if err := h.executor.Sleep(ctx, h.jittered(stepInterval, stepInterval/3)); err != nil {
				return err
			}
		}
	}
	return nil
}

// planPath returns the intermediate points of a move, ending exactly at target.
// Progress along the line follows an ease-in-out curve; a perpendicular
// deviation that vanishes at both ends bends the path. Assumes the lock is held.
func (h *Humanoid) planPath(start, target Vector2D) []Vector2D {
	if !h.cfg.Enabled {
		return []Vector2D{target}
	}

	dist := start.Dist(target)
	steps := h.cfg.MoveStepsMin
	if span := h.cfg.MoveStepsMax - h.cfg.MoveStepsMin; span > 0 {
		steps += h.rng.Intn(span + 1)
	}
	// Short hops do not need many events.
	if maxSteps := int(dist/4) + 1; steps > maxSteps {
		steps = maxSteps
	}
	if steps < 1 {
		steps = 1
	}

	normal := target.Sub(start).Normalize().Perp()
	// One arc per move, bowing to a random side by up to ~8% of the distance.
	bow := h.rng.NormFloat64() * dist * 0.04

	path := make([]Vector2D, 0, steps)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p := start.Lerp(target, easeInOutCubic(t))
		envelope := math.Sin(math.Pi * t)
		offset := bow*envelope + h.rng.NormFloat64()*h.cfg.PathJitterPx*envelope
		path = append(path, p.Add(normal.Mul(offset)))
	}
	path[len(path)-1] = target
	return path
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}
