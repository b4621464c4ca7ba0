package humanoid

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
)

// ErrNotInteractable is returned when an element has no usable on-screen box.
var ErrNotInteractable = errors.New("element is not interactable")

// box is the axis-aligned bounding box of an element's quad.
type box struct {
	Min, Max Vector2D
}

func (b box) center() Vector2D {
	return b.Min.Lerp(b.Max, 0.5)
}

func (b box) width() float64  { return b.Max.X - b.Min.X }
func (b box) height() float64 { return b.Max.Y - b.Min.Y }

// boxFromGeometry converts quad vertices into their bounding box.
func boxFromGeometry(geo *schemas.ElementGeometry) (box, bool) {
	if geo == nil || len(geo.Vertices) < 8 {
		return box{}, false
	}
	b := box{
		Min: Vector2D{X: math.Inf(1), Y: math.Inf(1)},
		Max: Vector2D{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	for i := 0; i+1 < 8; i += 2 {
		x, y := geo.Vertices[i], geo.Vertices[i+1]
		b.Min.X = math.Min(b.Min.X, x)
		b.Min.Y = math.Min(b.Min.Y, y)
		b.Max.X = math.Max(b.Max.X, x)
		b.Max.Y = math.Max(b.Max.Y, y)
	}
	if b.width() <= 0 || b.height() <= 0 {
		return box{}, false
	}
	return b, true
}

// elementBox fetches and validates the geometry for selector.
func (h *Humanoid) elementBox(ctx context.Context, selector string) (box, error) {
	geo, err := h.executor.GetElementGeometry(ctx, selector)
	if err != nil {
		if ctx.Err() != nil {
			return box{}, ctx.Err()
		}
		return box{}, fmt.Errorf("humanoid: geometry retrieval failed for '%s': %w", selector, err)
	}
	b, ok := boxFromGeometry(geo)
	if !ok {
		h.logger.Debug("Element has no usable geometry.", zap.String("selector", selector))
		return box{}, fmt.Errorf("humanoid: '%s': %w", selector, ErrNotInteractable)
	}
	return b, nil
}

// samplePoint picks a click point near the box center, Gaussian-distributed and
// clamped to the box shrunk by the configured inset. Assumes the lock is held.
func (h *Humanoid) samplePoint(b box) Vector2D {
	if !h.cfg.Enabled {
		return b.center()
	}
	inset := h.cfg.ClickInsetRatio
	minX := b.Min.X + b.width()*inset
	maxX := b.Max.X - b.width()*inset
	minY := b.Min.Y + b.height()*inset
	maxY := b.Max.Y - b.height()*inset

	c := b.center()
	p := Vector2D{
		X: c.X + h.rng.NormFloat64()*b.width()/6,
		Y: c.Y + h.rng.NormFloat64()*b.height()/6,
	}
	p.X = math.Max(minX, math.Min(maxX, p.X))
	p.Y = math.Max(minY, math.Min(maxY, p.Y))
	return p
}
