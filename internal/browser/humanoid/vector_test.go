package humanoid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVector2D(t *testing.T) {
	a := Vector2D{X: 3, Y: 4}
	b := Vector2D{X: 1, Y: -2}

	assert.Equal(t, Vector2D{X: 4, Y: 2}, a.Add(b))
	assert.Equal(t, Vector2D{X: 2, Y: 6}, a.Sub(b))
	assert.Equal(t, Vector2D{X: 6, Y: 8}, a.Mul(2))
	assert.Equal(t, 5.0, a.Mag())
	assert.Equal(t, 5.0, Vector2D{}.Dist(a))
	assert.Equal(t, Vector2D{X: -4, Y: 3}, a.Perp())
	assert.Equal(t, Vector2D{X: 2, Y: 1}, a.Lerp(b, 0.5))
}

func TestVector2D_Normalize(t *testing.T) {
	n := Vector2D{X: 3, Y: 4}.Normalize()
	assert.InDelta(t, 1.0, n.Mag(), 1e-9)
	assert.InDelta(t, 0.6, n.X, 1e-9)

	assert.Equal(t, Vector2D{}, Vector2D{}.Normalize())
	assert.False(t, math.IsNaN(Vector2D{X: 1e-12}.Normalize().X))
}
