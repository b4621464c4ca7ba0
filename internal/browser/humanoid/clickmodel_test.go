// FILE: ./internal/browser/humanoid/clickmodel_test.go
package humanoid

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
)

func setupClickTest(t *testing.T) (*Humanoid, *mockExecutor) {
	mock := newMockExecutor(t)
	mock.MockGetElementGeometry = func(ctx context.Context, selector string) (*schemas.ElementGeometry, error) {
		if selector == "#target" {
			return rectGeometry(100, 100, 50, 50), nil
		}
		return nil, errors.New("element not found")
	}
	return NewTestHumanoid(mock, 99), mock
}

func TestClick(t *testing.T) {
	h, mock := setupClickTest(t)

	require.NoError(t, h.Click(context.Background(), "#target"))

	events := mock.events()
	require.GreaterOrEqual(t, len(events), 3)
	press := mock.eventsOfType(schemas.MousePress)
	release := mock.eventsOfType(schemas.MouseRelease)
	require.Len(t, press, 1)
	require.Len(t, release, 1)

	last := events[len(events)-1]
	assert.Equal(t, schemas.MouseRelease, last.Type)
	assert.Equal(t, events[len(events)-2].Type, schemas.MousePress)
	assert.Equal(t, schemas.ButtonLeft, press[0].Button)
	assert.Equal(t, int64(1), press[0].Buttons)
	assert.Equal(t, int64(0), release[0].Buttons)
	assert.Equal(t, press[0].X, release[0].X)
	assert.Equal(t, press[0].Y, release[0].Y)

	// The click lands inside the inset box, not necessarily the center.
	assert.GreaterOrEqual(t, press[0].X, 100+50*h.cfg.ClickInsetRatio)
	assert.LessOrEqual(t, press[0].X, 150-50*h.cfg.ClickInsetRatio)
	assert.GreaterOrEqual(t, press[0].Y, 100+50*h.cfg.ClickInsetRatio)
	assert.LessOrEqual(t, press[0].Y, 150-50*h.cfg.ClickInsetRatio)

	moves := mock.eventsOfType(schemas.MouseMove)
	assert.Greater(t, len(moves), 1, "pointer travels along a multi-step path")
	assert.Equal(t, Vector2D{X: press[0].X, Y: press[0].Y}, h.Position())
}

func TestClick_PointVaries(t *testing.T) {
	h, mock := setupClickTest(t)
	seen := make(map[Vector2D]bool)
	for i := 0; i < 10; i++ {
		require.NoError(t, h.Click(context.Background(), "#target"))
	}
	for _, p := range mock.eventsOfType(schemas.MousePress) {
		seen[Vector2D{X: p.X, Y: p.Y}] = true
	}
	assert.Greater(t, len(seen), 1, "click points are randomized")
}

func TestClick_HoldAndPause(t *testing.T) {
	h, mock := setupClickTest(t)
	require.NoError(t, h.Click(context.Background(), "#target"))

	sleeps := mock.sleeps()
	require.GreaterOrEqual(t, len(sleeps), 2)
	hold := sleeps[len(sleeps)-2]
	assert.GreaterOrEqual(t, hold, time.Duration(h.cfg.ClickHoldMinMs)*time.Millisecond)
	assert.LessOrEqual(t, hold, time.Duration(h.cfg.ClickHoldMaxMs)*time.Millisecond)

	after := sleeps[len(sleeps)-1]
	assert.GreaterOrEqual(t, after, h.cfg.ActionDelayBase-h.cfg.ActionDelayJitter)
}

func TestClick_Disabled(t *testing.T) {
	h, mock := setupClickTest(t)
	h.cfg.Enabled = false

	require.NoError(t, h.Click(context.Background(), "#target"))

	events := mock.events()
	require.Len(t, events, 3, "one move, press, release")
	assert.Equal(t, schemas.MouseMove, events[0].Type)
	assert.Equal(t, 125.0, events[0].X)
	assert.Equal(t, 125.0, events[0].Y)
	assert.Empty(t, mock.sleeps())
}

func TestClick_MissingElement(t *testing.T) {
	h, mock := setupClickTest(t)
	mock.MockExecuteScript = func(ctx context.Context, script string, args []interface{}) (json.RawMessage, error) {
		return json.RawMessage(`{"exists":false}`), nil
	}

	err := h.Click(context.Background(), "#gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotInteractable)
	assert.Empty(t, mock.events())
}

func TestClick_ReleasesOnCancelDuringHold(t *testing.T) {
	h, mock := setupClickTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pressed atomic.Bool
	mock.MockDispatchMouseEvent = func(ctx context.Context, data schemas.MouseEventData) error {
		if data.Type == schemas.MousePress {
			pressed.Store(true)
		}
		return nil
	}
	mock.MockSleep = func(ctx context.Context, d time.Duration) error {
		if pressed.Load() {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	err := h.Click(ctx, "#target")
	assert.ErrorIs(t, err, context.Canceled)

	events := mock.events()
	assert.Equal(t, schemas.MouseRelease, events[len(events)-1].Type, "button is never left pressed")
}
