// FILE: ./internal/browser/humanoid/mocks_test.go
package humanoid

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
)

// mockExecutor records every primitive the Humanoid dispatches.
//
// Overrides must not touch Humanoid state: they run while h.mu is held.
type mockExecutor struct {
	t  *testing.T
	mu sync.Mutex

	dispatchedEvents []schemas.MouseEventData
	sentKeys         []string
	structuredKeys   []schemas.KeyEventData
	sleepDurations   []time.Duration
	scripts          []string

	MockGetElementGeometry func(ctx context.Context, selector string) (*schemas.ElementGeometry, error)
	MockExecuteScript      func(ctx context.Context, script string, args []interface{}) (json.RawMessage, error)
	MockSleep              func(ctx context.Context, d time.Duration) error
	MockDispatchMouseEvent func(ctx context.Context, data schemas.MouseEventData) error
	MockSendKeys           func(ctx context.Context, keys string) error
}

func newMockExecutor(t *testing.T) *mockExecutor {
	return &mockExecutor{t: t}
}

// rectGeometry builds the quad of an axis-aligned rectangle.
func rectGeometry(x, y, w, h float64) *schemas.ElementGeometry {
	return &schemas.ElementGeometry{
		Vertices: []float64{x, y, x + w, y, x + w, y + h, x, y + h},
		Width:    int64(w),
		Height:   int64(h),
		TagName:  "BUTTON",
	}
}

func (m *mockExecutor) Sleep(ctx context.Context, d time.Duration) error {
	if m.MockSleep != nil {
		return m.MockSleep(ctx, d)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleepDurations = append(m.sleepDurations, d)
	return nil
}

func (m *mockExecutor) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	m.mu.Lock()
	m.dispatchedEvents = append(m.dispatchedEvents, data)
	m.mu.Unlock()
	if m.MockDispatchMouseEvent != nil {
		return m.MockDispatchMouseEvent(ctx, data)
	}
	return ctx.Err()
}

func (m *mockExecutor) SendKeys(ctx context.Context, keys string) error {
	if m.MockSendKeys != nil {
		return m.MockSendKeys(ctx, keys)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentKeys = append(m.sentKeys, keys)
	return nil
}

func (m *mockExecutor) DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structuredKeys = append(m.structuredKeys, data)
	return nil
}

func (m *mockExecutor) GetElementGeometry(ctx context.Context, selector string) (*schemas.ElementGeometry, error) {
	if m.MockGetElementGeometry != nil {
		return m.MockGetElementGeometry(ctx, selector)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rectGeometry(100, 200, 200, 50), nil
}

func (m *mockExecutor) ExecuteScript(ctx context.Context, script string, args []interface{}) (json.RawMessage, error) {
	m.mu.Lock()
	m.scripts = append(m.scripts, script)
	m.mu.Unlock()
	if m.MockExecuteScript != nil {
		return m.MockExecuteScript(ctx, script, args)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"exists":true,"inView":true,"scrolled":false}`), nil
}

// events returns a snapshot of dispatched mouse events.
func (m *mockExecutor) events() []schemas.MouseEventData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schemas.MouseEventData(nil), m.dispatchedEvents...)
}

func (m *mockExecutor) eventsOfType(typ schemas.MouseEventType) []schemas.MouseEventData {
	var out []schemas.MouseEventData
	for _, e := range m.events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockExecutor) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sentKeys...)
}

func (m *mockExecutor) sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.sleepDurations...)
}
