// internal/browser/session/watchdog.go
package session

import (
	"sync/atomic"
	"time"
)

// Watchdog fires a callback once when the run deadline passes unless it is
// stopped first.
type Watchdog struct {
	timer *time.Timer
	fired atomic.Bool
}

// NewWatchdog arms a watchdog that calls onExpire after d.
func NewWatchdog(d time.Duration, onExpire func()) *Watchdog {
	w := &Watchdog{}
	w.timer = time.AfterFunc(d, func() {
		w.fired.Store(true)
		onExpire()
	})
	return w
}

// Stop disarms the watchdog. It reports whether the callback was prevented.
func (w *Watchdog) Stop() bool {
	return w.timer.Stop()
}

// Fired reports whether the deadline passed.
func (w *Watchdog) Fired() bool {
	return w.fired.Load()
}
