// internal/browser/humanoid/humanoid.go
package humanoid

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/checkout-navigator/internal/config"
)

// Humanoid injects timing variance and pointer jitter into page actions.
// It makes no decisions: every method is a pass-through to the Executor.
type Humanoid struct {
	// mu serializes actions and guards rng and currentPos.
	mu         sync.Mutex
	cfg        config.HumanoidConfig
	logger     *zap.Logger
	executor   Executor
	currentPos Vector2D
	rng        *rand.Rand
	// limiter paces pointer-move dispatch.
	limiter *rate.Limiter
}

var _ Controller = (*Humanoid)(nil)

// New creates a Humanoid. The pointer starts at the viewport origin.
func New(cfg config.HumanoidConfig, logger *zap.Logger, executor Executor) *Humanoid {
	return newWithRand(cfg, logger, executor, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewTestHumanoid creates a Humanoid with a seeded RNG and no event pacing.
func NewTestHumanoid(executor Executor, seed int64) *Humanoid {
	cfg := config.NewDefaultConfig().Browser().Humanoid
	cfg.MaxEventsPerSecond = 0
	return newWithRand(cfg, zap.NewNop(), executor, rand.New(rand.NewSource(seed)))
}

func newWithRand(cfg config.HumanoidConfig, logger *zap.Logger, executor Executor, rng *rand.Rand) *Humanoid {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.MaxEventsPerSecond > 0 {
		limit = rate.Limit(cfg.MaxEventsPerSecond)
	}
	return &Humanoid{
		cfg:      cfg,
		logger:   logger.Named("humanoid"),
		executor: executor,
		rng:      rng,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Enabled reports whether variance is injected. When disabled, actions are
// dispatched directly with no delays.
func (h *Humanoid) Enabled() bool {
	return h.cfg.Enabled
}

// Position returns the last dispatched pointer position.
func (h *Humanoid) Position() Vector2D {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentPos
}

// Pause waits ActionDelayBase +/- ActionDelayJitter.
func (h *Humanoid) Pause(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pause(ctx)
}

// Hesitate waits for exactly d through the executor.
func (h *Humanoid) Hesitate(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	return h.executor.Sleep(ctx, d)
}

// pause assumes the lock is held.
func (h *Humanoid) pause(ctx context.Context) error {
	if !h.cfg.Enabled {
		return ctx.Err()
	}
	return h.executor.Sleep(ctx, h.jittered(h.cfg.ActionDelayBase, h.cfg.ActionDelayJitter))
}

// jittered returns base +/- a uniform jitter, never negative. Assumes the lock is held.
func (h *Humanoid) jittered(base, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return base
	}
	d := base + time.Duration((h.rng.Float64()*2-1)*float64(jitter))
	if d < 0 {
		return 0
	}
	return d
}
