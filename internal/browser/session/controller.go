// internal/browser/session/controller.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/checkout-navigator/internal/browser/stealth"
	"github.com/xkilldash9x/checkout-navigator/internal/config"
)

// ErrLaunch wraps every failure to bring up a browser.
var ErrLaunch = errors.New("browser launch failed")

// newTabBuffer bounds how many unadopted tabs are remembered.
const newTabBuffer = 4

// Controller launches one browser process per run and tracks the sessions it
// created until they are closed, so Shutdown can reap handed-off browsers.
type Controller struct {
	cfg    config.Interface
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewController creates a session controller.
func NewController(cfg config.Interface, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:      cfg,
		logger:   logger.Named("session_controller"),
		sessions: make(map[string]*Session),
	}
}

// Launch starts a browser with the configured persona and arms a watchdog
// that kills it after deadline. The browser outlives ctx; only the launch
// itself is bounded by ctx and the configured launch timeout.
func (c *Controller) Launch(ctx context.Context, deadline time.Duration) (*Session, error) {
	bcfg := c.cfg.Browser()
	ncfg := c.cfg.Navigator()

	id := uuid.New().String()
	log := c.logger.With(zap.String("session_id", id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(bcfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Debugf),
	)

	s := &Session{
		id:                id,
		logger:            log,
		allocCancel:       allocCancel,
		browserCtx:        browserCtx,
		browserCancel:     browserCancel,
		tabCtx:            browserCtx,
		tabCancel:         browserCancel,
		newTabs:           make(chan target.ID, newTabBuffer),
		persona:           bcfg.Persona,
		navigationTimeout: ncfg.NavigationTimeout,
	}
	s.cdpExecutor = &cdpExecutor{
		logger:         log.Named("cdp"),
		runner:         s,
		elementTimeout: ncfg.ElementTimeout,
	}
	s.watchdog = NewWatchdog(deadline, s.expire)

	launchCtx, cancel := context.WithTimeout(ctx, bcfg.LaunchTimeout)
	defer cancel()

	if err := c.start(launchCtx, s); err != nil {
		s.watchdog.Stop()
		browserCancel()
		allocCancel()
		if s.Expired() {
			err = fmt.Errorf("%w: %w", err, context.DeadlineExceeded)
		}
		log.Error("Browser launch failed.", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	c.mu.Lock()
	c.sessions[id] = s
	c.mu.Unlock()
	s.onRelease = func() {
		c.mu.Lock()
		delete(c.sessions, id)
		c.mu.Unlock()
	}

	log.Info("Browser session launched.",
		zap.Bool("headless", bcfg.Headless),
		zap.Duration("deadline", deadline),
	)
	return s, nil
}

// start allocates the browser process, attaches the first tab and applies the
// stealth persona.
func (c *Controller) start(ctx context.Context, s *Session) error {
	started := make(chan error, 1)
	go func() {
		// The first Run must use the browser context itself.
		started <- chromedp.Run(s.browserCtx)
	}()
	select {
	case err := <-started:
		if err != nil {
			return fmt.Errorf("failed to start browser: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("browser did not start: %w", ctx.Err())
	}

	if cdpCtx := chromedp.FromContext(s.browserCtx); cdpCtx != nil && cdpCtx.Target != nil {
		s.targetID = cdpCtx.Target.TargetID
	}
	s.watchNewTabs(s.browserCtx)

	if err := s.RunActions(ctx, stealth.Apply(s.persona, s.logger)); err != nil {
		return fmt.Errorf("failed to apply stealth persona: %w", err)
	}
	return nil
}

// Active returns the number of sessions that have not been closed.
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Shutdown closes every remaining session, including handed-off ones.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	remaining := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		remaining = append(remaining, s)
	}
	c.mu.Unlock()

	if len(remaining) == 0 {
		return nil
	}
	c.logger.Info("Shutting down browser sessions.", zap.Int("count", len(remaining)))

	var g errgroup.Group
	for _, s := range remaining {
		g.Go(func() error {
			if err := s.shutdown(ctx); err != nil {
				return fmt.Errorf("session %s: %w", s.ID(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// AllocatorFlags returns the Chrome switches for cfg.
func AllocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := make(map[string]interface{}, len(stealth.AllocatorFlags)+16)
	for k, v := range stealth.AllocatorFlags {
		flags[k] = v
	}
	flags["disable-dev-shm-usage"] = true
	flags["disable-popup-blocking"] = true

	if cfg.Headless {
		flags["headless"] = "new"
		flags["hide-scrollbars"] = true
		flags["mute-audio"] = true
	}
	if cfg.DisableCache {
		flags["disable-cache"] = true
		flags["disk-cache-size"] = "0"
		flags["media-cache-size"] = "0"
	}
	if p := cfg.Persona; p.Width > 0 && p.Height > 0 {
		flags["window-size"] = fmt.Sprintf("%d,%d", p.Width, p.Height)
	}
	if cfg.Persona.UserAgent != "" {
		flags["user-agent"] = cfg.Persona.UserAgent
	}
	if len(cfg.Persona.Languages) > 0 {
		flags["lang"] = cfg.Persona.Languages[0]
	}

	// Extra args win over the defaults above.
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if key == "" {
			continue
		}
		if found {
			flags[key] = value
		} else {
			flags[key] = true
		}
	}
	return flags
}

// AllocatorOptions converts cfg into exec allocator options.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	for k, v := range AllocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(k, v))
	}
	return opts
}
