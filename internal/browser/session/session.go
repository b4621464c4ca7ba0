// internal/browser/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
	"github.com/xkilldash9x/checkout-navigator/internal/browser/stealth"
)

var (
	// ErrNavigationTimeout is returned when a page load does not finish within
	// the navigation timeout.
	ErrNavigationTimeout = errors.New("navigation timed out")
	// ErrClosed is returned by operations on a closed or expired session.
	ErrClosed = errors.New("session closed")
)

// Session is one browser process with one active page. It is driven by a
// single goroutine; the mutex only guards tab switching against Close.
type Session struct {
	*cdpExecutor

	id     string
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu        sync.RWMutex
	tabCtx    context.Context
	tabCancel context.CancelFunc
	targetID  target.ID
	// newTabs buffers page targets opened by the active tab.
	newTabs chan target.ID

	// persona is applied to every tab the session drives.
	persona           schemas.Persona
	navigationTimeout time.Duration
	watchdog          *Watchdog

	// fateMu orders expire against Handoff; the flags are written under it.
	fateMu    sync.Mutex
	expired   atomic.Bool
	handedOff atomic.Bool
	closeOnce sync.Once
	onRelease func()
}

var _ ActionExecutor = (*Session)(nil)

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// activeTab returns the chromedp context of the current page.
func (s *Session) activeTab() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tabCtx
}

// RunActions executes actions on the active tab, bounded by ctx.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	if s.expired.Load() {
		return ErrClosed
	}
	runCtx, cancel := CombineContext(s.activeTab(), ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url in the active tab and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.navigationTimeout)
	defer cancel()

	s.logger.Debug("Navigating.", zap.String("url", url))
	err := s.RunActions(navCtx, chromedp.Navigate(url))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("navigate to %s: %w", url, ErrNavigationTimeout)
	}
	return fmt.Errorf("navigate to %s: %w", url, err)
}

// CurrentURL returns the location of the active tab.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, scriptTimeout, "CurrentURL", chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// QueryAll describes up to limit elements matching selector.
func (s *Session) QueryAll(ctx context.Context, selector string, limit int) ([]schemas.ElementInfo, error) {
	return s.describe(ctx, opQuery, selector, limit)
}

// Ancestors describes up to depth ancestors of the element at selector,
// nearest first.
func (s *Session) Ancestors(ctx context.Context, selector string, depth int) ([]schemas.ElementInfo, error) {
	return s.describe(ctx, opAncestors, selector, depth)
}

func (s *Session) describe(ctx context.Context, op, selector string, n int) ([]schemas.ElementInfo, error) {
	raw, err := s.ExecuteScript(ctx, domJS, []interface{}{op, selector, n, nil})
	if err != nil {
		return nil, fmt.Errorf("%s '%s': %w", op, selector, err)
	}
	var out []schemas.ElementInfo
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s '%s': unexpected result: %w", op, selector, err)
	}
	return out, nil
}

// SetValue assigns value to the form control at selector the way a page
// script would, firing input and change events. It returns the value the
// control holds afterwards.
func (s *Session) SetValue(ctx context.Context, selector, value string) (string, error) {
	res, err := s.valueOp(ctx, opSetValue, selector, value)
	if err != nil {
		return "", err
	}
	return res.Value, nil
}

// Value reads the current value of the form control at selector.
func (s *Session) Value(ctx context.Context, selector string) (string, error) {
	res, err := s.valueOp(ctx, opGetValue, selector, "")
	if err != nil {
		return "", err
	}
	return res.Value, nil
}

func (s *Session) valueOp(ctx context.Context, op, selector, value string) (valueResult, error) {
	var res valueResult
	raw, err := s.ExecuteScript(ctx, domJS, []interface{}{op, selector, 0, value})
	if err != nil {
		return res, fmt.Errorf("%s '%s': %w", op, selector, err)
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return res, fmt.Errorf("%s '%s': unexpected result: %w", op, selector, err)
	}
	if !res.Exists {
		return res, fmt.Errorf("%s: element '%s' not found", op, selector)
	}
	return res, nil
}

// AdoptNewTab switches to a page the active tab opened since the last call,
// waiting up to wait for one to appear. It reports whether a switch happened.
// A zero wait only checks tabs that are already known.
func (s *Session) AdoptNewTab(ctx context.Context, wait time.Duration) (bool, error) {
	var id target.ID
	select {
	case id = <-s.newTabs:
	default:
		if wait <= 0 {
			return false, nil
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case id = <-s.newTabs:
		case <-timer.C:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx, chromedp.WithTargetID(id))
	// The first Run attaches the target and must use tabCtx itself, or the
	// target would detach when a derived context ends.
	attached := make(chan error, 1)
	go func() { attached <- chromedp.Run(tabCtx) }()
	select {
	case err := <-attached:
		if err != nil {
			tabCancel()
			return false, fmt.Errorf("failed to attach new tab %s: %w", id, err)
		}
	case <-ctx.Done():
		tabCancel()
		return false, ctx.Err()
	}

	readyCtx, cancel := CombineContext(tabCtx, ctx)
	defer cancel()
	if err := s.applyPersona(readyCtx); err != nil {
		tabCancel()
		return false, fmt.Errorf("new tab %s: %w", id, err)
	}
	if err := chromedp.Run(readyCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		tabCancel()
		return false, fmt.Errorf("new tab %s never became ready: %w", id, err)
	}

	s.mu.Lock()
	// The previous tab stays open; cancelling its context would close it.
	s.tabCtx, s.tabCancel, s.targetID = tabCtx, tabCancel, id
	s.mu.Unlock()
	s.watchNewTabs(tabCtx)

	s.logger.Debug("Adopted new tab.", zap.String("target_id", string(id)))
	return true, nil
}

// applyPersona brings a freshly attached tab in line with the first one.
// Overrides and the evasions script only affect later documents, so a page
// that already loaded without them is reloaded.
func (s *Session) applyPersona(tabCtx context.Context) error {
	if err := chromedp.Run(tabCtx, stealth.Apply(s.persona, s.logger)); err != nil {
		return fmt.Errorf("failed to apply stealth persona: %w", err)
	}
	var loc string
	if err := chromedp.Run(tabCtx, chromedp.Location(&loc)); err != nil {
		return fmt.Errorf("failed to read location: %w", err)
	}
	if loc == "" || loc == "about:blank" {
		return nil
	}
	s.logger.Debug("Reloading adopted tab under the persona.", zap.String("url", loc))
	if err := chromedp.Run(tabCtx, chromedp.Reload()); err != nil {
		return fmt.Errorf("failed to reload %s: %w", loc, err)
	}
	return nil
}

// watchNewTabs records page targets opened by the tab behind tabCtx.
func (s *Session) watchNewTabs(tabCtx context.Context) {
	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	opener := c.Target.TargetID
	chromedp.ListenBrowser(tabCtx, func(ev interface{}) {
		created, ok := ev.(*target.EventTargetCreated)
		if !ok || created.TargetInfo == nil {
			return
		}
		info := created.TargetInfo
		if info.Type != "page" || info.OpenerID != opener {
			return
		}
		select {
		case s.newTabs <- info.TargetID:
		default:
		}
	})
}

// Expired reports whether the run deadline killed the browser.
func (s *Session) Expired() bool {
	return s.expired.Load()
}

// expire is the watchdog callback. Cancelling the allocator kills Chrome,
// which unblocks any in-flight CDP call.
func (s *Session) expire() {
	s.fateMu.Lock()
	if s.handedOff.Load() {
		s.fateMu.Unlock()
		return
	}
	s.expired.Store(true)
	s.fateMu.Unlock()

	s.logger.Warn("Run deadline reached, killing browser.")
	s.allocCancel()
}

// Handoff leaves the browser running for the user. The watchdog is disarmed;
// the browser stays up until Controller.Shutdown. It fails once the deadline
// has killed the browser.
func (s *Session) Handoff() error {
	s.fateMu.Lock()
	defer s.fateMu.Unlock()
	if s.expired.Load() {
		return ErrClosed
	}
	if s.handedOff.Swap(true) {
		return nil
	}
	s.watchdog.Stop()
	s.logger.Info("Handing browser off to the user.")
	return nil
}

// HandedOff reports whether Handoff was called.
func (s *Session) HandedOff() bool {
	return s.handedOff.Load()
}

// Close shuts the browser down. It is a no-op for a handed-off session until
// the controller shuts down.
func (s *Session) Close(ctx context.Context) error {
	if s.handedOff.Load() {
		return nil
	}
	return s.shutdown(ctx)
}

// shutdown closes the browser gracefully and then kills the process.
func (s *Session) shutdown(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.watchdog.Stop()
		s.logger.Debug("Closing browser session.")

		if !s.expired.Load() {
			done := make(chan error, 1)
			go func() {
				// chromedp.Cancel needs the browser context itself, not a derived one.
				done <- chromedp.Cancel(s.browserCtx)
			}()
			select {
			case err = <-done:
			case <-ctx.Done():
				err = ctx.Err()
			}
		}
		s.mu.Lock()
		if s.tabCancel != nil {
			s.tabCancel()
		}
		s.mu.Unlock()
		s.browserCancel()
		s.allocCancel()
		if s.onRelease != nil {
			s.onRelease()
		}
	})
	return err
}
