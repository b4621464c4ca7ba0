// Package navigator drives one browser through a site's checkout flow: search,
// pick the property, pick a room, fill the guest form and stop at the payable
// page. Every run ends in a structured outcome carrying a URL the caller can
// present, whether or not automation got there.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
	"github.com/xkilldash9x/checkout-navigator/internal/browser/humanoid"
	"github.com/xkilldash9x/checkout-navigator/internal/config"
	"github.com/xkilldash9x/checkout-navigator/internal/fallback"
	"github.com/xkilldash9x/checkout-navigator/internal/observability"
	"github.com/xkilldash9x/checkout-navigator/internal/resolver"
)

// closeTimeout bounds the graceful browser shutdown at the end of a run.
const closeTimeout = 10 * time.Second

// ProgressFunc receives one event per stage transition, the last one for the
// terminal stage. It runs on the run's goroutine and must not block.
type ProgressFunc func(schemas.ProgressEvent)

// RunOption customizes one run.
type RunOption func(*runOptions)

type runOptions struct {
	progress ProgressFunc
	deadline time.Duration
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) RunOption {
	return func(o *runOptions) { o.progress = fn }
}

// WithDeadline overrides the configured run deadline.
func WithDeadline(d time.Duration) RunOption {
	return func(o *runOptions) {
		if d > 0 {
			o.deadline = d
		}
	}
}

// Navigator runs checkout automations. It holds no per-run state and is safe
// for concurrent use; each run gets its own browser.
type Navigator struct {
	cfg      config.Interface
	launcher Launcher
	fallback *fallback.Builder
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Navigator.
func New(cfg config.Interface, launcher Launcher, logger *zap.Logger) *Navigator {
	if logger == nil {
		logger = observability.GetLogger()
	}
	ncfg := cfg.Navigator()
	return &Navigator{
		cfg:      cfg,
		launcher: launcher,
		fallback: fallback.New(ncfg.Site, fallback.WithCurrency(ncfg.Currency)),
		logger:   logger.Named("navigator"),
		now:      time.Now,
	}
}

// FallbackURL returns the search URL for req without launching a browser.
func (n *Navigator) FallbackURL(req schemas.BookingRequest) string {
	return n.fallback.Build(req.Normalize(n.now()))
}

// Run executes one automation and always returns an outcome. The outcome's
// Success is false only when the browser could not be launched.
func (n *Navigator) Run(ctx context.Context, req schemas.BookingRequest, opts ...RunOption) schemas.AutomationOutcome {
	ncfg := n.cfg.Navigator()
	o := runOptions{deadline: ncfg.RunDeadline}
	for _, opt := range opts {
		opt(&o)
	}

	started := n.now()
	req = req.Normalize(started)
	runID := uuid.New().String()
	s := &automationSession{
		runID:       runID,
		req:         req,
		started:     started,
		clock:       n.now,
		logger:      observability.ForRun(n.logger, runID, req.TargetName),
		stage:       schemas.StageInit,
		reached:     schemas.StageInit,
		fallbackURL: n.fallback.Build(req),
		progress:    o.progress,
	}

	runCtx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	s.logger.Info("Starting checkout automation.", zap.Duration("deadline", o.deadline))
	s.enter(schemas.StageInit, "launching browser for "+req.SearchTerm())
	s.record("fallback URL %s", s.fallbackURL)

	b, err := n.launcher.Launch(runCtx, o.deadline)
	if err != nil {
		if runCtx.Err() != nil {
			s.record("deadline reached during launch: %v", err)
			return n.finish(s, schemas.StageDegraded, schemas.ErrorKindDeadlineExceeded)
		}
		s.record("browser launch failed: %v", err)
		return n.finish(s, schemas.StageFailed, schemas.ErrorKindLaunchFailure)
	}
	s.browser = b
	s.human = humanoid.New(n.cfg.Browser().Humanoid, s.logger, b)
	s.resolver = resolver.New(s.logger)

	err = n.drive(runCtx, s)
	return n.conclude(runCtx, s, err)
}

type step struct {
	stage   schemas.Stage
	message string
	run     func(context.Context, *automationSession) error
}

// drive executes the stages in order. It stops at the first failing stage.
func (n *Navigator) drive(ctx context.Context, s *automationSession) error {
	steps := []step{
		{schemas.StageSearching, "searching for " + s.req.SearchTerm(), n.search},
		{schemas.StageLocatingTarget, "locating " + s.req.TargetName, n.locateTarget},
		{schemas.StageSelectingTarget, "opening the property page", n.selectTarget},
		{schemas.StageSelectingSubOption, "selecting a room", n.selectSubOption},
		{schemas.StageFillingForm, "filling in guest details", n.fillForm},
		{schemas.StageReachingCheckout, "continuing to checkout", n.reachCheckout},
	}
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: s.stage, Kind: schemas.ErrorKindDeadlineExceeded, Err: err}
		}
		s.enter(st.stage, st.message)
		if err := st.run(ctx, s); err != nil {
			return newStageError(st.stage, err)
		}
		s.reached = st.stage
	}
	return nil
}

// conclude maps the result of drive onto a terminal stage, hands the page
// off or closes the browser, and builds the outcome.
func (n *Navigator) conclude(ctx context.Context, s *automationSession, err error) schemas.AutomationOutcome {
	if err == nil {
		url, uerr := s.browser.CurrentURL(ctx)
		if uerr != nil {
			url = s.lastURL
		}
		s.lastURL = url
		s.stage = schemas.StageSucceeded
		s.record("reached checkout at %s", url)
		out := n.handoff(s, n.finish(s, schemas.StageSucceeded, schemas.ErrorKindNone))
		out.CheckoutURL = url
		return out
	}

	var se *StageError
	if !errors.As(err, &se) {
		se = newStageError(s.stage, err)
	}
	if ctx.Err() != nil || s.browser.Expired() {
		se.Kind = schemas.ErrorKindDeadlineExceeded
	}
	s.record("%s: %v", se.Kind, se.Err)

	switch {
	case se.Kind == schemas.ErrorKindDeadlineExceeded:
		s.stage = schemas.StageDegraded
		n.closeBrowser(s)
		out := n.finish(s, schemas.StageDegraded, se.Kind)
		if s.reached >= schemas.StageSelectingTarget {
			out.CheckoutURL = s.lastURL
		}
		return out

	case s.reached < schemas.StageSearching:
		// The search page never loaded; nothing was automated.
		s.stage = schemas.StageFailed
		n.closeBrowser(s)
		return n.finish(s, schemas.StageFailed, se.Kind)

	default:
		s.stage = schemas.StageDegraded
		out := n.finish(s, schemas.StageDegraded, se.Kind)
		if s.reached < schemas.StageSelectingTarget {
			n.closeBrowser(s)
			return out
		}
		if url, uerr := s.browser.CurrentURL(ctx); uerr == nil && url != "" {
			s.lastURL = url
		}
		out.CheckoutURL = s.lastURL
		if n.cfg.Navigator().HandoffOnDegraded {
			return n.handoff(s, out)
		}
		n.closeBrowser(s)
		return out
	}
}

// handoff leaves the browser open for the user. If that is no longer
// possible the browser is closed and the outcome says so.
func (n *Navigator) handoff(s *automationSession, out schemas.AutomationOutcome) schemas.AutomationOutcome {
	if err := s.browser.Handoff(); err != nil {
		s.logger.Warn("Could not hand the browser off.", zap.Error(err))
		n.closeBrowser(s)
		return out
	}
	out.HandedOff = true
	s.logger.Info("Browser handed off to the user.", zap.String("url", s.lastURL))
	return out
}

// closeBrowser shuts the browser down independently of the run context,
// which may already be done.
func (n *Navigator) closeBrowser(s *automationSession) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := s.browser.Close(ctx); err != nil {
		s.logger.Debug("Browser close reported an error.", zap.Error(err))
	}
}

// finish builds the outcome, reports the terminal stage and logs the run summary.
func (n *Navigator) finish(s *automationSession, terminal schemas.Stage, kind schemas.ErrorKind) schemas.AutomationOutcome {
	s.stage = terminal
	if kind == schemas.ErrorKindNone {
		s.emit("checkout page reached")
	} else {
		s.emit(fmt.Sprintf("stopped: %s", kind))
	}
	out := s.outcome(terminal, kind)
	s.logger.Info("Checkout automation finished.",
		zap.Stringer("stage", terminal),
		zap.String("error_kind", string(kind)),
		zap.Duration("duration", out.Duration),
	)
	return out
}
