// internal/navigator/session.go
package navigator

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
	"github.com/xkilldash9x/checkout-navigator/internal/browser/humanoid"
	"github.com/xkilldash9x/checkout-navigator/internal/resolver"
)

// automationSession is the state of one run. It is created by Run, passed by
// pointer through the stages and discarded when the outcome is built, so
// concurrent runs share nothing.
type automationSession struct {
	runID   string
	req     schemas.BookingRequest
	started time.Time
	clock   func() time.Time
	logger  *zap.Logger

	browser  Browser
	human    humanoid.Controller
	resolver *resolver.Resolver

	// stage is the stage being worked on; reached is the last one that completed.
	stage   schemas.Stage
	reached schemas.Stage

	// candidates are the search results selectTarget tries in order.
	candidates []resolver.Match

	fallbackURL string
	// lastURL is the most recent page URL the run observed.
	lastURL string
	log     []string

	progress ProgressFunc
}

// record appends a line to the automation log and mirrors it to zap.
func (s *automationSession) record(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.log = append(s.log, fmt.Sprintf("[%s] %s", s.stage, msg))
	s.logger.Debug(msg, zap.Stringer("stage", s.stage))
}

// enter moves the run to stage and reports the transition.
func (s *automationSession) enter(stage schemas.Stage, message string) {
	s.stage = stage
	s.record("%s", message)
	s.emit(message)
}

// emit calls the progress callback. A panicking callback is logged and ignored.
func (s *automationSession) emit(message string) {
	if s.progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Progress callback panicked.", zap.Any("panic", r), zap.Stringer("stage", s.stage))
		}
	}()
	s.progress(schemas.ProgressEvent{
		StageIndex: int(s.stage),
		Stage:      s.stage,
		Message:    message,
	})
}

// outcome builds the run result for the terminal stage.
func (s *automationSession) outcome(terminal schemas.Stage, kind schemas.ErrorKind) schemas.AutomationOutcome {
	log := make([]string, len(s.log))
	copy(log, s.log)
	return schemas.AutomationOutcome{
		RunID:         s.runID,
		Success:       kind != schemas.ErrorKindLaunchFailure,
		FallbackURL:   s.fallbackURL,
		Degraded:      terminal == schemas.StageDegraded,
		Stage:         terminal,
		AutomationLog: log,
		ErrorKind:     kind,
		Duration:      s.clock().Sub(s.started),
	}
}
