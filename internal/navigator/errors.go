// internal/navigator/errors.go
package navigator

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
	"github.com/xkilldash9x/checkout-navigator/internal/browser/humanoid"
	"github.com/xkilldash9x/checkout-navigator/internal/browser/session"
	"github.com/xkilldash9x/checkout-navigator/internal/resolver"
)

// ErrVerification is returned when an action appeared to do nothing.
var ErrVerification = errors.New("verification failed")

// StageError records why a stage gave up. It never leaves Navigator.Run; the
// run converts it into a terminal outcome.
type StageError struct {
	Stage schemas.Stage
	Kind  schemas.ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// stageDefaultKinds is used when an error carries no recognizable sentinel.
var stageDefaultKinds = map[schemas.Stage]schemas.ErrorKind{
	schemas.StageInit:               schemas.ErrorKindLaunchFailure,
	schemas.StageSearching:          schemas.ErrorKindNavigationTimeout,
	schemas.StageLocatingTarget:     schemas.ErrorKindElementNotFound,
	schemas.StageSelectingTarget:    schemas.ErrorKindVerificationFailure,
	schemas.StageSelectingSubOption: schemas.ErrorKindElementNotFound,
	schemas.StageFillingForm:        schemas.ErrorKindVerificationFailure,
	schemas.StageReachingCheckout:   schemas.ErrorKindVerificationFailure,
}

// newStageError wraps err for stage, classifying it.
func newStageError(stage schemas.Stage, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return &StageError{Stage: stage, Kind: classify(err, stageDefaultKinds[stage]), Err: err}
}

// classify maps err onto the error taxonomy, or returns fallback when nothing matches.
// Per-operation timeouts are not run deadlines; the caller decides that from
// the run context and the browser state.
func classify(err error, fallback schemas.ErrorKind) schemas.ErrorKind {
	var se *StageError
	switch {
	case err == nil:
		return schemas.ErrorKindNone
	case errors.As(err, &se) && se.Kind != schemas.ErrorKindNone:
		return se.Kind
	case errors.Is(err, session.ErrClosed):
		return schemas.ErrorKindDeadlineExceeded
	case errors.Is(err, session.ErrLaunch):
		return schemas.ErrorKindLaunchFailure
	case errors.Is(err, session.ErrNavigationTimeout):
		return schemas.ErrorKindNavigationTimeout
	case errors.Is(err, resolver.ErrNotFound), errors.Is(err, humanoid.ErrNotInteractable):
		return schemas.ErrorKindElementNotFound
	case errors.Is(err, ErrVerification):
		return schemas.ErrorKindVerificationFailure
	default:
		return fallback
	}
}
