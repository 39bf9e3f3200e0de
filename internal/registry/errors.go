package registry

import (
	"errors"
	"fmt"
)

// #region errors

// ErrNoActiveVersion is returned by GetActive when no version has been
// activated yet.
var ErrNoActiveVersion = errors.New("no active weight version")

// UnknownVersionError reports an operation on a nonexistent version id.
type UnknownVersionError struct {
	ID string
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("unknown weight version %q", e.ID)
}

// InvalidStateTransitionError reports a lifecycle guard violation. The
// requested transition is aborted and every version keeps its prior state.
type InvalidStateTransitionError struct {
	ID   string
	From State
	Op   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot %s version %s from state %q", e.Op, e.ID, e.From)
}

// ConcurrentActivationError reports a lost race on the single-active
// invariant: another activation changed the active pointer first.
type ConcurrentActivationError struct {
	ID string
}

func (e *ConcurrentActivationError) Error() string {
	return fmt.Sprintf("concurrent activation detected while activating version %s", e.ID)
}

// #endregion
