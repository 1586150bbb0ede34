package flow

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveFlow means the user has no conversation in progress.
	ErrNoActiveFlow = errors.New("flow: no active flow")
	// ErrInvalidInput means the input kind or content was rejected by the current step.
	ErrInvalidInput = errors.New("flow: invalid input")
	// ErrStaleAction means an action token refers to a step or item that is no longer current.
	ErrStaleAction = errors.New("flow: stale action")
	// ErrIncompleteRecord means collected data misses required fields at review time.
	ErrIncompleteRecord = errors.New("flow: incomplete record")
	// ErrPersistence means the storage collaborator failed; the session is kept for a retry.
	ErrPersistence = errors.New("flow: persistence failure")
	// ErrNothingSelected means a selection was confirmed with no items toggled on.
	ErrNothingSelected = errors.New("flow: nothing selected")
	// ErrAwaitingConfirm means a message arrived while the review waits for
	// its buttons. It matches ErrInvalidInput.
	ErrAwaitingConfirm = fmt.Errorf("%w: review awaits confirmation", ErrInvalidInput)
)

// PersistenceError wraps the storage failure behind ErrPersistence.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("flow: persistence failure: %v", e.Err)
}

// Is reports ErrPersistence as a match.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Code satisfies the router's error-code extraction for handler summaries.
func (e *PersistenceError) Code() string { return "persistence_failure" }

func incomplete(err error) error {
	if err == nil || errors.Is(err, ErrIncompleteRecord) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrIncompleteRecord, err)
}
