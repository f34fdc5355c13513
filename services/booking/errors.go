package booking

import (
	"fmt"

	"tutorly/models"
)

// ValidationError reports malformed or out-of-range input. Never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// SlotUnavailableError reports a booking conflict; the client may retry with
// a different slot.
type SlotUnavailableError struct {
	Message string
}

func (e *SlotUnavailableError) Error() string { return e.Message }

// TransitionError reports an illegal lifecycle state change, identifying the
// attempted pair.
type TransitionError struct {
	From models.SessionStatus
	To   models.SessionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

// RescheduleError reports an attempt to move a session that is no longer
// pending.
type RescheduleError struct {
	Status models.SessionStatus
}

func (e *RescheduleError) Error() string {
	return fmt.Sprintf("can only reschedule pending sessions, session is %s", e.Status)
}

// ForbiddenError reports that the actor lacks rights over the resource.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// TerminalError reports an operation on a session already in a terminal
// state.
type TerminalError struct {
	Status models.SessionStatus
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("session is already %s", e.Status)
}
