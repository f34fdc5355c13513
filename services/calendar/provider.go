package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorly/models"
)

// ErrNotConnected is returned when a teacher has no stored credentials for
// the requested provider.
var ErrNotConnected = errors.New("calendar provider not connected")

// AuthError indicates the stored credentials could not be used or refreshed.
type AuthError struct {
	Platform models.Platform
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth failed: %v", e.Platform, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// UnavailableError indicates the provider could not be reached or returned a
// server-side failure.
type UnavailableError struct {
	Platform models.Platform
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Platform, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Participant identifies one attendee of a mirrored event.
type Participant struct {
	Name  string
	Email string
}

// EventDetails carries everything a provider needs to mirror a session as a
// remote event.
type EventDetails struct {
	SessionID string
	Subject   string
	Notes     string
	StartTime time.Time
	EndTime   time.Time
	Teacher   Participant
	Student   Participant

	// EventTypeURI selects the Calendly event type; unused by Google.
	EventTypeURI string
}

// EventUpdate describes a best-effort mutation of a mirrored event. Nil
// fields are left untouched.
type EventUpdate struct {
	StartTime *time.Time
	EndTime   *time.Time
	Notes     *string
	Cancelled bool
}

// EventRef is the provider-side identity of a mirrored event.
type EventRef struct {
	EventID  string
	EventURI string
	MeetLink string
}

// Provider is the capability surface shared by the two calendar providers.
// All calls check the stored token set first and refresh it through the
// provider's token endpoint when expired, persisting the new set before
// proceeding.
type Provider interface {
	Platform() models.Platform
	CreateEvent(ctx context.Context, teacherID string, details EventDetails) (*EventRef, error)
	UpdateEvent(ctx context.Context, teacherID string, ref EventRef, update EventUpdate) error
	CancelEvent(ctx context.Context, teacherID string, ref EventRef, reason string) error
}

// BusyChecker is the read-only conflict oracle a provider may expose over
// the teacher's live calendar. Only Google implements it.
type BusyChecker interface {
	CheckAvailability(ctx context.Context, teacherID string, start, end time.Time) (bool, error)
}
