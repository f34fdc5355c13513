package models

import (
	"errors"
	"fmt"
	"time"
)

// Platform selects which external calendar provider mirrors a session.
type Platform string

const (
	PlatformGoogle   Platform = "google"
	PlatformCalendly Platform = "calendly"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusConfirmed SessionStatus = "confirmed"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

const (
	// MinSessionMinutes and MaxSessionMinutes bound a session's duration.
	MinSessionMinutes = 30
	MaxSessionMinutes = 240
)

// Session represents a booked tutoring appointment between one student and
// one teacher. The external event fields are populated only after a
// successful provider call and are never required for the session to be
// valid.
type Session struct {
	ID        string        `bson:"id" json:"id"`
	StudentID string        `bson:"studentId" json:"studentId"`
	TeacherID string        `bson:"teacherId" json:"teacherId"`
	Subject   string        `bson:"subject" json:"subject"`
	StartTime time.Time     `bson:"startTime" json:"startTime"`
	EndTime   time.Time     `bson:"endTime" json:"endTime"`
	Platform  Platform      `bson:"platform" json:"platform"`
	Status    SessionStatus `bson:"status" json:"status"`
	Notes     string        `bson:"notes,omitempty" json:"notes,omitempty"`

	CalendarEventID  string `bson:"calendarEventId,omitempty" json:"calendarEventId,omitempty"`
	CalendlyEventID  string `bson:"calendlyEventId,omitempty" json:"calendlyEventId,omitempty"`
	CalendlyEventURI string `bson:"calendlyEventUri,omitempty" json:"calendlyEventUri,omitempty"`
	MeetLink         string `bson:"meetLink,omitempty" json:"meetLink,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Interval returns the session's half-open time interval.
func (s *Session) Interval() Interval {
	return Interval{Start: s.StartTime, End: s.EndTime}
}

// Synced reports whether the session carries an external event reference.
func (s *Session) Synced() bool {
	return s.CalendarEventID != "" || s.CalendlyEventURI != ""
}

// IsTerminal reports whether the session is in a terminal state.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusCancelled
}

// ValidatePlatform checks that the platform names a supported provider.
func ValidatePlatform(p Platform) bool {
	return p == PlatformGoogle || p == PlatformCalendly
}

// ValidateStatus checks that the status is one of the lifecycle states.
func ValidateStatus(s SessionStatus) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ValidateSessionInterval checks the shape of a requested session interval:
// start before end, not in the past, and duration within bounds.
func ValidateSessionInterval(start, end, now time.Time) error {
	if start.IsZero() || end.IsZero() {
		return errors.New("invalid date format")
	}
	if !start.Before(end) {
		return errors.New("start time must be before end time")
	}
	if start.Before(now) {
		return errors.New("cannot schedule sessions in the past")
	}
	duration := end.Sub(start).Minutes()
	if duration < MinSessionMinutes {
		return fmt.Errorf("session must be at least %d minutes long", MinSessionMinutes)
	}
	if duration > MaxSessionMinutes {
		return fmt.Errorf("session cannot be longer than %d hours", MaxSessionMinutes/60)
	}
	return nil
}
