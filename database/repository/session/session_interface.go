package sessionRepo

import (
	"context"
	"errors"
	"time"

	"tutorly/models"
)

var (
	// ErrNotFound is returned when the requested session does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned when a transactional write finds an
	// overlapping pending or confirmed session.
	ErrConflict = errors.New("overlapping session exists")
)

// SessionRepository defines data access for tutoring sessions. The *IfFree
// methods run the overlap check and the write inside one MongoDB
// transaction, so two concurrent bookings for the same teacher cannot both
// pass the check.
type SessionRepository interface {
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error

	// CreateIfFree inserts the session unless an overlapping pending or
	// confirmed session exists for its teacher or its student.
	CreateIfFree(ctx context.Context, session *models.Session) error
	// UpdateTimesIfFree moves a session to a new interval unless it would
	// overlap another active session of the teacher or of the student,
	// excluding the session itself.
	UpdateTimesIfFree(ctx context.Context, id string, start, end time.Time) (*models.Session, error)

	// ListOverlapping returns pending/confirmed sessions of the user that
	// overlap [start,end), excluding excludeID when non-empty. role selects
	// whether the user is matched as teacher or student.
	ListOverlapping(ctx context.Context, userID string, role models.Role, start, end time.Time, excludeID string) ([]models.Session, error)
	// ListActiveForTeacher returns all pending/confirmed sessions of a
	// teacher.
	ListActiveForTeacher(ctx context.Context, teacherID string) ([]models.Session, error)
	// ListByUser returns the user's sessions, newest first; status may be
	// empty and limit <= 0 means no limit.
	ListByUser(ctx context.Context, userID string, role models.Role, status models.SessionStatus, limit int64) ([]models.Session, error)
	// ListUpcoming returns the user's pending/confirmed sessions starting
	// in [now, until).
	ListUpcoming(ctx context.Context, userID string, role models.Role, now, until time.Time) ([]models.Session, error)

	// FindByCalendlyURI looks a session up by its stored Calendly event URI.
	FindByCalendlyURI(ctx context.Context, uri string) (*models.Session, error)
	// FindUnsyncedCalendly finds a pending Calendly session with the given
	// start time that has not yet received an external event reference.
	FindUnsyncedCalendly(ctx context.Context, start time.Time) (*models.Session, error)

	// CompletePast marks confirmed sessions whose end time has passed as
	// completed and returns how many were updated.
	CompletePast(ctx context.Context, now time.Time) (int64, error)
}
