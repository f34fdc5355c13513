package booking

import (
	"context"
	"time"

	sessionRepo "tutorly/database/repository/session"
	userRepo "tutorly/database/repository/user"
	"tutorly/models"
	"tutorly/services/calendar"
	"tutorly/utils"

	"go.uber.org/zap"
)

// ConflictDetector decides whether a candidate interval is actually free.
// It joins three sources: the teacher's declared availability, existing
// pending/confirmed sessions, and — for Google-connected teachers — the
// teacher's live external calendar. The external calendar is a read-only,
// best-effort oracle: if it cannot be queried the slot is treated as
// unavailable rather than risking a double-booking.
type ConflictDetector struct {
	Sessions sessionRepo.SessionRepository
	Users    userRepo.UserRepository
	Busy     calendar.BusyChecker
}

// IsFree reports whether [start,end) is bookable for the teacher.
// excludeSessionID is skipped in the session overlap check (used during
// reschedule).
func (d *ConflictDetector) IsFree(ctx context.Context, teacherID string, start, end time.Time, excludeSessionID string) (bool, error) {
	teacher, err := d.Users.GetByID(ctx, teacherID)
	if err != nil {
		return false, err
	}
	if !teacher.IsTeacher() {
		return false, nil
	}

	if !withinAvailability(teacher.Availability, start, end) {
		return false, nil
	}

	overlapping, err := d.Sessions.ListOverlapping(ctx, teacherID, models.RoleTeacher, start, end, excludeSessionID)
	if err != nil {
		return false, err
	}
	if len(overlapping) > 0 {
		return false, nil
	}

	// Calendly-connected teachers are not cross-checked here: Calendly's
	// own event-type availability is authoritative and queried when
	// presenting bookable times.
	if teacher.GoogleCalendarConnected && d.Busy != nil {
		free, err := d.Busy.CheckAvailability(ctx, teacherID, start, end)
		if err != nil {
			// Fail closed: an unreachable calendar means unavailable.
			utils.GetLogger().Warn("external calendar check failed, treating slot as unavailable",
				zap.String("teacherID", teacherID), zap.Error(err))
			return false, nil
		}
		if !free {
			return false, nil
		}
	}

	return true, nil
}

// StudentIsFree reports whether the student has no overlapping active
// session in [start,end).
func (d *ConflictDetector) StudentIsFree(ctx context.Context, studentID string, start, end time.Time, excludeSessionID string) (bool, error) {
	overlapping, err := d.Sessions.ListOverlapping(ctx, studentID, models.RoleStudent, start, end, excludeSessionID)
	if err != nil {
		return false, err
	}
	return len(overlapping) == 0, nil
}

// withinAvailability reports whether the candidate interval is fully
// contained in at least one declared slot.
func withinAvailability(slots []models.AvailabilitySlot, start, end time.Time) bool {
	for i := range slots {
		if slots[i].Covers(start, end) {
			return true
		}
	}
	return false
}
