package booking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sessionRepo "tutorly/database/repository/session"
	userRepo "tutorly/database/repository/user"
	"tutorly/models"
	"tutorly/services/calendar"
	"tutorly/utils"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TaskTypeCalendarSync is the asynq task type for deferred provider
// mirroring of a session whose synchronous create failed.
const TaskTypeCalendarSync = "calendar:sync"

// SyncTaskPayload is the payload of a TaskTypeCalendarSync task.
type SyncTaskPayload struct {
	SessionID string `json:"sessionId"`
}

// Book executes the booking workflow: validate, check the teacher's subject
// and availability, commit the session atomically, then mirror it to the
// chosen provider best-effort.
func (s *DefaultBookingService) Book(ctx context.Context, studentID string, in BookInput) (*models.Session, SyncResult, error) {
	logger := utils.GetLogger()

	if in.TeacherID == "" || in.Subject == "" {
		return nil, SyncResult{}, NewValidationError("teacher ID, subject, start time, and end time are required")
	}
	if !models.ValidatePlatform(in.Platform) {
		return nil, SyncResult{}, NewValidationError("platform must be 'google' or 'calendly'")
	}
	if in.Platform == models.PlatformCalendly && in.EventTypeURI == "" {
		return nil, SyncResult{}, NewValidationError("event type URI is required for calendly bookings")
	}
	if err := models.ValidateSessionInterval(in.StartTime, in.EndTime, time.Now()); err != nil {
		return nil, SyncResult{}, &ValidationError{Message: err.Error()}
	}

	teacher, err := s.Users.GetByID(ctx, in.TeacherID)
	if err != nil {
		if errors.Is(err, userRepo.ErrNotFound) {
			return nil, SyncResult{}, &NotFoundError{Resource: "teacher"}
		}
		return nil, SyncResult{}, err
	}
	if !teacher.IsTeacher() {
		return nil, SyncResult{}, &NotFoundError{Resource: "teacher"}
	}
	if !teacher.Teaches(in.Subject) {
		return nil, SyncResult{}, NewValidationError("teacher does not teach %s", in.Subject)
	}

	student, err := s.Users.GetByID(ctx, studentID)
	if err != nil {
		return nil, SyncResult{}, err
	}

	free, err := s.Detector.IsFree(ctx, in.TeacherID, in.StartTime, in.EndTime, "")
	if err != nil {
		return nil, SyncResult{}, err
	}
	if !free {
		return nil, SyncResult{}, &SlotUnavailableError{Message: "teacher is not available at the requested time"}
	}
	studentFree, err := s.Detector.StudentIsFree(ctx, studentID, in.StartTime, in.EndTime, "")
	if err != nil {
		return nil, SyncResult{}, err
	}
	if !studentFree {
		return nil, SyncResult{}, &SlotUnavailableError{Message: "you already have a session at the requested time"}
	}

	session := &models.Session{
		ID:        uuid.New().String(),
		StudentID: studentID,
		TeacherID: in.TeacherID,
		Subject:   in.Subject,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Platform:  in.Platform,
		Status:    models.StatusPending,
		Notes:     in.Notes,
	}

	// The repository re-runs the overlap check inside a transaction; the
	// detector's read above gives early feedback but this write is the
	// authoritative one.
	if err := s.Sessions.CreateIfFree(ctx, session); err != nil {
		if errors.Is(err, sessionRepo.ErrConflict) {
			return nil, SyncResult{}, &SlotUnavailableError{Message: "teacher is not available at the requested time"}
		}
		return nil, SyncResult{}, err
	}

	sync := s.mirrorCreate(ctx, session, teacher, student, in.EventTypeURI)
	logger.Info("session booked",
		zap.String("sessionID", session.ID),
		zap.String("teacherID", session.TeacherID),
		zap.String("platform", string(session.Platform)),
		zap.String("sync", string(sync.Status)))
	return session, sync, nil
}

// mirrorCreate creates the external event for a freshly committed session
// and attaches the returned reference. Provider failures are downgraded to a
// SyncResult and, when a queue is configured, retried in the background.
func (s *DefaultBookingService) mirrorCreate(ctx context.Context, session *models.Session, teacher, student *models.User, eventTypeURI string) SyncResult {
	logger := utils.GetLogger()

	connected := (session.Platform == models.PlatformGoogle && teacher.GoogleCalendarConnected) ||
		(session.Platform == models.PlatformCalendly && teacher.CalendlyConnected)
	if !connected {
		return SyncResult{Status: SyncSkipped, Detail: "teacher has no connected " + string(session.Platform) + " calendar"}
	}

	provider := s.providerFor(session.Platform)
	if provider == nil {
		return SyncResult{Status: SyncSkipped, Detail: "no adapter for platform " + string(session.Platform)}
	}

	ref, err := provider.CreateEvent(ctx, session.TeacherID, calendar.EventDetails{
		SessionID:    session.ID,
		Subject:      session.Subject,
		Notes:        session.Notes,
		StartTime:    session.StartTime,
		EndTime:      session.EndTime,
		Teacher:      calendar.Participant{Name: teacher.Name, Email: teacher.Email},
		Student:      calendar.Participant{Name: student.Name, Email: student.Email},
		EventTypeURI: eventTypeURI,
	})
	if err != nil {
		logger.Warn("calendar event creation failed, session kept without external ref",
			zap.String("sessionID", session.ID), zap.Error(err))
		s.enqueueSync(session.ID)
		return SyncResult{Status: SyncFailed, Detail: "calendar sync pending: " + err.Error()}
	}

	s.attachRef(session, ref)
	if err := s.Sessions.Update(ctx, session); err != nil {
		logger.Error("failed to store external event ref",
			zap.String("sessionID", session.ID), zap.Error(err))
		return SyncResult{Status: SyncFailed, Detail: "event created but reference not stored"}
	}
	return SyncResult{Status: SyncOK}
}

func (s *DefaultBookingService) attachRef(session *models.Session, ref *calendar.EventRef) {
	switch session.Platform {
	case models.PlatformGoogle:
		session.CalendarEventID = ref.EventID
	case models.PlatformCalendly:
		session.CalendlyEventID = ref.EventID
		session.CalendlyEventURI = ref.EventURI
	}
	if ref.MeetLink != "" {
		session.MeetLink = ref.MeetLink
	}
}

// externalRef returns the stored provider reference of a session, if any.
func externalRef(session *models.Session) (calendar.EventRef, bool) {
	switch session.Platform {
	case models.PlatformGoogle:
		if session.CalendarEventID != "" {
			return calendar.EventRef{EventID: session.CalendarEventID, MeetLink: session.MeetLink}, true
		}
	case models.PlatformCalendly:
		if session.CalendlyEventURI != "" {
			return calendar.EventRef{
				EventID:  session.CalendlyEventID,
				EventURI: session.CalendlyEventURI,
				MeetLink: session.MeetLink,
			}, true
		}
	}
	return calendar.EventRef{}, false
}

// enqueueSync schedules a background retry of the provider mirroring.
func (s *DefaultBookingService) enqueueSync(sessionID string) {
	if s.SyncQueue == nil {
		return
	}
	payload, err := json.Marshal(SyncTaskPayload{SessionID: sessionID})
	if err != nil {
		return
	}
	task := asynq.NewTask(TaskTypeCalendarSync, payload)
	if _, err := s.SyncQueue.Enqueue(task,
		asynq.MaxRetry(5),
		asynq.ProcessIn(30*time.Second),
		asynq.Timeout(time.Minute),
	); err != nil {
		utils.GetLogger().Warn("failed to enqueue calendar sync task",
			zap.String("sessionID", sessionID), zap.Error(err))
	}
}

// SyncExternal retries provider mirroring for a session. It is a no-op when
// the session already carries an external reference or has reached a
// terminal state, which keeps at-least-once task delivery from creating
// duplicate remote events.
func (s *DefaultBookingService) SyncExternal(ctx context.Context, sessionID string) error {
	session, err := s.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessionRepo.ErrNotFound) {
			return nil
		}
		return err
	}
	if session.Synced() || session.IsTerminal() {
		return nil
	}

	teacher, err := s.Users.GetByID(ctx, session.TeacherID)
	if err != nil {
		return err
	}
	student, err := s.Users.GetByID(ctx, session.StudentID)
	if err != nil {
		return err
	}

	// Calendly creates need the original event type; without a stored ref
	// we leave confirmation to the invitee webhook instead of guessing.
	if session.Platform == models.PlatformCalendly {
		utils.GetLogger().Debug("leaving calendly session to webhook reconciliation",
			zap.String("sessionID", session.ID))
		return nil
	}

	sync := s.mirrorCreate(ctx, session, teacher, student, "")
	if sync.Status == SyncFailed {
		return errors.New(sync.Detail)
	}
	return nil
}

// GetSession returns a session after checking the actor participates in it.
func (s *DefaultBookingService) GetSession(ctx context.Context, actorID, sessionID string) (*models.Session, error) {
	session, err := s.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessionRepo.ErrNotFound) {
			return nil, &NotFoundError{Resource: "session"}
		}
		return nil, err
	}
	if _, err := actorRole(session, actorID); err != nil {
		return nil, err
	}
	return session, nil
}

// actorRole resolves which side of the session the actor is on.
func actorRole(session *models.Session, actorID string) (models.Role, error) {
	switch actorID {
	case session.StudentID:
		return models.RoleStudent, nil
	case session.TeacherID:
		return models.RoleTeacher, nil
	}
	return "", &ForbiddenError{Message: "access denied"}
}

// UpdateSession applies a status change, reschedule, or notes edit. The
// local transition commits first; the mirrored event is patched best-effort
// afterwards.
func (s *DefaultBookingService) UpdateSession(ctx context.Context, actorID, sessionID string, in UpdateInput) (*models.Session, SyncResult, error) {
	session, err := s.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessionRepo.ErrNotFound) {
			return nil, SyncResult{}, &NotFoundError{Resource: "session"}
		}
		return nil, SyncResult{}, err
	}
	role, err := actorRole(session, actorID)
	if err != nil {
		return nil, SyncResult{}, err
	}

	if in.Status == nil && in.StartTime == nil && in.EndTime == nil && in.Notes == nil {
		return nil, SyncResult{}, NewValidationError("no valid updates provided")
	}

	rescheduling := in.StartTime != nil || in.EndTime != nil
	if rescheduling {
		if in.StartTime == nil || in.EndTime == nil {
			return nil, SyncResult{}, NewValidationError("both start time and end time are required to reschedule")
		}
		if session.Status != models.StatusPending {
			return nil, SyncResult{}, &RescheduleError{Status: session.Status}
		}
		if err := models.ValidateSessionInterval(*in.StartTime, *in.EndTime, time.Now()); err != nil {
			return nil, SyncResult{}, &ValidationError{Message: err.Error()}
		}

		free, err := s.Detector.IsFree(ctx, session.TeacherID, *in.StartTime, *in.EndTime, session.ID)
		if err != nil {
			return nil, SyncResult{}, err
		}
		if !free {
			return nil, SyncResult{}, &SlotUnavailableError{Message: "teacher is not available at the requested time"}
		}
		studentFree, err := s.Detector.StudentIsFree(ctx, session.StudentID, *in.StartTime, *in.EndTime, session.ID)
		if err != nil {
			return nil, SyncResult{}, err
		}
		if !studentFree {
			return nil, SyncResult{}, &SlotUnavailableError{Message: "student is not available at the requested time"}
		}

		updated, err := s.Sessions.UpdateTimesIfFree(ctx, session.ID, *in.StartTime, *in.EndTime)
		if err != nil {
			if errors.Is(err, sessionRepo.ErrConflict) {
				return nil, SyncResult{}, &SlotUnavailableError{Message: "teacher is not available at the requested time"}
			}
			return nil, SyncResult{}, err
		}
		session = updated
	}

	if in.Status != nil {
		if err := ApplyTransition(session, *in.Status, role); err != nil {
			return nil, SyncResult{}, err
		}
	}
	if in.Notes != nil {
		session.Notes = *in.Notes
	}

	if err := s.Sessions.Update(ctx, session); err != nil {
		return nil, SyncResult{}, err
	}

	sync := s.mirrorUpdate(ctx, session, in)
	return session, sync, nil
}

// mirrorUpdate propagates a committed local update to the external event.
func (s *DefaultBookingService) mirrorUpdate(ctx context.Context, session *models.Session, in UpdateInput) SyncResult {
	ref, ok := externalRef(session)
	if !ok {
		return SyncResult{Status: SyncSkipped, Detail: "session has no external event"}
	}
	provider := s.providerFor(session.Platform)
	if provider == nil {
		return SyncResult{Status: SyncSkipped, Detail: "no adapter for platform " + string(session.Platform)}
	}

	update := calendar.EventUpdate{
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Notes:     in.Notes,
		Cancelled: in.Status != nil && *in.Status == models.StatusCancelled,
	}
	if err := provider.UpdateEvent(ctx, session.TeacherID, ref, update); err != nil {
		utils.GetLogger().Warn("calendar event update failed",
			zap.String("sessionID", session.ID), zap.Error(err))
		return SyncResult{Status: SyncFailed, Detail: "calendar sync pending: " + err.Error()}
	}
	return SyncResult{Status: SyncOK}
}

// CancelSession cancels a session and best-effort cancels its mirrored
// event.
func (s *DefaultBookingService) CancelSession(ctx context.Context, actorID, sessionID string) (SyncResult, error) {
	session, err := s.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessionRepo.ErrNotFound) {
			return SyncResult{}, &NotFoundError{Resource: "session"}
		}
		return SyncResult{}, err
	}
	if _, err := actorRole(session, actorID); err != nil {
		return SyncResult{}, err
	}
	if session.IsTerminal() {
		return SyncResult{}, &TerminalError{Status: session.Status}
	}

	session.Status = models.StatusCancelled
	if err := s.Sessions.Update(ctx, session); err != nil {
		return SyncResult{}, err
	}

	sync := SyncResult{Status: SyncSkipped, Detail: "session has no external event"}
	if ref, ok := externalRef(session); ok {
		provider := s.providerFor(session.Platform)
		if provider != nil {
			if err := provider.CancelEvent(ctx, session.TeacherID, ref, "Session cancelled by user"); err != nil {
				utils.GetLogger().Warn("calendar event cancellation failed",
					zap.String("sessionID", session.ID), zap.Error(err))
				sync = SyncResult{Status: SyncFailed, Detail: err.Error()}
			} else {
				sync = SyncResult{Status: SyncOK}
			}
		}
	}
	return sync, nil
}

// ListSessions returns the user's sessions, newest first.
func (s *DefaultBookingService) ListSessions(ctx context.Context, userID string, role models.Role, status models.SessionStatus, limit int64) ([]models.Session, error) {
	if status != "" && !models.ValidateStatus(status) {
		return nil, NewValidationError("invalid session status %q", status)
	}
	return s.Sessions.ListByUser(ctx, userID, role, status, limit)
}

// UpcomingSessions returns the user's active sessions over the next seven
// days.
func (s *DefaultBookingService) UpcomingSessions(ctx context.Context, userID string, role models.Role) ([]models.Session, error) {
	now := time.Now()
	return s.Sessions.ListUpcoming(ctx, userID, role, now, now.AddDate(0, 0, 7))
}
