package booking

import (
	"context"
	"time"

	sessionRepo "tutorly/database/repository/session"
	userRepo "tutorly/database/repository/user"
	"tutorly/models"
	"tutorly/services/calendar"

	"github.com/hibiken/asynq"
)

// SyncStatus classifies the outcome of mirroring a local change to the
// external provider.
type SyncStatus string

const (
	SyncOK      SyncStatus = "ok"
	SyncFailed  SyncStatus = "failed"
	SyncSkipped SyncStatus = "skipped"
)

// SyncResult reports the provider side effect attached to a committed local
// operation. Failure never rolls the local change back.
type SyncResult struct {
	Status SyncStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// BookInput carries a booking request into the orchestrator.
type BookInput struct {
	TeacherID    string
	Subject      string
	StartTime    time.Time
	EndTime      time.Time
	Platform     models.Platform
	Notes        string
	EventTypeURI string
}

// UpdateInput carries a partial session update. Nil fields are untouched.
type UpdateInput struct {
	Status    *models.SessionStatus
	StartTime *time.Time
	EndTime   *time.Time
	Notes     *string
}

// BookingService orchestrates the booking workflows: local validation and
// state transitions commit first, provider mirroring follows best-effort.
type BookingService interface {
	Book(ctx context.Context, studentID string, in BookInput) (*models.Session, SyncResult, error)
	GetSession(ctx context.Context, actorID, sessionID string) (*models.Session, error)
	UpdateSession(ctx context.Context, actorID, sessionID string, in UpdateInput) (*models.Session, SyncResult, error)
	CancelSession(ctx context.Context, actorID, sessionID string) (SyncResult, error)
	ListSessions(ctx context.Context, userID string, role models.Role, status models.SessionStatus, limit int64) ([]models.Session, error)
	UpcomingSessions(ctx context.Context, userID string, role models.Role) ([]models.Session, error)
	TeacherAvailability(ctx context.Context, teacherID string, date *time.Time, subject string) (*TeacherAvailabilityView, error)
	HandleCalendlyWebhook(ctx context.Context, payload CalendlyWebhookPayload) error
	SyncExternal(ctx context.Context, sessionID string) error
}

// DefaultBookingService implements BookingService.
type DefaultBookingService struct {
	Sessions sessionRepo.SessionRepository
	Users    userRepo.UserRepository
	Detector *ConflictDetector
	Google   calendar.Provider
	Calendly calendar.Provider

	// SyncQueue, when set, receives retry tasks for failed provider
	// mirroring. Optional.
	SyncQueue *asynq.Client
}

func (s *DefaultBookingService) providerFor(platform models.Platform) calendar.Provider {
	switch platform {
	case models.PlatformGoogle:
		return s.Google
	case models.PlatformCalendly:
		return s.Calendly
	}
	return nil
}
