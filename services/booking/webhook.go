package booking

import (
	"context"
	"errors"
	"time"

	sessionRepo "tutorly/database/repository/session"
	"tutorly/models"
	"tutorly/utils"

	"go.uber.org/zap"
)

// CalendlyWebhookEvent is the scheduled-event portion of a Calendly webhook
// notification.
type CalendlyWebhookEvent struct {
	URI       string    `json:"uri"`
	UUID      string    `json:"uuid"`
	StartTime time.Time `json:"start_time"`
	Location  struct {
		JoinURL string `json:"join_url"`
	} `json:"location"`
}

// CalendlyWebhookPayload is the body Calendly posts to the webhook endpoint.
type CalendlyWebhookPayload struct {
	EventType string               `json:"event_type"`
	Event     CalendlyWebhookEvent `json:"event"`
}

// HandleCalendlyWebhook reconciles local session state with Calendly
// invitee notifications. Notifications that match no session are
// acknowledged so Calendly does not keep retrying them.
func (s *DefaultBookingService) HandleCalendlyWebhook(ctx context.Context, payload CalendlyWebhookPayload) error {
	logger := utils.GetLogger()

	switch payload.EventType {
	case "invitee.created":
		return s.calendlyInviteeCreated(ctx, payload.Event)
	case "invitee.canceled":
		return s.calendlyInviteeCanceled(ctx, payload.Event)
	default:
		logger.Debug("ignoring calendly webhook event",
			zap.String("eventType", payload.EventType))
		return nil
	}
}

func (s *DefaultBookingService) calendlyInviteeCreated(ctx context.Context, event CalendlyWebhookEvent) error {
	logger := utils.GetLogger()

	session, err := s.findCalendlySession(ctx, event)
	if err != nil {
		return err
	}
	if session == nil {
		logger.Warn("calendly invitee.created matched no session",
			zap.String("eventURI", event.URI),
			zap.Time("startTime", event.StartTime))
		return nil
	}
	if session.IsTerminal() {
		logger.Debug("ignoring invitee.created for terminal session",
			zap.String("sessionID", session.ID),
			zap.String("status", string(session.Status)))
		return nil
	}

	if session.Status == models.StatusPending {
		session.Status = models.StatusConfirmed
	}
	if event.URI != "" {
		session.CalendlyEventURI = event.URI
	}
	if event.UUID != "" {
		session.CalendlyEventID = event.UUID
	}
	if event.Location.JoinURL != "" {
		session.MeetLink = event.Location.JoinURL
	}

	if err := s.Sessions.Update(ctx, session); err != nil {
		return err
	}
	logger.Info("session confirmed via calendly webhook",
		zap.String("sessionID", session.ID),
		zap.String("eventURI", event.URI))
	return nil
}

func (s *DefaultBookingService) calendlyInviteeCanceled(ctx context.Context, event CalendlyWebhookEvent) error {
	logger := utils.GetLogger()

	session, err := s.findCalendlySession(ctx, event)
	if err != nil {
		return err
	}
	if session == nil {
		logger.Debug("calendly invitee.canceled matched no session",
			zap.String("eventURI", event.URI))
		return nil
	}
	if session.IsTerminal() {
		return nil
	}

	session.Status = models.StatusCancelled
	if err := s.Sessions.Update(ctx, session); err != nil {
		return err
	}
	logger.Info("session cancelled via calendly webhook",
		zap.String("sessionID", session.ID),
		zap.String("eventURI", event.URI))
	return nil
}

// findCalendlySession locates the session a webhook refers to. The stored
// event URI is authoritative; when the local create never ran (or raced
// with the webhook) we fall back to a pending calendly session at the same
// start time that has no URI yet.
func (s *DefaultBookingService) findCalendlySession(ctx context.Context, event CalendlyWebhookEvent) (*models.Session, error) {
	if event.URI != "" {
		session, err := s.Sessions.FindByCalendlyURI(ctx, event.URI)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, sessionRepo.ErrNotFound) {
			return nil, err
		}
	}
	if event.StartTime.IsZero() {
		return nil, nil
	}
	session, err := s.Sessions.FindUnsyncedCalendly(ctx, event.StartTime)
	if err != nil {
		if errors.Is(err, sessionRepo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}
