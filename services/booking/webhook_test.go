package booking

import (
	"context"
	"testing"
	"time"

	"tutorly/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calendlyFixture(t *testing.T) (*bookingFixture, *models.Session) {
	t.Helper()
	f := newBookingFixture(t)

	teacher, err := f.users.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	teacher.CalendlyConnected = true
	require.NoError(t, f.users.Update(context.Background(), teacher))

	in := mondayBooking(60)
	in.Platform = models.PlatformCalendly
	in.EventTypeURI = "https://api.calendly.com/event_types/et-1"
	f.calendly.ref = calendarRef("uuid-1", "https://api.calendly.com/scheduled_events/uuid-1", "")

	session, sync, err := f.svc.Book(context.Background(), "stu1", in)
	require.NoError(t, err)
	require.Equal(t, SyncOK, sync.Status)
	return f, session
}

func TestWebhookInviteeCreatedConfirms(t *testing.T) {
	f, session := calendlyFixture(t)

	payload := CalendlyWebhookPayload{EventType: "invitee.created"}
	payload.Event.URI = session.CalendlyEventURI
	payload.Event.UUID = "uuid-1"
	payload.Event.Location.JoinURL = "https://calendly.com/events/uuid-1/google_meet"

	require.NoError(t, f.svc.HandleCalendlyWebhook(context.Background(), payload))

	stored, err := f.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, stored.Status)
	assert.Equal(t, "https://calendly.com/events/uuid-1/google_meet", stored.MeetLink)
}

func TestWebhookInviteeCreatedFallbackByStartTime(t *testing.T) {
	// The local create never stored a URI: match on platform, status, and
	// start time instead.
	f := newBookingFixture(t)
	teacher, err := f.users.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	teacher.CalendlyConnected = true
	require.NoError(t, f.users.Update(context.Background(), teacher))

	f.calendly.fail = true
	in := mondayBooking(60)
	in.Platform = models.PlatformCalendly
	in.EventTypeURI = "https://api.calendly.com/event_types/et-1"
	session, sync, err := f.svc.Book(context.Background(), "stu1", in)
	require.NoError(t, err)
	require.Equal(t, SyncFailed, sync.Status)

	payload := CalendlyWebhookPayload{EventType: "invitee.created"}
	payload.Event.URI = "https://api.calendly.com/scheduled_events/uuid-99"
	payload.Event.StartTime = session.StartTime

	require.NoError(t, f.svc.HandleCalendlyWebhook(context.Background(), payload))

	stored, err := f.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, stored.Status)
	assert.Equal(t, "https://api.calendly.com/scheduled_events/uuid-99", stored.CalendlyEventURI)
}

func TestWebhookInviteeCanceled(t *testing.T) {
	f, session := calendlyFixture(t)

	payload := CalendlyWebhookPayload{EventType: "invitee.canceled"}
	payload.Event.URI = session.CalendlyEventURI

	require.NoError(t, f.svc.HandleCalendlyWebhook(context.Background(), payload))

	stored, err := f.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, stored.Status)

	// A replayed cancellation is a no-op.
	require.NoError(t, f.svc.HandleCalendlyWebhook(context.Background(), payload))
}

func TestWebhookUnmatchedAndUnknownEventsAcked(t *testing.T) {
	f := newBookingFixture(t)

	payload := CalendlyWebhookPayload{EventType: "invitee.created"}
	payload.Event.URI = "https://api.calendly.com/scheduled_events/nothing"
	payload.Event.StartTime = time.Now().Add(48 * time.Hour)
	require.NoError(t, f.svc.HandleCalendlyWebhook(context.Background(), payload))

	unknown := CalendlyWebhookPayload{EventType: "routing_form_submission.created"}
	require.NoError(t, f.svc.HandleCalendlyWebhook(context.Background(), unknown))
}

func TestWebhookTerminalSessionUntouched(t *testing.T) {
	f, session := calendlyFixture(t)

	_, err := f.svc.CancelSession(context.Background(), "stu1", session.ID)
	require.NoError(t, err)

	payload := CalendlyWebhookPayload{EventType: "invitee.created"}
	payload.Event.URI = session.CalendlyEventURI
	require.NoError(t, f.svc.HandleCalendlyWebhook(context.Background(), payload))

	stored, err := f.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, stored.Status)
}
