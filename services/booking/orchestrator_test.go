package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tutorly/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingFixture struct {
	svc      *DefaultBookingService
	sessions *memSessionRepo
	users    *memUserRepo
	google   *stubProvider
	calendly *stubProvider
}

func newBookingFixture(t *testing.T, extraUsers ...*models.User) *bookingFixture {
	t.Helper()

	teacher := mondayTeacher("t1")
	teacher.GoogleCalendarConnected = true
	student := &models.User{
		ID:    "stu1",
		Name:  "Sam Okafor",
		Email: "sam@example.com",
		Role:  models.RoleStudent,
	}

	users := newMemUserRepo(append([]*models.User{teacher, student}, extraUsers...)...)
	sessions := newMemSessionRepo()
	google := &stubProvider{platform: models.PlatformGoogle}
	calendly := &stubProvider{platform: models.PlatformCalendly}

	return &bookingFixture{
		svc: &DefaultBookingService{
			Sessions: sessions,
			Users:    users,
			Detector: &ConflictDetector{Sessions: sessions, Users: users},
			Google:   google,
			Calendly: calendly,
		},
		sessions: sessions,
		users:    users,
		google:   google,
		calendly: calendly,
	}
}

func mondayBooking(minutes int) BookInput {
	monday := nextWeekday(time.Monday)
	return BookInput{
		TeacherID: "t1",
		Subject:   "algebra",
		StartTime: monday.Add(10 * time.Hour),
		EndTime:   monday.Add(10*time.Hour + time.Duration(minutes)*time.Minute),
		Platform:  models.PlatformGoogle,
	}
}

func TestBookCreatesAndMirrors(t *testing.T) {
	f := newBookingFixture(t)
	f.google.ref = calendarRef("evt-123", "", "https://meet.google.com/abc")

	session, sync, err := f.svc.Book(context.Background(), "stu1", mondayBooking(45))
	require.NoError(t, err)
	assert.Equal(t, SyncOK, sync.Status)
	assert.Equal(t, models.StatusPending, session.Status)
	assert.Equal(t, "evt-123", session.CalendarEventID)
	assert.Equal(t, "https://meet.google.com/abc", session.MeetLink)

	require.Len(t, f.google.created, 1)
	assert.Equal(t, session.ID, f.google.created[0].SessionID)
	assert.Equal(t, "sam@example.com", f.google.created[0].Student.Email)

	stored, err := f.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "evt-123", stored.CalendarEventID)
}

func TestBookOverlappingSlotRejected(t *testing.T) {
	f := newBookingFixture(t)

	_, _, err := f.svc.Book(context.Background(), "stu1", mondayBooking(60))
	require.NoError(t, err)

	in := mondayBooking(60)
	in.StartTime = in.StartTime.Add(30 * time.Minute)
	in.EndTime = in.EndTime.Add(30 * time.Minute)
	_, _, err = f.svc.Book(context.Background(), "stu1", in)

	var slotErr *SlotUnavailableError
	require.True(t, errors.As(err, &slotErr), "got %v", err)
}

func TestBookValidationFailures(t *testing.T) {
	f := newBookingFixture(t)

	// Too short.
	_, _, err := f.svc.Book(context.Background(), "stu1", mondayBooking(15))
	var validation *ValidationError
	require.True(t, errors.As(err, &validation), "got %v", err)

	// Unknown platform.
	in := mondayBooking(60)
	in.Platform = "outlook"
	_, _, err = f.svc.Book(context.Background(), "stu1", in)
	require.True(t, errors.As(err, &validation))

	// Calendly without an event type.
	in = mondayBooking(60)
	in.Platform = models.PlatformCalendly
	_, _, err = f.svc.Book(context.Background(), "stu1", in)
	require.True(t, errors.As(err, &validation))

	// Subject the teacher does not offer.
	in = mondayBooking(60)
	in.Subject = "pottery"
	_, _, err = f.svc.Book(context.Background(), "stu1", in)
	require.True(t, errors.As(err, &validation))

	// Unknown teacher.
	in = mondayBooking(60)
	in.TeacherID = "nobody"
	_, _, err = f.svc.Book(context.Background(), "stu1", in)
	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestBookOutsideAvailabilityRejected(t *testing.T) {
	f := newBookingFixture(t)

	in := mondayBooking(60)
	in.StartTime = in.StartTime.Add(9 * time.Hour) // 19:00, window ends 17:00
	in.EndTime = in.EndTime.Add(9 * time.Hour)
	_, _, err := f.svc.Book(context.Background(), "stu1", in)

	var slotErr *SlotUnavailableError
	require.True(t, errors.As(err, &slotErr), "got %v", err)
}

func TestBookSurvivesProviderFailure(t *testing.T) {
	f := newBookingFixture(t)
	f.google.fail = true

	session, sync, err := f.svc.Book(context.Background(), "stu1", mondayBooking(60))
	require.NoError(t, err)
	assert.Equal(t, SyncFailed, sync.Status)
	assert.Contains(t, sync.Detail, "calendar sync pending")

	// The session committed locally without an external ref.
	stored, err := f.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Empty(t, stored.CalendarEventID)
}

func TestBookSkipsMirrorWhenNotConnected(t *testing.T) {
	f := newBookingFixture(t)
	teacher, err := f.users.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	teacher.GoogleCalendarConnected = false
	require.NoError(t, f.users.Update(context.Background(), teacher))

	_, sync, err := f.svc.Book(context.Background(), "stu1", mondayBooking(60))
	require.NoError(t, err)
	assert.Equal(t, SyncSkipped, sync.Status)
	assert.Empty(t, f.google.created)
}

func TestConcurrentBookingsExactlyOneWins(t *testing.T) {
	f := newBookingFixture(t)

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	students := make([]*models.User, attempts)
	for i := range students {
		students[i] = &models.User{ID: "racer-" + string(rune('a'+i)), Role: models.RoleStudent, Email: "r@example.com"}
		require.NoError(t, f.users.Create(context.Background(), students[i]))
	}

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(studentID string) {
			defer wg.Done()
			_, _, err := f.svc.Book(context.Background(), studentID, mondayBooking(60))
			results <- err
		}(students[i].ID)
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		if err == nil {
			won++
			continue
		}
		var slotErr *SlotUnavailableError
		require.True(t, errors.As(err, &slotErr), "got %v", err)
		lost++
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, lost)
}

func TestUpdateSessionConfirmAndComplete(t *testing.T) {
	f := newBookingFixture(t)
	session, _, err := f.svc.Book(context.Background(), "stu1", mondayBooking(60))
	require.NoError(t, err)

	confirmed := models.StatusConfirmed
	updated, _, err := f.svc.UpdateSession(context.Background(), "t1", session.ID, UpdateInput{Status: &confirmed})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)

	// Students cannot confirm or complete.
	completed := models.StatusCompleted
	_, _, err = f.svc.UpdateSession(context.Background(), "stu1", session.ID, UpdateInput{Status: &completed})
	var forbidden *ForbiddenError
	require.True(t, errors.As(err, &forbidden))

	_, _, err = f.svc.UpdateSession(context.Background(), "t1", session.ID, UpdateInput{Status: &completed})
	require.NoError(t, err)
}

func TestUpdateSessionRescheduleOnlyPending(t *testing.T) {
	f := newBookingFixture(t)
	session, _, err := f.svc.Book(context.Background(), "stu1", mondayBooking(60))
	require.NoError(t, err)

	// Pending reschedules work and propagate to the provider.
	newStart := session.StartTime.Add(2 * time.Hour)
	newEnd := session.EndTime.Add(2 * time.Hour)
	updated, sync, err := f.svc.UpdateSession(context.Background(), "stu1", session.ID, UpdateInput{
		StartTime: &newStart,
		EndTime:   &newEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, SyncOK, sync.Status)
	assert.True(t, updated.StartTime.Equal(newStart))
	require.Len(t, f.google.updated, 1)

	// Confirmed sessions cannot be moved.
	confirmed := models.StatusConfirmed
	_, _, err = f.svc.UpdateSession(context.Background(), "t1", session.ID, UpdateInput{Status: &confirmed})
	require.NoError(t, err)

	laterStart := newStart.Add(time.Hour)
	laterEnd := newEnd.Add(time.Hour)
	_, _, err = f.svc.UpdateSession(context.Background(), "stu1", session.ID, UpdateInput{
		StartTime: &laterStart,
		EndTime:   &laterEnd,
	})
	var rescheduleErr *RescheduleError
	require.True(t, errors.As(err, &rescheduleErr), "got %v", err)
	assert.Equal(t, models.StatusConfirmed, rescheduleErr.Status)
}

func TestUpdateSessionRequiresParticipant(t *testing.T) {
	f := newBookingFixture(t)
	session, _, err := f.svc.Book(context.Background(), "stu1", mondayBooking(60))
	require.NoError(t, err)

	notes := "bring the workbook"
	_, _, err = f.svc.UpdateSession(context.Background(), "ghost", session.ID, UpdateInput{Notes: &notes})
	var forbidden *ForbiddenError
	require.True(t, errors.As(err, &forbidden))

	_, err = f.svc.GetSession(context.Background(), "ghost", session.ID)
	require.True(t, errors.As(err, &forbidden))
}

func TestCancelSession(t *testing.T) {
	f := newBookingFixture(t)
	f.google.ref = calendarRef("evt-9", "", "")
	session, _, err := f.svc.Book(context.Background(), "stu1", mondayBooking(60))
	require.NoError(t, err)

	sync, err := f.svc.CancelSession(context.Background(), "stu1", session.ID)
	require.NoError(t, err)
	assert.Equal(t, SyncOK, sync.Status)
	require.Len(t, f.google.cancelled, 1)
	assert.Equal(t, "evt-9", f.google.cancelled[0].EventID)

	stored, err := f.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, stored.Status)

	// Cancelling again hits the terminal guard.
	_, err = f.svc.CancelSession(context.Background(), "stu1", session.ID)
	var terminal *TerminalError
	require.True(t, errors.As(err, &terminal))
	assert.Equal(t, models.StatusCancelled, terminal.Status)
}

func TestSyncExternalRetriesAndDeduplicates(t *testing.T) {
	f := newBookingFixture(t)
	f.google.fail = true

	session, sync, err := f.svc.Book(context.Background(), "stu1", mondayBooking(60))
	require.NoError(t, err)
	require.Equal(t, SyncFailed, sync.Status)

	// Retry once the provider recovers.
	f.google.fail = false
	require.NoError(t, f.svc.SyncExternal(context.Background(), session.ID))
	stored, err := f.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.CalendarEventID)
	require.Len(t, f.google.created, 1)

	// A duplicate delivery does not create a second event.
	require.NoError(t, f.svc.SyncExternal(context.Background(), session.ID))
	assert.Len(t, f.google.created, 1)

	// Unknown sessions are acked, not retried forever.
	require.NoError(t, f.svc.SyncExternal(context.Background(), "gone"))
}

func TestListAndUpcomingSessions(t *testing.T) {
	f := newBookingFixture(t)
	session, _, err := f.svc.Book(context.Background(), "stu1", mondayBooking(60))
	require.NoError(t, err)

	listed, err := f.svc.ListSessions(context.Background(), "stu1", models.RoleStudent, "", 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, session.ID, listed[0].ID)

	listed, err = f.svc.ListSessions(context.Background(), "t1", models.RoleTeacher, models.StatusPending, 10)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	listed, err = f.svc.ListSessions(context.Background(), "t1", models.RoleTeacher, models.StatusCancelled, 10)
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = f.svc.ListSessions(context.Background(), "t1", models.RoleTeacher, "archived", 10)
	var validation *ValidationError
	require.True(t, errors.As(err, &validation))

	upcoming, err := f.svc.UpcomingSessions(context.Background(), "stu1", models.RoleStudent)
	require.NoError(t, err)
	if session.StartTime.Before(time.Now().AddDate(0, 0, 7)) {
		assert.Len(t, upcoming, 1)
	}
}
