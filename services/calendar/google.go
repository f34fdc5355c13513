package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tutorly/config"
	userRepo "tutorly/database/repository/user"
	"tutorly/models"
	"tutorly/utils"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const remoteCallTimeout = 10 * time.Second

// GoogleCalendar mirrors sessions into a teacher's Google Calendar and
// serves as the live conflict oracle for Google-connected teachers.
type GoogleCalendar struct {
	Users userRepo.UserRepository

	conf  *oauth2.Config
	locks *refreshLocks
}

// NewGoogleCalendar builds the adapter from the application OAuth config.
func NewGoogleCalendar(users userRepo.UserRepository) *GoogleCalendar {
	return &GoogleCalendar{
		Users: users,
		conf: &oauth2.Config{
			ClientID:     config.AppConfig.GoogleClientID,
			ClientSecret: config.AppConfig.GoogleClientSecret,
			RedirectURL:  config.AppConfig.GoogleRedirectURI,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				gcal.CalendarScope,
				gcal.CalendarEventsScope,
			},
		},
		locks: newRefreshLocks(),
	}
}

func (g *GoogleCalendar) Platform() models.Platform { return models.PlatformGoogle }

// AuthCodeURL returns the consent URL for a teacher. The teacher id rides in
// the state parameter so the callback can attribute the grant.
func (g *GoogleCalendar) AuthCodeURL(teacherID string) string {
	return g.conf.AuthCodeURL(teacherID,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// HandleCallback exchanges the authorization code and persists the token set.
func (g *GoogleCalendar) HandleCallback(ctx context.Context, code, teacherID string) error {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return &AuthError{Platform: models.PlatformGoogle, Err: err}
	}

	set := &models.OAuthTokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		TokenType:    tok.TokenType,
	}
	return g.Users.SaveTokenSet(ctx, teacherID, models.PlatformGoogle, set)
}

// Disconnect clears the teacher's Google token set.
func (g *GoogleCalendar) Disconnect(ctx context.Context, teacherID string) error {
	return g.Users.SaveTokenSet(ctx, teacherID, models.PlatformGoogle, nil)
}

// tokenFor returns a live access token for the teacher, refreshing and
// persisting the stored set first when it has expired.
func (g *GoogleCalendar) tokenFor(ctx context.Context, teacherID string) (*oauth2.Token, error) {
	teacher, err := g.Users.GetByID(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	set := teacher.TokenSet(models.PlatformGoogle)
	if set == nil {
		return nil, ErrNotConnected
	}

	if !set.Expired(time.Now()) {
		return storedToken(set), nil
	}

	release := g.locks.acquire("google:" + teacherID)
	defer release()

	// Re-read under the lock; another request may have refreshed already.
	teacher, err = g.Users.GetByID(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	set = teacher.TokenSet(models.PlatformGoogle)
	if set == nil {
		return nil, ErrNotConnected
	}
	if !set.Expired(time.Now()) {
		return storedToken(set), nil
	}

	refreshCtx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()
	fresh, err := g.conf.TokenSource(refreshCtx, storedToken(set)).Token()
	if err != nil {
		return nil, &AuthError{Platform: models.PlatformGoogle, Err: err}
	}

	newSet := &models.OAuthTokenSet{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		Expiry:       fresh.Expiry,
		TokenType:    fresh.TokenType,
	}
	if newSet.RefreshToken == "" {
		newSet.RefreshToken = set.RefreshToken
	}
	if err := g.Users.SaveTokenSet(ctx, teacherID, models.PlatformGoogle, newSet); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed google tokens: %w", err)
	}
	return fresh, nil
}

func storedToken(set *models.OAuthTokenSet) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  set.AccessToken,
		RefreshToken: set.RefreshToken,
		Expiry:       set.Expiry,
		TokenType:    set.TokenType,
	}
}

func (g *GoogleCalendar) serviceFor(ctx context.Context, teacherID string) (*gcal.Service, error) {
	tok, err := g.tokenFor(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	svc, err := gcal.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(tok)))
	if err != nil {
		return nil, &UnavailableError{Platform: models.PlatformGoogle, Err: err}
	}
	return svc, nil
}

// CreateEvent inserts a calendar event with a Meet conference request and
// invites both participants. The conference request id is derived from the
// session id so a retried create cannot spawn a second meeting room.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, teacherID string, details EventDetails) (*EventRef, error) {
	svc, err := g.serviceFor(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	notes := details.Notes
	if notes == "" {
		notes = "No additional notes"
	}
	event := &gcal.Event{
		Summary: fmt.Sprintf("Tutoring Session: %s", details.Subject),
		Description: fmt.Sprintf("Tutoring session between %s and %s\n\nSubject: %s\n\nNotes: %s",
			details.Student.Name, details.Teacher.Name, details.Subject, notes),
		Start: &gcal.EventDateTime{DateTime: details.StartTime.Format(time.RFC3339), TimeZone: "UTC"},
		End:   &gcal.EventDateTime{DateTime: details.EndTime.Format(time.RFC3339), TimeZone: "UTC"},
		Attendees: []*gcal.EventAttendee{
			{Email: details.Student.Email, ResponseStatus: "accepted"},
			{Email: details.Teacher.Email, ResponseStatus: "accepted"},
		},
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             fmt.Sprintf("meet-%s", details.SessionID),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
		Reminders: &gcal.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "email", Minutes: 60},
				{Method: "popup", Minutes: 15},
			},
		},
		GuestsCanModify:       false,
		GuestsCanInviteOthers: boolPtr(false),
	}

	callCtx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()
	created, err := svc.Events.Insert("primary", event).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(callCtx).Do()
	if err != nil {
		return nil, &UnavailableError{Platform: models.PlatformGoogle, Err: err}
	}

	ref := &EventRef{EventID: created.Id}
	if created.ConferenceData != nil && len(created.ConferenceData.EntryPoints) > 0 {
		ref.MeetLink = created.ConferenceData.EntryPoints[0].Uri
	}
	return ref, nil
}

// UpdateEvent patches times, notes, or cancellation onto the mirrored event.
func (g *GoogleCalendar) UpdateEvent(ctx context.Context, teacherID string, ref EventRef, update EventUpdate) error {
	svc, err := g.serviceFor(ctx, teacherID)
	if err != nil {
		return err
	}

	patch := &gcal.Event{}
	if update.StartTime != nil && update.EndTime != nil {
		patch.Start = &gcal.EventDateTime{DateTime: update.StartTime.Format(time.RFC3339), TimeZone: "UTC"}
		patch.End = &gcal.EventDateTime{DateTime: update.EndTime.Format(time.RFC3339), TimeZone: "UTC"}
	}
	if update.Notes != nil {
		desc, err := g.rewriteNotes(ctx, svc, ref.EventID, *update.Notes)
		if err == nil {
			patch.Description = desc
		}
	}
	if update.Cancelled {
		patch.Status = "cancelled"
	}

	callCtx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()
	_, err = svc.Events.Patch("primary", ref.EventID, patch).
		SendUpdates("all").
		Context(callCtx).Do()
	if err != nil {
		return &UnavailableError{Platform: models.PlatformGoogle, Err: err}
	}
	return nil
}

// rewriteNotes replaces the notes section of the current event description,
// preserving the rest of it.
func (g *GoogleCalendar) rewriteNotes(ctx context.Context, svc *gcal.Service, eventID, notes string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()
	current, err := svc.Events.Get("primary", eventID).Context(callCtx).Do()
	if err != nil {
		return "", err
	}

	section := "\n\nNotes: " + notes
	desc := current.Description
	if idx := strings.Index(desc, "\n\nNotes:"); idx >= 0 {
		return desc[:idx] + section, nil
	}
	return desc + section, nil
}

// CancelEvent marks the mirrored event cancelled and notifies attendees.
func (g *GoogleCalendar) CancelEvent(ctx context.Context, teacherID string, ref EventRef, reason string) error {
	return g.UpdateEvent(ctx, teacherID, ref, EventUpdate{Cancelled: true})
}

// calendarEvent is the slice of a remote event the conflict check needs.
type calendarEvent struct {
	Start  time.Time
	End    time.Time
	Status string
}

// listDayEvents fetches the teacher's events for the day containing t.
func (g *GoogleCalendar) listDayEvents(ctx context.Context, teacherID string, t time.Time) ([]calendarEvent, error) {
	svc, err := g.serviceFor(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	callCtx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()
	resp, err := svc.Events.List("primary").
		TimeMin(dayStart.Format(time.RFC3339)).
		TimeMax(dayEnd.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(callCtx).Do()
	if err != nil {
		return nil, &UnavailableError{Platform: models.PlatformGoogle, Err: err}
	}

	events := make([]calendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		start, end, ok := eventTimes(item)
		if !ok {
			continue
		}
		events = append(events, calendarEvent{Start: start, End: end, Status: item.Status})
	}
	return events, nil
}

func eventTimes(item *gcal.Event) (time.Time, time.Time, bool) {
	parse := func(edt *gcal.EventDateTime) (time.Time, bool) {
		if edt == nil {
			return time.Time{}, false
		}
		if edt.DateTime != "" {
			t, err := time.Parse(time.RFC3339, edt.DateTime)
			return t, err == nil
		}
		if edt.Date != "" {
			t, err := time.Parse("2006-01-02", edt.Date)
			return t, err == nil
		}
		return time.Time{}, false
	}
	start, ok1 := parse(item.Start)
	end, ok2 := parse(item.End)
	return start, end, ok1 && ok2
}

// CheckAvailability reports whether [start,end) is clear of non-cancelled
// events on the teacher's live calendar. Errors propagate so the caller can
// fail closed.
func (g *GoogleCalendar) CheckAvailability(ctx context.Context, teacherID string, start, end time.Time) (bool, error) {
	events, err := g.listDayEvents(ctx, teacherID, start)
	if err != nil {
		utils.GetLogger().Warn("google availability check failed",
			zap.String("teacherID", teacherID), zap.Error(err))
		return false, err
	}

	candidate := models.Interval{Start: start, End: end}
	for _, ev := range events {
		if ev.Status == "cancelled" {
			continue
		}
		if candidate.Overlaps(models.Interval{Start: ev.Start, End: ev.End}) {
			return false, nil
		}
	}
	return true, nil
}

func boolPtr(b bool) *bool { return &b }
