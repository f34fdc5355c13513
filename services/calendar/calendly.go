package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"tutorly/config"
	userRepo "tutorly/database/repository/user"
	"tutorly/models"
	"tutorly/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const eventTypeCacheTTL = 5 * time.Minute

// Calendly mirrors sessions as Calendly scheduled events. Calendly offers no
// native idempotency for event creation; callers guard against duplicate
// creates by checking the session's stored event reference first.
type Calendly struct {
	Users userRepo.UserRepository

	// BaseURL and AuthBaseURL are overridable for tests.
	BaseURL     string
	AuthBaseURL string
	HTTPClient  *http.Client
	Cache       *redis.Client

	clientID     string
	clientSecret string
	redirectURI  string
	locks        *refreshLocks
}

// NewCalendly builds the adapter from the application OAuth config. cache
// may be nil to disable event-type caching.
func NewCalendly(users userRepo.UserRepository, cache *redis.Client) *Calendly {
	return &Calendly{
		Users:        users,
		BaseURL:      "https://api.calendly.com",
		AuthBaseURL:  "https://auth.calendly.com",
		HTTPClient:   &http.Client{Timeout: remoteCallTimeout},
		Cache:        cache,
		clientID:     config.AppConfig.CalendlyClientID,
		clientSecret: config.AppConfig.CalendlyClientSecret,
		redirectURI:  config.AppConfig.CalendlyRedirectURI,
		locks:        newRefreshLocks(),
	}
}

func (c *Calendly) Platform() models.Platform { return models.PlatformCalendly }

// AuthCodeURL returns the consent URL for a teacher, with the teacher id in
// the state parameter.
func (c *Calendly) AuthCodeURL(teacherID string) string {
	return fmt.Sprintf("%s/oauth/authorize?client_id=%s&response_type=code&redirect_uri=%s&scope=default&state=%s",
		c.AuthBaseURL, c.clientID, url.QueryEscape(c.redirectURI), teacherID)
}

type calendlyTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// HandleCallback exchanges the authorization code and persists the token set.
func (c *Calendly) HandleCallback(ctx context.Context, code, teacherID string) error {
	tokens, err := c.tokenRequest(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.redirectURI},
	})
	if err != nil {
		return err
	}

	set := &models.OAuthTokenSet{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second),
		TokenType:    tokens.TokenType,
	}
	return c.Users.SaveTokenSet(ctx, teacherID, models.PlatformCalendly, set)
}

// Disconnect clears the teacher's Calendly token set.
func (c *Calendly) Disconnect(ctx context.Context, teacherID string) error {
	return c.Users.SaveTokenSet(ctx, teacherID, models.PlatformCalendly, nil)
}

func (c *Calendly) tokenRequest(ctx context.Context, form url.Values) (*calendlyTokenResponse, error) {
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	callCtx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost,
		c.AuthBaseURL+"/oauth/token", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, &AuthError{Platform: models.PlatformCalendly, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &UnavailableError{Platform: models.PlatformCalendly, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &AuthError{
			Platform: models.PlatformCalendly,
			Err:      fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var tokens calendlyTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, &AuthError{Platform: models.PlatformCalendly, Err: err}
	}
	return &tokens, nil
}

// accessToken returns a live access token for the teacher, refreshing the
// stored set first when it has expired. Refreshes are serialized per teacher.
func (c *Calendly) accessToken(ctx context.Context, teacherID string) (string, error) {
	teacher, err := c.Users.GetByID(ctx, teacherID)
	if err != nil {
		return "", err
	}
	set := teacher.TokenSet(models.PlatformCalendly)
	if set == nil {
		return "", ErrNotConnected
	}
	if !set.Expired(time.Now()) {
		return set.AccessToken, nil
	}

	release := c.locks.acquire("calendly:" + teacherID)
	defer release()

	teacher, err = c.Users.GetByID(ctx, teacherID)
	if err != nil {
		return "", err
	}
	set = teacher.TokenSet(models.PlatformCalendly)
	if set == nil {
		return "", ErrNotConnected
	}
	if !set.Expired(time.Now()) {
		return set.AccessToken, nil
	}

	tokens, err := c.tokenRequest(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {set.RefreshToken},
	})
	if err != nil {
		return "", err
	}

	newSet := &models.OAuthTokenSet{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second),
		TokenType:    tokens.TokenType,
	}
	if newSet.RefreshToken == "" {
		newSet.RefreshToken = set.RefreshToken
	}
	if err := c.Users.SaveTokenSet(ctx, teacherID, models.PlatformCalendly, newSet); err != nil {
		return "", fmt.Errorf("failed to persist refreshed calendly tokens: %w", err)
	}
	return newSet.AccessToken, nil
}

// doJSON performs an authenticated API call and decodes the response into out.
func (c *Calendly) doJSON(ctx context.Context, teacherID, method, rawURL string, body, out interface{}) error {
	token, err := c.accessToken(ctx, teacherID)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	callCtx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, method, rawURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &UnavailableError{Platform: models.PlatformCalendly, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Platform: models.PlatformCalendly, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 500:
		return &UnavailableError{Platform: models.PlatformCalendly, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("calendly request failed: status %d: %s", resp.StatusCode, string(payload))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CalendlyUser is the connected account's identity.
type CalendlyUser struct {
	URI   string `json:"uri"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Me returns the teacher's Calendly account information.
func (c *Calendly) Me(ctx context.Context, teacherID string) (*CalendlyUser, error) {
	var resp struct {
		Resource CalendlyUser `json:"resource"`
	}
	if err := c.doJSON(ctx, teacherID, http.MethodGet, c.BaseURL+"/users/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Resource, nil
}

// EventType is a bookable meeting type the teacher has published.
type EventType struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	Duration int    `json:"duration"`
	Active   bool   `json:"active"`
}

// EventTypes lists the teacher's active event types, cached briefly.
func (c *Calendly) EventTypes(ctx context.Context, teacherID string) ([]EventType, error) {
	cacheKey := "calendly:event-types:" + teacherID
	if c.Cache != nil {
		if cached, err := c.Cache.Get(ctx, cacheKey).Result(); err == nil {
			var types []EventType
			if err := json.Unmarshal([]byte(cached), &types); err == nil {
				return types, nil
			}
		}
	}

	user, err := c.Me(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/event_types?user=%s&active=true", c.BaseURL, url.QueryEscape(user.URI))
	var resp struct {
		Collection []EventType `json:"collection"`
	}
	if err := c.doJSON(ctx, teacherID, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	if c.Cache != nil {
		if data, err := json.Marshal(resp.Collection); err == nil {
			if err := c.Cache.Set(ctx, cacheKey, data, eventTypeCacheTTL).Err(); err != nil {
				utils.GetLogger().Warn("failed to cache calendly event types", zap.Error(err))
			}
		}
	}
	return resp.Collection, nil
}

// AvailableTime is one bookable start time for an event type.
type AvailableTime struct {
	Status    string    `json:"status"`
	StartTime time.Time `json:"start_time"`
}

// AvailableTimes queries Calendly's own availability for an event type.
// Calendly is authoritative for its bookable times; this feeds slot
// presentation, not the booking-time conflict check.
func (c *Calendly) AvailableTimes(ctx context.Context, teacherID, eventTypeURI string, start, end time.Time) ([]AvailableTime, error) {
	endpoint := fmt.Sprintf("%s/event_type_available_times?event_type=%s&start_time=%s&end_time=%s",
		c.BaseURL,
		url.QueryEscape(eventTypeURI),
		url.QueryEscape(start.Format(time.RFC3339)),
		url.QueryEscape(end.Format(time.RFC3339)),
	)
	var resp struct {
		Collection []AvailableTime `json:"collection"`
	}
	if err := c.doJSON(ctx, teacherID, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Collection, nil
}

type calendlyEventResource struct {
	URI      string `json:"uri"`
	UUID     string `json:"uuid"`
	Location struct {
		JoinURL string `json:"join_url"`
	} `json:"location"`
}

// CreateEvent schedules an event under the chosen event type with the
// student as invitee.
func (c *Calendly) CreateEvent(ctx context.Context, teacherID string, details EventDetails) (*EventRef, error) {
	if details.EventTypeURI == "" {
		return nil, fmt.Errorf("event type URI is required for calendly bookings")
	}

	body := map[string]interface{}{
		"event_type": details.EventTypeURI,
		"start_time": details.StartTime.Format(time.RFC3339),
		"invitees": []map[string]string{
			{"email": details.Student.Email, "name": details.Student.Name},
		},
	}
	var resp struct {
		Resource calendlyEventResource `json:"resource"`
	}
	if err := c.doJSON(ctx, teacherID, http.MethodPost, c.BaseURL+"/scheduled_events", body, &resp); err != nil {
		return nil, err
	}

	return &EventRef{
		EventID:  resp.Resource.UUID,
		EventURI: resp.Resource.URI,
		MeetLink: resp.Resource.Location.JoinURL,
	}, nil
}

// UpdateEvent is a no-op: Calendly has no reschedule API, invitees move
// bookings through their Calendly link and the change comes back to us via
// webhook.
func (c *Calendly) UpdateEvent(ctx context.Context, teacherID string, ref EventRef, update EventUpdate) error {
	if update.Cancelled {
		return c.CancelEvent(ctx, teacherID, ref, "Session cancelled by user")
	}
	utils.GetLogger().Debug("calendly update skipped, no reschedule API",
		zap.String("eventUri", ref.EventURI))
	return nil
}

// CancelEvent cancels the scheduled event with a reason.
func (c *Calendly) CancelEvent(ctx context.Context, teacherID string, ref EventRef, reason string) error {
	if ref.EventURI == "" {
		return nil
	}
	if reason == "" {
		reason = "Cancelled by system"
	}
	body := map[string]string{"reason": reason}
	return c.doJSON(ctx, teacherID, http.MethodPost, ref.EventURI+"/cancellation", body, nil)
}
