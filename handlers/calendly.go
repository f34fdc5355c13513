package handlers

import (
	"errors"
	"net/http"
	"time"

	userRepo "tutorly/database/repository/user"
	"tutorly/middleware"
	"tutorly/services/booking"
	"tutorly/services/calendar"
	"tutorly/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CalendlyConnectHandler returns the Calendly consent URL for the
// authenticated teacher.
func (hb *HandlerBundle) CalendlyConnectHandler(c *gin.Context) {
	teacherID, _ := middleware.Identity(c)
	c.JSON(http.StatusOK, gin.H{"authUrl": hb.Calendly.AuthCodeURL(teacherID)})
}

// CalendlyCallbackHandler exchanges the OAuth code and stores the token
// set.
func (hb *HandlerBundle) CalendlyCallbackHandler(c *gin.Context) {
	code := c.Query("code")
	teacherID := c.Query("state")
	if code == "" || teacherID == "" {
		utils.JSONError(c, http.StatusBadRequest, "missing code or state parameter", "")
		return
	}

	if err := hb.Calendly.HandleCallback(c.Request.Context(), code, teacherID); err != nil {
		if errors.Is(err, userRepo.ErrNotFound) {
			utils.JSONError(c, http.StatusNotFound, "teacher not found", "")
			return
		}
		utils.JSONError(c, http.StatusBadGateway, "calendly authorization failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected", "platform": "calendly"})
}

// CalendlyStatusHandler reports whether the teacher has Calendly connected.
func (hb *HandlerBundle) CalendlyStatusHandler(c *gin.Context) {
	teacherID, _ := middleware.Identity(c)
	user, err := hb.UserRepo.GetByID(c.Request.Context(), teacherID)
	if err != nil {
		utils.JSONError(c, http.StatusNotFound, "user not found", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": user.CalendlyConnected})
}

// CalendlyDisconnectHandler removes the stored Calendly token set.
func (hb *HandlerBundle) CalendlyDisconnectHandler(c *gin.Context) {
	teacherID, _ := middleware.Identity(c)
	if err := hb.Calendly.Disconnect(c.Request.Context(), teacherID); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to disconnect calendly", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected", "platform": "calendly"})
}

// CalendlyEventTypesHandler lists the teacher's active Calendly event
// types.
func (hb *HandlerBundle) CalendlyEventTypesHandler(c *gin.Context) {
	teacherID, _ := middleware.Identity(c)
	eventTypes, err := hb.Calendly.EventTypes(c.Request.Context(), teacherID)
	if err != nil {
		writeCalendlyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"eventTypes": eventTypes, "count": len(eventTypes)})
}

// CalendlyAvailableTimesHandler returns bookable start times for an event
// type over a window (?eventType=...&start=...&end=..., RFC 3339; the
// window defaults to the next seven days).
func (hb *HandlerBundle) CalendlyAvailableTimesHandler(c *gin.Context) {
	teacherID, _ := middleware.Identity(c)

	eventTypeURI := c.Query("eventType")
	if eventTypeURI == "" {
		utils.JSONError(c, http.StatusBadRequest, "eventType query parameter is required", "")
		return
	}

	start := time.Now()
	end := start.AddDate(0, 0, 7)
	if raw := c.Query("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.JSONError(c, http.StatusBadRequest, "start must be RFC 3339", err.Error())
			return
		}
		start = parsed
	}
	if raw := c.Query("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.JSONError(c, http.StatusBadRequest, "end must be RFC 3339", err.Error())
			return
		}
		end = parsed
	}

	times, err := hb.Calendly.AvailableTimes(c.Request.Context(), teacherID, eventTypeURI, start, end)
	if err != nil {
		writeCalendlyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"availableTimes": times, "count": len(times)})
}

// CalendlyWebhookHandler receives invitee notifications from Calendly.
// Processing errors return 500 so Calendly retries; unmatched events are
// acknowledged.
func (hb *HandlerBundle) CalendlyWebhookHandler(c *gin.Context) {
	var payload struct {
		Event   string `json:"event"`
		Payload struct {
			Event struct {
				URI       string    `json:"uri"`
				UUID      string    `json:"uuid"`
				StartTime time.Time `json:"start_time"`
				Location  struct {
					JoinURL string `json:"join_url"`
				} `json:"location"`
			} `json:"event"`
		} `json:"payload"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid webhook payload", err.Error())
		return
	}

	utils.GetLogger().Debug("calendly webhook received",
		zap.String("event", payload.Event),
		zap.String("eventURI", payload.Payload.Event.URI))

	notification := booking.CalendlyWebhookPayload{EventType: payload.Event}
	notification.Event.URI = payload.Payload.Event.URI
	notification.Event.UUID = payload.Payload.Event.UUID
	notification.Event.StartTime = payload.Payload.Event.StartTime
	notification.Event.Location.JoinURL = payload.Payload.Event.Location.JoinURL

	if err := hb.Booking.HandleCalendlyWebhook(c.Request.Context(), notification); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to process webhook", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func writeCalendlyError(c *gin.Context, err error) {
	var authErr *calendar.AuthError
	var unavailableErr *calendar.UnavailableError
	switch {
	case errors.Is(err, calendar.ErrNotConnected):
		utils.JSONError(c, http.StatusBadRequest, "calendly is not connected", "")
	case errors.As(err, &authErr):
		utils.JSONError(c, http.StatusBadGateway, "calendly authorization failed", authErr.Error())
	case errors.As(err, &unavailableErr):
		utils.JSONError(c, http.StatusBadGateway, "calendly unavailable", unavailableErr.Error())
	default:
		utils.JSONError(c, http.StatusInternalServerError, "calendly request failed", err.Error())
	}
}
