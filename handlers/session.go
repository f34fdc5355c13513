package handlers

import (
	"errors"
	"net/http"
	"time"

	"tutorly/middleware"
	"tutorly/models"
	"tutorly/services/booking"
	"tutorly/services/calendar"
	"tutorly/utils"

	"github.com/gin-gonic/gin"
)

// writeServiceError maps typed booking errors onto HTTP responses.
func writeServiceError(c *gin.Context, err error) {
	var (
		validationErr  *booking.ValidationError
		slotErr        *booking.SlotUnavailableError
		transitionErr  *booking.TransitionError
		rescheduleErr  *booking.RescheduleError
		forbiddenErr   *booking.ForbiddenError
		notFoundErr    *booking.NotFoundError
		terminalErr    *booking.TerminalError
		authErr        *calendar.AuthError
		unavailableErr *calendar.UnavailableError
	)
	switch {
	case errors.As(err, &validationErr):
		utils.JSONError(c, http.StatusBadRequest, validationErr.Error(), "")
	case errors.As(err, &slotErr):
		utils.JSONError(c, http.StatusConflict, slotErr.Error(), "")
	case errors.As(err, &transitionErr):
		utils.JSONError(c, http.StatusBadRequest, transitionErr.Error(), "")
	case errors.As(err, &rescheduleErr):
		utils.JSONError(c, http.StatusBadRequest, rescheduleErr.Error(), "")
	case errors.As(err, &forbiddenErr):
		utils.JSONError(c, http.StatusForbidden, forbiddenErr.Error(), "")
	case errors.As(err, &notFoundErr):
		utils.JSONError(c, http.StatusNotFound, notFoundErr.Error(), "")
	case errors.As(err, &terminalErr):
		utils.JSONError(c, http.StatusBadRequest, terminalErr.Error(), "")
	case errors.As(err, &authErr):
		utils.JSONError(c, http.StatusBadGateway, "calendar authorization failed", authErr.Error())
	case errors.As(err, &unavailableErr):
		utils.JSONError(c, http.StatusBadGateway, "calendar provider unavailable", unavailableErr.Error())
	default:
		utils.JSONError(c, http.StatusInternalServerError, "internal server error", err.Error())
	}
}

// sessionResponse attaches the sync outcome to a session payload so clients
// can tell a fully mirrored booking from a pending one.
func sessionResponse(session *models.Session, sync booking.SyncResult) gin.H {
	resp := gin.H{"session": session, "sync": sync.Status}
	if sync.Status == booking.SyncFailed {
		resp["warning"] = "calendar sync pending"
		resp["syncDetail"] = sync.Detail
	}
	return resp
}

// BookSessionHandler books a tutoring session for the authenticated
// student.
func (hb *HandlerBundle) BookSessionHandler(c *gin.Context) {
	studentID, _ := middleware.Identity(c)

	var input struct {
		TeacherID    string          `json:"teacherId" binding:"required"`
		Subject      string          `json:"subject" binding:"required"`
		StartTime    time.Time       `json:"startTime" binding:"required"`
		EndTime      time.Time       `json:"endTime" binding:"required"`
		Platform     models.Platform `json:"platform" binding:"required"`
		Notes        string          `json:"notes"`
		EventTypeURI string          `json:"eventTypeUri"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	session, sync, err := hb.Booking.Book(c.Request.Context(), studentID, booking.BookInput{
		TeacherID:    input.TeacherID,
		Subject:      input.Subject,
		StartTime:    input.StartTime,
		EndTime:      input.EndTime,
		Platform:     input.Platform,
		Notes:        input.Notes,
		EventTypeURI: input.EventTypeURI,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse(session, sync))
}

// GetSessionHandler returns a single session the caller participates in.
func (hb *HandlerBundle) GetSessionHandler(c *gin.Context) {
	actorID, _ := middleware.Identity(c)
	session, err := hb.Booking.GetSession(c.Request.Context(), actorID, c.Param("sessionID"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// UpdateSessionHandler applies a status change, reschedule, or notes edit.
func (hb *HandlerBundle) UpdateSessionHandler(c *gin.Context) {
	actorID, _ := middleware.Identity(c)

	var input struct {
		Status    *models.SessionStatus `json:"status"`
		StartTime *time.Time            `json:"startTime"`
		EndTime   *time.Time            `json:"endTime"`
		Notes     *string               `json:"notes"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	session, sync, err := hb.Booking.UpdateSession(c.Request.Context(), actorID, c.Param("sessionID"), booking.UpdateInput{
		Status:    input.Status,
		StartTime: input.StartTime,
		EndTime:   input.EndTime,
		Notes:     input.Notes,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session, sync))
}

// CancelSessionHandler cancels a session.
func (hb *HandlerBundle) CancelSessionHandler(c *gin.Context) {
	actorID, _ := middleware.Identity(c)
	sync, err := hb.Booking.CancelSession(c.Request.Context(), actorID, c.Param("sessionID"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	resp := gin.H{"status": "cancelled", "sync": sync.Status}
	if sync.Status == booking.SyncFailed {
		resp["warning"] = "calendar sync pending"
	}
	c.JSON(http.StatusOK, resp)
}

// ListSessionsHandler lists the caller's sessions, optionally filtered by
// status.
func (hb *HandlerBundle) ListSessionsHandler(c *gin.Context) {
	userID, role := middleware.Identity(c)

	var limit int64 = 50
	status := models.SessionStatus(c.Query("status"))
	sessions, err := hb.Booking.ListSessions(c.Request.Context(), userID, role, status, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

// UpcomingSessionsHandler lists the caller's active sessions over the next
// week.
func (hb *HandlerBundle) UpcomingSessionsHandler(c *gin.Context) {
	userID, role := middleware.Identity(c)
	sessions, err := hb.Booking.UpcomingSessions(c.Request.Context(), userID, role)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}
