package handlers

import (
	"errors"
	"net/http"

	userRepo "tutorly/database/repository/user"
	"tutorly/middleware"
	"tutorly/utils"

	"github.com/gin-gonic/gin"
)

// GoogleConnectHandler returns the Google consent URL for the
// authenticated teacher.
func (hb *HandlerBundle) GoogleConnectHandler(c *gin.Context) {
	teacherID, _ := middleware.Identity(c)
	c.JSON(http.StatusOK, gin.H{"authUrl": hb.Google.AuthCodeURL(teacherID)})
}

// GoogleCallbackHandler exchanges the OAuth code and stores the token set.
// Google redirects here with ?code=...&state=<teacherID>.
func (hb *HandlerBundle) GoogleCallbackHandler(c *gin.Context) {
	code := c.Query("code")
	teacherID := c.Query("state")
	if code == "" || teacherID == "" {
		utils.JSONError(c, http.StatusBadRequest, "missing code or state parameter", "")
		return
	}

	if err := hb.Google.HandleCallback(c.Request.Context(), code, teacherID); err != nil {
		if errors.Is(err, userRepo.ErrNotFound) {
			utils.JSONError(c, http.StatusNotFound, "teacher not found", "")
			return
		}
		utils.JSONError(c, http.StatusBadGateway, "google authorization failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected", "platform": "google"})
}

// GoogleStatusHandler reports whether the teacher has a Google calendar
// connected.
func (hb *HandlerBundle) GoogleStatusHandler(c *gin.Context) {
	teacherID, _ := middleware.Identity(c)
	user, err := hb.UserRepo.GetByID(c.Request.Context(), teacherID)
	if err != nil {
		utils.JSONError(c, http.StatusNotFound, "user not found", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": user.GoogleCalendarConnected})
}

// GoogleDisconnectHandler removes the stored Google token set.
func (hb *HandlerBundle) GoogleDisconnectHandler(c *gin.Context) {
	teacherID, _ := middleware.Identity(c)
	if err := hb.Google.Disconnect(c.Request.Context(), teacherID); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to disconnect google calendar", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected", "platform": "google"})
}
