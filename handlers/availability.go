package handlers

import (
	"errors"
	"net/http"
	"time"

	userRepo "tutorly/database/repository/user"
	"tutorly/middleware"
	"tutorly/models"
	"tutorly/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AddAvailabilityHandler appends a slot to the authenticated teacher's
// availability.
func (hb *HandlerBundle) AddAvailabilityHandler(c *gin.Context) {
	teacherID, _ := middleware.Identity(c)

	var input struct {
		StartTime time.Time `json:"startTime" binding:"required"`
		EndTime   time.Time `json:"endTime" binding:"required"`
		Recurring bool      `json:"recurring"`
		DayOfWeek *int      `json:"dayOfWeek"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	slot := models.AvailabilitySlot{
		ID:        uuid.New().String(),
		StartTime: input.StartTime,
		EndTime:   input.EndTime,
		Recurring: input.Recurring,
		DayOfWeek: input.DayOfWeek,
		CreatedAt: time.Now(),
	}
	if err := slot.Validate(time.Now()); err != nil {
		utils.JSONError(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	if err := hb.UserRepo.AddAvailabilitySlot(c.Request.Context(), teacherID, slot); err != nil {
		if errors.Is(err, userRepo.ErrNotFound) {
			utils.JSONError(c, http.StatusNotFound, "teacher not found", "")
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "failed to add availability slot", err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"slot": slot})
}

// RemoveAvailabilityHandler removes one of the teacher's slots.
func (hb *HandlerBundle) RemoveAvailabilityHandler(c *gin.Context) {
	teacherID, _ := middleware.Identity(c)
	slotID := c.Param("slotID")

	if err := hb.UserRepo.RemoveAvailabilitySlot(c.Request.Context(), teacherID, slotID); err != nil {
		if errors.Is(err, userRepo.ErrNotFound) {
			utils.JSONError(c, http.StatusNotFound, "availability slot not found", "")
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "failed to remove availability slot", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed", "slotId": slotID})
}

// TeacherAvailabilityHandler returns a teacher's availability with booked
// flags, optionally materialized onto a date (?date=2026-09-07) and scoped
// to a subject (?subject=algebra).
func (hb *HandlerBundle) TeacherAvailabilityHandler(c *gin.Context) {
	teacherID := c.Param("teacherID")

	var date *time.Time
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			utils.JSONError(c, http.StatusBadRequest, "date must be in YYYY-MM-DD format", err.Error())
			return
		}
		date = &parsed
	}

	view, err := hb.Booking.TeacherAvailability(c.Request.Context(), teacherID, date, c.Query("subject"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListTeachersHandler lists teachers for a subject (?subject=algebra).
func (hb *HandlerBundle) ListTeachersHandler(c *gin.Context) {
	subject := c.Query("subject")
	if subject == "" {
		utils.JSONError(c, http.StatusBadRequest, "subject query parameter is required", "")
		return
	}
	teachers, err := hb.UserRepo.ListTeachersBySubject(c.Request.Context(), subject)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to list teachers", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"teachers": teachers, "count": len(teachers)})
}
