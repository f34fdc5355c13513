package handlers

import (
	userRepoPkg "tutorly/database/repository/user"
	"tutorly/services/booking"
	"tutorly/services/calendar"
)

// HandlerBundle groups the service dependencies all endpoint handlers draw
// from.
type HandlerBundle struct {
	UserRepo userRepoPkg.UserRepository
	Booking  booking.BookingService
	Google   *calendar.GoogleCalendar
	Calendly *calendar.Calendly
}

// NewHandlerBundle wires the handler dependencies.
func NewHandlerBundle(users userRepoPkg.UserRepository, svc booking.BookingService, google *calendar.GoogleCalendar, calendly *calendar.Calendly) *HandlerBundle {
	return &HandlerBundle{
		UserRepo: users,
		Booking:  svc,
		Google:   google,
		Calendly: calendly,
	}
}
