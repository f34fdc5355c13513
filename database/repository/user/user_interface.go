package userRepo

import (
	"context"
	"errors"

	"tutorly/models"
)

// ErrNotFound is returned when the requested user or slot does not exist.
var ErrNotFound = errors.New("not found")

// UserRepository defines methods for user data access. Availability slots
// and provider token sets live on the user document; slot and token
// mutations are field-level updates so concurrent writers on the same
// teacher do not clobber each other's fields.
type UserRepository interface {
	// GetByID retrieves a user by its unique ID.
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByEmail retrieves a user by its email address.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Create inserts a new user record.
	Create(ctx context.Context, user *models.User) error
	// Update modifies an existing user record.
	Update(ctx context.Context, user *models.User) error
	// ListTeachersBySubject retrieves teachers; subject may be empty.
	ListTeachersBySubject(ctx context.Context, subject string) ([]models.User, error)

	// AddAvailabilitySlot appends a slot to the teacher's availability.
	AddAvailabilitySlot(ctx context.Context, teacherID string, slot models.AvailabilitySlot) error
	// RemoveAvailabilitySlot removes a slot by id; ErrNotFound if absent.
	RemoveAvailabilitySlot(ctx context.Context, teacherID, slotID string) error

	// SaveTokenSet persists the token set for one provider in a single
	// atomic update. A nil set disconnects the provider.
	SaveTokenSet(ctx context.Context, teacherID string, platform models.Platform, set *models.OAuthTokenSet) error
}
