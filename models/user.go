package models

import "time"

// Role identifies which side of a tutoring session a user is on.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// User represents a platform user. Teacher-specific fields (subjects,
// availability, calendar connections) are empty for students.
type User struct {
	ID        string    `bson:"id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	Role      Role      `bson:"role" json:"role"`
	Picture   string    `bson:"picture,omitempty" json:"picture,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	Subjects     []string           `bson:"subjects,omitempty" json:"subjects,omitempty"`
	Availability []AvailabilitySlot `bson:"availability,omitempty" json:"availability,omitempty"`

	// Calendar connections, owned by the provider adapters. Token sets are
	// never serialized into API responses.
	GoogleCalendarConnected bool          `bson:"googleCalendarConnected" json:"googleCalendarConnected"`
	CalendlyConnected       bool          `bson:"calendlyConnected" json:"calendlyConnected"`
	GoogleTokens            *OAuthTokenSet `bson:"googleTokens,omitempty" json:"-"`
	CalendlyTokens          *OAuthTokenSet `bson:"calendlyTokens,omitempty" json:"-"`
}

// IsTeacher reports whether the user holds the teacher role.
func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// Teaches reports whether the teacher offers the given subject.
func (u *User) Teaches(subject string) bool {
	for _, s := range u.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// TokenSet returns the stored token set for the given platform, or nil when
// the teacher has not connected it.
func (u *User) TokenSet(platform Platform) *OAuthTokenSet {
	switch platform {
	case PlatformGoogle:
		return u.GoogleTokens
	case PlatformCalendly:
		return u.CalendlyTokens
	}
	return nil
}

// ValidateRole checks that the role is one of the two supported roles.
func ValidateRole(role Role) bool {
	return role == RoleStudent || role == RoleTeacher
}
