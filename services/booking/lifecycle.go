package booking

import "tutorly/models"

// validTransitions is the session lifecycle table. Completed and cancelled
// are terminal.
var validTransitions = map[models.SessionStatus][]models.SessionStatus{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed: {models.StatusCompleted, models.StatusCancelled},
	models.StatusCompleted: {},
	models.StatusCancelled: {},
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to models.SessionStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// transitionAllowedFor reports whether the actor's role may request the
// target state. Confirmation and completion are teacher-only; cancellation
// is open to both parties.
func transitionAllowedFor(to models.SessionStatus, role models.Role) bool {
	switch to {
	case models.StatusConfirmed, models.StatusCompleted:
		return role == models.RoleTeacher
	case models.StatusCancelled:
		return role == models.RoleTeacher || role == models.RoleStudent
	}
	return false
}

// ApplyTransition moves the session to the target status after checking the
// transition table and the actor's rights. The caller persists the change.
func ApplyTransition(session *models.Session, to models.SessionStatus, role models.Role) error {
	if !models.ValidateStatus(to) {
		return NewValidationError("invalid session status %q", to)
	}
	if !CanTransition(session.Status, to) {
		return &TransitionError{From: session.Status, To: to}
	}
	if !transitionAllowedFor(to, role) {
		return &ForbiddenError{Message: "only teachers can " + transitionVerb(to) + " sessions"}
	}
	session.Status = to
	return nil
}

func transitionVerb(to models.SessionStatus) string {
	switch to {
	case models.StatusConfirmed:
		return "confirm"
	case models.StatusCompleted:
		return "complete"
	}
	return "update"
}
