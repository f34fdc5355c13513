package booking

import (
	"errors"
	"testing"

	"tutorly/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to models.SessionStatus }{
		{models.StatusPending, models.StatusConfirmed},
		{models.StatusPending, models.StatusCancelled},
		{models.StatusConfirmed, models.StatusCompleted},
		{models.StatusConfirmed, models.StatusCancelled},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to models.SessionStatus }{
		{models.StatusPending, models.StatusCompleted},
		{models.StatusConfirmed, models.StatusPending},
		{models.StatusCompleted, models.StatusConfirmed},
		{models.StatusCompleted, models.StatusCancelled},
		{models.StatusCancelled, models.StatusPending},
		{models.StatusCancelled, models.StatusConfirmed},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestApplyTransitionActorGating(t *testing.T) {
	// Only teachers confirm.
	s := &models.Session{Status: models.StatusPending}
	err := ApplyTransition(s, models.StatusConfirmed, models.RoleStudent)
	var forbidden *ForbiddenError
	require.True(t, errors.As(err, &forbidden))
	assert.Equal(t, models.StatusPending, s.Status)

	require.NoError(t, ApplyTransition(s, models.StatusConfirmed, models.RoleTeacher))
	assert.Equal(t, models.StatusConfirmed, s.Status)

	// Only teachers complete.
	err = ApplyTransition(&models.Session{Status: models.StatusConfirmed}, models.StatusCompleted, models.RoleStudent)
	require.True(t, errors.As(err, &forbidden))

	// Either party cancels.
	s = &models.Session{Status: models.StatusConfirmed}
	require.NoError(t, ApplyTransition(s, models.StatusCancelled, models.RoleStudent))
	assert.Equal(t, models.StatusCancelled, s.Status)

	s = &models.Session{Status: models.StatusPending}
	require.NoError(t, ApplyTransition(s, models.StatusCancelled, models.RoleTeacher))
	assert.Equal(t, models.StatusCancelled, s.Status)
}

func TestApplyTransitionRejectsIllegalSteps(t *testing.T) {
	s := &models.Session{Status: models.StatusCompleted}
	err := ApplyTransition(s, models.StatusCancelled, models.RoleTeacher)
	var transition *TransitionError
	require.True(t, errors.As(err, &transition))
	assert.Equal(t, models.StatusCompleted, transition.From)
	assert.Equal(t, models.StatusCancelled, transition.To)
	assert.Equal(t, models.StatusCompleted, s.Status)

	err = ApplyTransition(&models.Session{Status: models.StatusPending}, "archived", models.RoleTeacher)
	var validation *ValidationError
	require.True(t, errors.As(err, &validation))
}
