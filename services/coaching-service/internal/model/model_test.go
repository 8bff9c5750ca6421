package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

type sampleInput struct {
	Name     string     `json:"name" validate:"required"`
	Kind     string     `json:"type" validate:"required,servicekind"`
	Duration int        `json:"durationMinutes" validate:"gt=0"`
	Fixed    *string    `json:"fixedStartTime" validate:"omitempty,hhmm"`
	Tier     *tier.Tier `json:"programTier" validate:"omitempty,tier"`
}

func TestValidateMapsFieldsByJSONName(t *testing.T) {
	bad := "25:00"
	gold := tier.Tier("gold")
	err := Validate(sampleInput{Kind: "seminar", Fixed: &bad, Tier: &gold})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "is required", verr.Fields["name"])
	assert.Contains(t, verr.Fields["type"], "group_call")
	assert.Equal(t, "must be greater than 0", verr.Fields["durationMinutes"])
	assert.Contains(t, verr.Fields["fixedStartTime"], "HH:MM")
	assert.Contains(t, verr.Fields["programTier"], "premium")
}

func TestValidateAcceptsGoodInput(t *testing.T) {
	fixed := "18:00"
	plus := tier.Plus
	assert.NoError(t, Validate(sampleInput{Name: "Group call", Kind: "group_call", Duration: 60, Fixed: &fixed, Tier: &plus}))
}

func TestHHMM(t *testing.T) {
	for in, want := range map[string][2]int{"00:00": {0, 0}, "09:30": {9, 30}, "18:00": {18, 0}, "23:59": {23, 59}} {
		h, m, ok := ParseHHMM(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, [2]int{h, m}, in)
	}
	for _, bad := range []string{"24:00", "9:30", "18:60", "18:00:00", "+1:30", ""} {
		_, _, ok := ParseHHMM(bad)
		assert.False(t, ok, bad)
	}
}

func TestBookingTransitions(t *testing.T) {
	assert.True(t, BookingPending.CanTransitionTo(BookingConfirmed))
	assert.True(t, BookingConfirmed.CanTransitionTo(BookingCancelled))
	assert.True(t, BookingConfirmed.CanTransitionTo(BookingDeclined))
	assert.False(t, BookingConfirmed.CanTransitionTo(BookingPending))
	assert.False(t, BookingCancelled.CanTransitionTo(BookingConfirmed))
	assert.False(t, BookingDeclined.CanTransitionTo(BookingCancelled))
}

func TestEnrollmentTransitions(t *testing.T) {
	assert.True(t, EnrollmentPending.CanTransitionTo(EnrollmentActive))
	assert.True(t, EnrollmentActive.CanTransitionTo(EnrollmentCompleted))
	assert.False(t, EnrollmentPending.CanTransitionTo(EnrollmentCompleted))
	assert.False(t, EnrollmentFailed.CanTransitionTo(EnrollmentActive))
}

func TestTypedErrorsUnwrap(t *testing.T) {
	cases := map[error]error{
		&NotFoundError{Entity: "athlete", ID: "a1"}:                                    ErrNotFound,
		&InvalidScheduleError{Reason: "x"}:                                             ErrInvalidSchedule,
		&CapacityExceededError{StartsAt: time.Now(), Capacity: 2}:                      ErrCapacityExceeded,
		&DuplicateEnrollmentError{}:                                                    ErrDuplicateEnrollment,
		&TierRestrictedError{Required: tier.Premium, Actual: tier.Base}:                ErrTierRestricted,
		&InvalidTransitionError{Entity: "booking", From: "cancelled", To: "confirmed"}: ErrInvalidTransition,
	}
	for err, sentinel := range cases {
		assert.ErrorIs(t, err, sentinel, err.Error())
	}
}

func TestBlockContains(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := AvailabilityBlock{StartsAt: start, EndsAt: start.Add(3 * time.Hour)}
	assert.True(t, b.Contains(start, start.Add(time.Hour)))
	assert.True(t, b.Contains(start.Add(2*time.Hour), start.Add(3*time.Hour)))
	assert.False(t, b.Contains(start.Add(-time.Minute), start.Add(time.Hour)))
	assert.False(t, b.Contains(start.Add(2*time.Hour), start.Add(3*time.Hour+time.Minute)))
}
