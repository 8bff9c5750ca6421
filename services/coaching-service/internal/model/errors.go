package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrInvalidSchedule     = errors.New("invalid schedule")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrDuplicateEnrollment = errors.New("enrollment already exists")
	ErrTierRestricted      = errors.New("program tier too low")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrForbidden           = errors.New("forbidden")
)

// ValidationError carries a message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type InvalidScheduleError struct {
	Reason string
}

func (e *InvalidScheduleError) Error() string { return "invalid schedule: " + e.Reason }

func (e *InvalidScheduleError) Unwrap() error { return ErrInvalidSchedule }

type CapacityExceededError struct {
	ServiceTypeID string
	StartsAt      time.Time
	Capacity      int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("slot %s at %s is full (capacity %d)",
		e.ServiceTypeID, e.StartsAt.Format(time.RFC3339), e.Capacity)
}

func (e *CapacityExceededError) Unwrap() error { return ErrCapacityExceeded }

// DuplicateEnrollmentError holds the enrollment that already exists for the
// athlete and program type.
type DuplicateEnrollmentError struct {
	Existing Enrollment
}

func (e *DuplicateEnrollmentError) Error() string {
	return fmt.Sprintf("athlete %s is already enrolled in %s", e.Existing.AthleteID, e.Existing.ProgramType)
}

func (e *DuplicateEnrollmentError) Unwrap() error { return ErrDuplicateEnrollment }

type TierRestrictedError struct {
	Required tier.Tier
	Actual   tier.Tier
}

func (e *TierRestrictedError) Error() string {
	return fmt.Sprintf("requires %s tier, athlete has %s", e.Required, e.Actual)
}

func (e *TierRestrictedError) Unwrap() error { return ErrTierRestricted }

type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }
