package model

import (
	"time"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentFailed    EnrollmentStatus = "failed"
)

var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentPending: {EnrollmentActive, EnrollmentFailed},
	EnrollmentActive:  {EnrollmentCompleted, EnrollmentFailed},
}

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentPending, EnrollmentActive, EnrollmentCompleted, EnrollmentFailed:
		return true
	}
	return false
}

func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	for _, allowed := range enrollmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Enrollment struct {
	ID          string
	AthleteID   string
	ProgramType tier.Tier
	Status      EnrollmentStatus
	AssignedBy  string
	TemplateID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Athlete struct {
	ID                 string
	GuardianID         string
	UserID             string
	FirstName          string
	LastName           string
	BirthDate          *time.Time
	Sport              string
	CurrentProgramTier *tier.Tier
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
