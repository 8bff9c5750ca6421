package model

import (
	"time"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

type ServiceKind string

const (
	KindGroupCall ServiceKind = "group_call"
	KindOneOnOne  ServiceKind = "one_on_one"
	KindRoleModel ServiceKind = "role_model"
)

func (k ServiceKind) Valid() bool {
	switch k {
	case KindGroupCall, KindOneOnOne, KindRoleModel:
		return true
	}
	return false
}

// ServiceType is a bookable offering. Capacity, FixedStartTime and MinimumTier
// are optional; nil means unconstrained.
type ServiceType struct {
	ID              string
	Name            string
	Kind            ServiceKind
	DurationMinutes int
	Capacity        *int
	FixedStartTime  *string // "HH:MM"
	MinimumTier     *tier.Tier
	Active          bool
	CreatedBy       string
	CreatedAt       time.Time
}

func (s ServiceType) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type AvailabilityBlock struct {
	ID            string
	ServiceTypeID string
	StartsAt      time.Time
	EndsAt        time.Time
	CreatedBy     string
	CreatedAt     time.Time
}

// Contains reports whether [start, end] lies inside the block.
func (b AvailabilityBlock) Contains(start, end time.Time) bool {
	return !start.Before(b.StartsAt) && !end.After(b.EndsAt)
}
