package model

import (
	"time"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

type Surface string

const (
	SurfaceHome           Surface = "home"
	SurfaceParentPlatform Surface = "parent_platform"
)

func (s Surface) Valid() bool {
	return s == SurfaceHome || s == SurfaceParentPlatform
}

// Content is a post or media item. A nil ProgramTier makes it visible to
// every tier.
type Content struct {
	ID          string
	Surface     Surface
	ProgramTier *tier.Tier
	Title       string
	Body        string
	MediaURL    string
	CreatedBy   string
	CreatedAt   time.Time
}
