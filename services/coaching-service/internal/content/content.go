// Package content decides which posts and media an athlete's tier unlocks.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

type Repository interface {
	CreateContent(ctx context.Context, c model.Content) error
	ListContentBySurface(ctx context.Context, surface model.Surface) ([]model.Content, error)
}

type Athletes interface {
	Get(ctx context.Context, id string) (model.Athlete, error)
}

type CreateInput struct {
	Surface     model.Surface `json:"surface" validate:"required,surface"`
	ProgramTier *tier.Tier    `json:"programTier" validate:"omitempty,tier"`
	Title       string        `json:"title" validate:"required,max=300"`
	Body        string        `json:"body"`
	MediaURL    string        `json:"mediaUrl" validate:"omitempty,url"`
	CreatedBy   string        `json:"-"`
}

type Service struct {
	repo     Repository
	athletes Athletes
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, athletes Athletes, logger *slog.Logger) *Service {
	return &Service{repo: repo, athletes: athletes, logger: logger, now: time.Now}
}

// Filter keeps items without a tier requirement and items whose required
// tier the athlete meets. A nil athlete tier counts as the lowest tier.
func Filter(items []model.Content, athleteTier *tier.Tier) []model.Content {
	have := tier.OrLowest(athleteTier)
	out := make([]model.Content, 0, len(items))
	for _, c := range items {
		if c.ProgramTier == nil || tier.AtLeast(have, *c.ProgramTier) {
			out = append(out, c)
		}
	}
	return out
}

// Visible reads the surface from storage on every call so tier changes show
// up immediately.
func (s *Service) Visible(ctx context.Context, surface model.Surface, athleteTier *tier.Tier) ([]model.Content, error) {
	if !surface.Valid() {
		return nil, model.NewValidationError("surface", "must be one of home, parent_platform")
	}
	items, err := s.repo.ListContentBySurface(ctx, surface)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	return Filter(items, athleteTier), nil
}

func (s *Service) VisibleForAthlete(ctx context.Context, surface model.Surface, athleteID string) ([]model.Content, error) {
	a, err := s.athletes.Get(ctx, athleteID)
	if err != nil {
		return nil, err
	}
	return s.Visible(ctx, surface, a.CurrentProgramTier)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (model.Content, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := model.Validate(in); err != nil {
		return model.Content{}, err
	}
	c := model.Content{
		ID:          uuid.NewString(),
		Surface:     in.Surface,
		ProgramTier: in.ProgramTier,
		Title:       in.Title,
		Body:        in.Body,
		MediaURL:    in.MediaURL,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateContent(ctx, c); err != nil {
		return model.Content{}, fmt.Errorf("create content: %w", err)
	}
	s.logger.Info("content published", "content_id", c.ID, "surface", c.Surface)
	return c, nil
}
