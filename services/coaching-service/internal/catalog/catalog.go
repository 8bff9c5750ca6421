// Package catalog manages the service types that can be booked.
package catalog

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
	CreateServiceType(ctx context.Context, st model.ServiceType) error
	GetServiceType(ctx context.Context, id string) (model.ServiceType, error)
	ListActiveServiceTypes(ctx context.Context) ([]model.ServiceType, error)
	DeactivateServiceType(ctx context.Context, id string) error
}

type CreateInput struct {
	Name            string            `json:"name" validate:"required,max=200"`
	Kind            model.ServiceKind `json:"type" validate:"required,servicekind"`
	DurationMinutes int               `json:"durationMinutes" validate:"gt=0"`
	Capacity        *int              `json:"capacity" validate:"omitempty,gt=0"`
	FixedStartTime  *string           `json:"fixedStartTime" validate:"omitempty,hhmm"`
	MinimumTier     *tier.Tier        `json:"programTier" validate:"omitempty,tier"`
	CreatedBy       string            `json:"-"`
}

type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Create validates the input before anything is stored. Names need not be
// unique.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.ServiceType, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.FixedStartTime != nil {
		trimmed := strings.TrimSpace(*in.FixedStartTime)
		in.FixedStartTime = &trimmed
	}
	if err := model.Validate(in); err != nil {
		return model.ServiceType{}, err
	}

	st := model.ServiceType{
		ID:              uuid.NewString(),
		Name:            in.Name,
		Kind:            in.Kind,
		DurationMinutes: in.DurationMinutes,
		Capacity:        in.Capacity,
		FixedStartTime:  in.FixedStartTime,
		MinimumTier:     in.MinimumTier,
		Active:          true,
		CreatedBy:       in.CreatedBy,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.repo.CreateServiceType(ctx, st); err != nil {
		return model.ServiceType{}, fmt.Errorf("create service type: %w", err)
	}
	s.logger.Info("service type created", "service_type_id", st.ID, "kind", st.Kind, "created_by", st.CreatedBy)
	return st, nil
}

func (s *Service) ListActive(ctx context.Context) ([]model.ServiceType, error) {
	return s.repo.ListActiveServiceTypes(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (model.ServiceType, error) {
	return s.repo.GetServiceType(ctx, id)
}

// Deactivate hides a service type from listings and new bookings. Existing
// bookings keep referencing it.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.DeactivateServiceType(ctx, id); err != nil {
		return err
	}
	s.logger.Info("service type deactivated", "service_type_id", id)
	return nil
}
