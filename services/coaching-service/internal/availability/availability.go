// Package availability stores the windows in which a service type can be
// booked and derives open slots from them.
package availability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
)

type Repository interface {
	CreateBlock(ctx context.Context, b model.AvailabilityBlock) error
	// ListBlocks returns blocks fully inside [from, to], ordered by start.
	ListBlocks(ctx context.Context, serviceTypeID string, from, to time.Time) ([]model.AvailabilityBlock, error)
	// CountBookingsByStart counts non-cancelled bookings per start time
	// (Unix seconds) for starts in [from, to).
	CountBookingsByStart(ctx context.Context, serviceTypeID string, from, to time.Time) (map[int64]int, error)
}

type ServiceTypes interface {
	Get(ctx context.Context, id string) (model.ServiceType, error)
}

type OpenInput struct {
	ServiceTypeID string    `json:"serviceTypeId" validate:"required"`
	StartsAt      time.Time `json:"startsAt" validate:"required"`
	EndsAt        time.Time `json:"endsAt" validate:"required"`
	CreatedBy     string    `json:"-"`
}

// Slot is a bookable start time. Remaining is nil for unlimited capacity.
type Slot struct {
	StartsAt  time.Time
	EndsAt    time.Time
	Remaining *int
}

type Service struct {
	repo         Repository
	serviceTypes ServiceTypes
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(repo Repository, serviceTypes ServiceTypes, logger *slog.Logger) *Service {
	return &Service{repo: repo, serviceTypes: serviceTypes, logger: logger, now: time.Now}
}

// Open records a bookable window. Overlapping windows are allowed.
func (s *Service) Open(ctx context.Context, in OpenInput) (model.AvailabilityBlock, error) {
	if err := model.Validate(in); err != nil {
		return model.AvailabilityBlock{}, err
	}
	if !in.StartsAt.Before(in.EndsAt) {
		return model.AvailabilityBlock{}, model.NewValidationError("endsAt", "must be after startsAt")
	}
	if _, err := s.serviceTypes.Get(ctx, in.ServiceTypeID); err != nil {
		return model.AvailabilityBlock{}, err
	}

	b := model.AvailabilityBlock{
		ID:            uuid.NewString(),
		ServiceTypeID: in.ServiceTypeID,
		StartsAt:      in.StartsAt,
		EndsAt:        in.EndsAt,
		CreatedBy:     in.CreatedBy,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.CreateBlock(ctx, b); err != nil {
		return model.AvailabilityBlock{}, fmt.Errorf("create availability block: %w", err)
	}
	s.logger.Info("availability opened", "block_id", b.ID, "service_type_id", b.ServiceTypeID,
		"starts_at", b.StartsAt, "ends_at", b.EndsAt)
	return b, nil
}

// List returns blocks that lie entirely inside [from, to]. Blocks that only
// overlap the range are excluded.
func (s *Service) List(ctx context.Context, serviceTypeID string, from, to time.Time) ([]model.AvailabilityBlock, error) {
	if to.Before(from) {
		return nil, model.NewValidationError("to", "must not be before from")
	}
	return s.repo.ListBlocks(ctx, serviceTypeID, from, to)
}

// OpenSlots lists future start times inside the contained blocks that still
// have room. The result is advisory; booking re-checks capacity.
func (s *Service) OpenSlots(ctx context.Context, serviceTypeID string, from, to time.Time) ([]Slot, error) {
	st, err := s.serviceTypes.Get(ctx, serviceTypeID)
	if err != nil {
		return nil, err
	}
	if !st.Active {
		return nil, &model.NotFoundError{Entity: "service type", ID: serviceTypeID}
	}
	blocks, err := s.List(ctx, serviceTypeID, from, to)
	if err != nil {
		return nil, err
	}

	open := make([]Interval, len(blocks))
	for i, b := range blocks {
		open[i] = Interval{Start: b.StartsAt, End: b.EndsAt}
	}
	starts := SlotStarts(open, st.Duration(), st.FixedStartTime, s.now())
	if len(starts) == 0 {
		return []Slot{}, nil
	}

	var booked map[int64]int
	if st.Capacity != nil {
		booked, err = s.repo.CountBookingsByStart(ctx, serviceTypeID, starts[0], starts[len(starts)-1].Add(time.Second))
		if err != nil {
			return nil, fmt.Errorf("count bookings: %w", err)
		}
	}

	slots := make([]Slot, 0, len(starts))
	for _, start := range starts {
		slot := Slot{StartsAt: start, EndsAt: start.Add(st.Duration())}
		if st.Capacity != nil {
			remaining := *st.Capacity - booked[start.Unix()]
			if remaining <= 0 {
				continue
			}
			slot.Remaining = &remaining
		}
		slots = append(slots, slot)
	}
	return slots, nil
}
