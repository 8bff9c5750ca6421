// Package booking reserves service type slots for athletes, enforcing tier,
// fixed start time, availability and capacity rules.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/outbox"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

const (
	EventCreated       = "booking.created.v1"
	EventStatusChanged = "booking.status_changed.v1"
)

// SlotTx runs while the (service type, start) slot is locked, so the count
// and the insert cannot interleave with another booking of the same slot.
type SlotTx interface {
	CountActive(ctx context.Context) (int, error)
	CoveredByBlock(ctx context.Context, startsAt, endsAt time.Time) (bool, error)
	Insert(ctx context.Context, b model.Booking) error
	Emit(ctx context.Context, evt outbox.Event) error
}

type StatusTx interface {
	SetStatus(ctx context.Context, status model.BookingStatus, at time.Time) error
	Emit(ctx context.Context, evt outbox.Event) error
}

type Repository interface {
	WithSlot(ctx context.Context, serviceTypeID string, startsAt time.Time, fn func(context.Context, SlotTx) error) error
	WithBooking(ctx context.Context, id string, fn func(context.Context, model.Booking, StatusTx) error) error
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	ListBookingsByGuardian(ctx context.Context, guardianID string) ([]model.Booking, error)
}

type ServiceTypes interface {
	Get(ctx context.Context, id string) (model.ServiceType, error)
}

type Athletes interface {
	Get(ctx context.Context, id string) (model.Athlete, error)
}

type Options struct {
	// EnforceAvailability requires every booking to fall inside an open
	// availability block.
	EnforceAvailability bool
}

type CreateInput struct {
	ServiceTypeID string    `json:"serviceTypeId" validate:"required"`
	AthleteID     string    `json:"athleteId" validate:"required"`
	GuardianID    string    `json:"guardianId" validate:"required"`
	StartsAt      time.Time `json:"startsAt" validate:"required"`
	EndsAt        time.Time `json:"endsAt" validate:"required"`
	CreatedBy     string    `json:"createdBy" validate:"required"`
	Location      string    `json:"location" validate:"max=500"`
	MeetingLink   string    `json:"meetingLink" validate:"omitempty,url"`
}

type payload struct {
	BookingID     string              `json:"bookingId"`
	ServiceTypeID string              `json:"serviceTypeId"`
	AthleteID     string              `json:"athleteId"`
	GuardianID    string              `json:"guardianId"`
	Kind          model.ServiceKind   `json:"type"`
	StartsAt      time.Time           `json:"startsAt"`
	EndsAt        time.Time           `json:"endsAt"`
	Status        model.BookingStatus `json:"status"`
	PrevStatus    model.BookingStatus `json:"previousStatus,omitempty"`
	Actor         string              `json:"actor"`
}

type Engine struct {
	repo         Repository
	serviceTypes ServiceTypes
	athletes     Athletes
	opts         Options
	logger       *slog.Logger
	now          func() time.Time
}

func NewEngine(repo Repository, serviceTypes ServiceTypes, athletes Athletes, opts Options, logger *slog.Logger) *Engine {
	return &Engine{
		repo:         repo,
		serviceTypes: serviceTypes,
		athletes:     athletes,
		opts:         opts,
		logger:       logger,
		now:          time.Now,
	}
}

// Create books a slot. New bookings are confirmed immediately and the kind is
// copied from the service type.
func (e *Engine) Create(ctx context.Context, in CreateInput) (model.Booking, error) {
	// Postgres keeps microseconds; finer instants would name distinct slots
	// that store as the same one.
	in.StartsAt = in.StartsAt.Truncate(time.Microsecond)
	in.EndsAt = in.EndsAt.Truncate(time.Microsecond)
	if err := model.Validate(in); err != nil {
		return model.Booking{}, err
	}
	if !in.EndsAt.After(in.StartsAt) {
		return model.Booking{}, model.NewValidationError("endsAt", "must be after startsAt")
	}

	st, err := e.serviceTypes.Get(ctx, in.ServiceTypeID)
	if err != nil {
		return model.Booking{}, err
	}
	if !st.Active {
		return model.Booking{}, &model.NotFoundError{Entity: "service type", ID: st.ID}
	}

	athlete, err := e.athletes.Get(ctx, in.AthleteID)
	if err != nil {
		return model.Booking{}, err
	}
	if st.MinimumTier != nil {
		actual := tier.OrLowest(athlete.CurrentProgramTier)
		if !tier.AtLeast(actual, *st.MinimumTier) {
			return model.Booking{}, &model.TierRestrictedError{Required: *st.MinimumTier, Actual: actual}
		}
	}

	// Compared on the submitted timestamp's own wall clock.
	if st.FixedStartTime != nil && in.StartsAt.Format("15:04") != *st.FixedStartTime {
		return model.Booking{}, &model.InvalidScheduleError{
			Reason: fmt.Sprintf("%s sessions start at %s, got %s", st.Name, *st.FixedStartTime, in.StartsAt.Format("15:04")),
		}
	}

	now := e.now().UTC()
	b := model.Booking{
		ID:            uuid.NewString(),
		ServiceTypeID: st.ID,
		AthleteID:     athlete.ID,
		GuardianID:    in.GuardianID,
		CreatedBy:     in.CreatedBy,
		Kind:          st.Kind,
		StartsAt:      in.StartsAt,
		EndsAt:        in.EndsAt,
		Status:        model.BookingConfirmed,
		Location:      in.Location,
		MeetingLink:   in.MeetingLink,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = e.repo.WithSlot(ctx, st.ID, in.StartsAt, func(ctx context.Context, tx SlotTx) error {
		if e.opts.EnforceAvailability {
			covered, err := tx.CoveredByBlock(ctx, in.StartsAt, in.EndsAt)
			if err != nil {
				return err
			}
			if !covered {
				return &model.InvalidScheduleError{Reason: "no open availability covers the requested time"}
			}
		}
		if st.Capacity != nil {
			taken, err := tx.CountActive(ctx)
			if err != nil {
				return err
			}
			if taken >= *st.Capacity {
				return &model.CapacityExceededError{ServiceTypeID: st.ID, StartsAt: in.StartsAt, Capacity: *st.Capacity}
			}
		}
		if err := tx.Insert(ctx, b); err != nil {
			return err
		}
		evt, err := outbox.NewEvent("booking", b.ID, EventCreated, now, newPayload(b, "", in.CreatedBy))
		if err != nil {
			return err
		}
		return tx.Emit(ctx, evt)
	})
	if err != nil {
		return model.Booking{}, fmt.Errorf("create booking: %w", err)
	}

	e.logger.Info("booking created", "booking_id", b.ID, "service_type_id", b.ServiceTypeID,
		"athlete_id", b.AthleteID, "starts_at", b.StartsAt)
	return b, nil
}

// ListForGuardian returns every booking of the guardian regardless of status
// or date.
func (e *Engine) ListForGuardian(ctx context.Context, guardianID string) ([]model.Booking, error) {
	return e.repo.ListBookingsByGuardian(ctx, guardianID)
}

func (e *Engine) Get(ctx context.Context, id string) (model.Booking, error) {
	return e.repo.GetBooking(ctx, id)
}

// UpdateStatus moves a booking along its lifecycle. Setting the current
// status again is a no-op.
func (e *Engine) UpdateStatus(ctx context.Context, id string, status model.BookingStatus, actor string) (model.Booking, error) {
	if !status.Valid() {
		return model.Booking{}, model.NewValidationError("status", "must be one of pending, confirmed, declined, cancelled")
	}

	var out model.Booking
	err := e.repo.WithBooking(ctx, id, func(ctx context.Context, current model.Booking, tx StatusTx) error {
		out = current
		if current.Status == status {
			return nil
		}
		if !current.Status.CanTransitionTo(status) {
			return &model.InvalidTransitionError{Entity: "booking", From: string(current.Status), To: string(status)}
		}
		now := e.now().UTC()
		if err := tx.SetStatus(ctx, status, now); err != nil {
			return err
		}
		out.Status = status
		out.UpdatedAt = now

		evt, err := outbox.NewEvent("booking", out.ID, EventStatusChanged, now, newPayload(out, current.Status, actor))
		if err != nil {
			return err
		}
		return tx.Emit(ctx, evt)
	})
	if err != nil {
		return model.Booking{}, fmt.Errorf("update booking status: %w", err)
	}
	e.logger.Info("booking status updated", "booking_id", id, "status", out.Status, "actor", actor)
	return out, nil
}

func newPayload(b model.Booking, prev model.BookingStatus, actor string) payload {
	return payload{
		BookingID:     b.ID,
		ServiceTypeID: b.ServiceTypeID,
		AthleteID:     b.AthleteID,
		GuardianID:    b.GuardianID,
		Kind:          b.Kind,
		StartsAt:      b.StartsAt,
		EndsAt:        b.EndsAt,
		Status:        b.Status,
		PrevStatus:    prev,
		Actor:         actor,
	}
}
