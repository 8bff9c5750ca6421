// Package enrollment tracks which program each athlete is enrolled in and
// how enrollments progress from onboarding to completion.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/outbox"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

const (
	EventCreated       = "enrollment.created.v1"
	EventStatusChanged = "enrollment.status_changed.v1"
)

// Tx groups the writes of one enrollment operation.
type Tx interface {
	InsertAthlete(ctx context.Context, a model.Athlete) error
	// LockAthlete loads the athlete row for update.
	LockAthlete(ctx context.Context, id string) (model.Athlete, error)
	SetAthleteTier(ctx context.Context, athleteID string, t *tier.Tier, at time.Time) error
	// InsertEnrollment returns *model.DuplicateEnrollmentError holding the
	// stored row when the athlete already has this program type.
	InsertEnrollment(ctx context.Context, e model.Enrollment) error
	// LockEnrollment loads the enrollment row for update.
	LockEnrollment(ctx context.Context, id string) (model.Enrollment, error)
	SetEnrollmentStatus(ctx context.Context, id string, status model.EnrollmentStatus, at time.Time) error
	Emit(ctx context.Context, evt outbox.Event) error
}

type Repository interface {
	InTx(ctx context.Context, fn func(context.Context, Tx) error) error
	ListEnrollmentsByAthlete(ctx context.Context, athleteID string) ([]model.Enrollment, error)
}

type AthleteProfile struct {
	FirstName string     `json:"firstName" validate:"required,max=100"`
	LastName  string     `json:"lastName" validate:"required,max=100"`
	BirthDate *time.Time `json:"birthDate"`
	Sport     string     `json:"sport" validate:"max=100"`
}

type OnboardingInput struct {
	GuardianID         string         `json:"guardianId" validate:"required"`
	UserID             string         `json:"userId" validate:"required"`
	Athlete            AthleteProfile `json:"athlete"`
	DesiredProgramType tier.Tier      `json:"desiredProgramType" validate:"required,tier"`
}

type OnboardingResult struct {
	Athlete    model.Athlete
	Enrollment model.Enrollment
}

type AssignInput struct {
	AthleteID   string    `json:"athleteId" validate:"required"`
	ProgramType tier.Tier `json:"programType" validate:"required,tier"`
	AssignedBy  string    `json:"assignedBy" validate:"required"`
	TemplateID  string    `json:"templateId" validate:"max=100"`
}

type payload struct {
	EnrollmentID   string                 `json:"enrollmentId"`
	AthleteID      string                 `json:"athleteId"`
	ProgramType    tier.Tier              `json:"programType"`
	Status         model.EnrollmentStatus `json:"status"`
	PreviousStatus model.EnrollmentStatus `json:"previousStatus,omitempty"`
	Actor          string                 `json:"actor"`
}

type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// SubmitOnboarding creates the athlete and their first enrollment. The lowest
// tier is granted at once; paid tiers wait for staff approval and the athlete
// starts on the lowest tier meanwhile.
func (s *Service) SubmitOnboarding(ctx context.Context, in OnboardingInput) (OnboardingResult, error) {
	in.Athlete.FirstName = strings.TrimSpace(in.Athlete.FirstName)
	in.Athlete.LastName = strings.TrimSpace(in.Athlete.LastName)
	in.Athlete.Sport = strings.TrimSpace(in.Athlete.Sport)
	if err := model.Validate(in); err != nil {
		return OnboardingResult{}, err
	}

	now := s.now().UTC()
	status := model.EnrollmentPending
	current := tier.Lowest()
	if in.DesiredProgramType == tier.Lowest() {
		status = model.EnrollmentActive
		current = in.DesiredProgramType
	}

	athlete := model.Athlete{
		ID:                 uuid.NewString(),
		GuardianID:         in.GuardianID,
		UserID:             in.UserID,
		FirstName:          in.Athlete.FirstName,
		LastName:           in.Athlete.LastName,
		BirthDate:          in.Athlete.BirthDate,
		Sport:              in.Athlete.Sport,
		CurrentProgramTier: &current,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	enr := model.Enrollment{
		ID:          uuid.NewString(),
		AthleteID:   athlete.ID,
		ProgramType: in.DesiredProgramType,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertAthlete(ctx, athlete); err != nil {
			return err
		}
		if err := tx.InsertEnrollment(ctx, enr); err != nil {
			return err
		}
		return s.emit(ctx, tx, EventCreated, enr, "", in.UserID, now)
	})
	if err != nil {
		return OnboardingResult{}, fmt.Errorf("submit onboarding: %w", err)
	}

	s.logger.Info("athlete onboarded", "athlete_id", athlete.ID, "guardian_id", athlete.GuardianID,
		"program_type", enr.ProgramType, "status", enr.Status)
	return OnboardingResult{Athlete: athlete, Enrollment: enr}, nil
}

// Assign enrolls an athlete on behalf of staff. The enrollment is active
// immediately and the athlete moves to its tier. When the athlete already has
// the program type the stored enrollment is returned with created=false; a
// pending one is activated first.
func (s *Service) Assign(ctx context.Context, in AssignInput) (model.Enrollment, bool, error) {
	if err := model.Validate(in); err != nil {
		return model.Enrollment{}, false, err
	}

	now := s.now().UTC()
	enr := model.Enrollment{
		ID:          uuid.NewString(),
		AthleteID:   in.AthleteID,
		ProgramType: in.ProgramType,
		Status:      model.EnrollmentActive,
		AssignedBy:  in.AssignedBy,
		TemplateID:  strings.TrimSpace(in.TemplateID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var existing *model.Enrollment
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockAthlete(ctx, in.AthleteID); err != nil {
			return err
		}
		err := tx.InsertEnrollment(ctx, enr)
		var dup *model.DuplicateEnrollmentError
		if errors.As(err, &dup) {
			current, err := tx.LockEnrollment(ctx, dup.Existing.ID)
			if err != nil {
				return err
			}
			existing = &current
			if current.Status != model.EnrollmentPending {
				return nil
			}
			if err := tx.SetEnrollmentStatus(ctx, current.ID, model.EnrollmentActive, now); err != nil {
				return err
			}
			if err := tx.SetAthleteTier(ctx, current.AthleteID, &current.ProgramType, now); err != nil {
				return err
			}
			existing.Status = model.EnrollmentActive
			existing.UpdatedAt = now
			return s.emit(ctx, tx, EventStatusChanged, *existing, model.EnrollmentPending, in.AssignedBy, now)
		}
		if err != nil {
			return err
		}
		if err := tx.SetAthleteTier(ctx, enr.AthleteID, &enr.ProgramType, now); err != nil {
			return err
		}
		return s.emit(ctx, tx, EventCreated, enr, "", in.AssignedBy, now)
	})
	if err != nil {
		return model.Enrollment{}, false, fmt.Errorf("assign enrollment: %w", err)
	}
	if existing != nil {
		s.logger.Info("enrollment already exists", "enrollment_id", existing.ID, "athlete_id", existing.AthleteID,
			"program_type", existing.ProgramType)
		return *existing, false, nil
	}

	s.logger.Info("enrollment assigned", "enrollment_id", enr.ID, "athlete_id", enr.AthleteID,
		"program_type", enr.ProgramType, "assigned_by", enr.AssignedBy)
	return enr, true, nil
}

// UpdateStatus applies a staff review decision. Activating an enrollment
// moves the athlete to its program tier in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, id string, status model.EnrollmentStatus, actor string) (model.Enrollment, error) {
	if !status.Valid() {
		return model.Enrollment{}, model.NewValidationError("status", "must be one of pending, active, completed, failed")
	}

	var out model.Enrollment
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.LockEnrollment(ctx, id)
		if err != nil {
			return err
		}
		out = current
		if current.Status == status {
			return nil
		}
		if !current.Status.CanTransitionTo(status) {
			return &model.InvalidTransitionError{Entity: "enrollment", From: string(current.Status), To: string(status)}
		}

		now := s.now().UTC()
		if err := tx.SetEnrollmentStatus(ctx, id, status, now); err != nil {
			return err
		}
		if status == model.EnrollmentActive {
			if err := tx.SetAthleteTier(ctx, current.AthleteID, &current.ProgramType, now); err != nil {
				return err
			}
		}
		out.Status = status
		out.UpdatedAt = now
		return s.emit(ctx, tx, EventStatusChanged, out, current.Status, actor, now)
	})
	if err != nil {
		return model.Enrollment{}, fmt.Errorf("update enrollment status: %w", err)
	}
	s.logger.Info("enrollment status updated", "enrollment_id", id, "status", out.Status, "actor", actor)
	return out, nil
}

func (s *Service) ListForAthlete(ctx context.Context, athleteID string) ([]model.Enrollment, error) {
	return s.repo.ListEnrollmentsByAthlete(ctx, athleteID)
}

func (s *Service) emit(ctx context.Context, tx Tx, eventType string, e model.Enrollment, prev model.EnrollmentStatus, actor string, at time.Time) error {
	evt, err := outbox.NewEvent("enrollment", e.ID, eventType, at, payload{
		EnrollmentID:   e.ID,
		AthleteID:      e.AthleteID,
		ProgramType:    e.ProgramType,
		Status:         e.Status,
		PreviousStatus: prev,
		Actor:          actor,
	})
	if err != nil {
		return err
	}
	return tx.Emit(ctx, evt)
}
