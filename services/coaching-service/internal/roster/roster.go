// Package roster owns athlete records: tier assignment and mapping an
// authenticated caller to the athlete they act for.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/strideacademy/coachbook/libs/auth"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/outbox"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

const EventTierChanged = "athlete.tier_changed.v1"

// TierTx is the write side available while an athlete row is locked.
type TierTx interface {
	SetTier(ctx context.Context, t *tier.Tier, at time.Time) error
	Emit(ctx context.Context, evt outbox.Event) error
}

type Repository interface {
	GetAthlete(ctx context.Context, id string) (model.Athlete, error)
	ListAthletesByGuardian(ctx context.Context, guardianID string) ([]model.Athlete, error)
	// WithAthlete locks the athlete for the duration of fn and commits when
	// fn returns nil.
	WithAthlete(ctx context.Context, id string, fn func(ctx context.Context, a model.Athlete, tx TierTx) error) error
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID     string
	Role       auth.Role
	GuardianID string
	AthleteID  string
}

func CallerFromClaims(c *auth.Claims) Caller {
	return Caller{UserID: c.Subject, Role: c.Role, GuardianID: c.GuardianID, AthleteID: c.AthleteID}
}

// GuardianKey identifies a guardian caller. Identity providers that omit the
// guardian_id claim fall back to the subject.
func (c Caller) GuardianKey() string {
	if c.GuardianID != "" {
		return c.GuardianID
	}
	return c.UserID
}

type tierChanged struct {
	AthleteID    string     `json:"athleteId"`
	PreviousTier *tier.Tier `json:"previousTier"`
	ProgramTier  tier.Tier  `json:"programTier"`
	ChangedBy    string     `json:"changedBy"`
}

type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) Get(ctx context.Context, id string) (model.Athlete, error) {
	return s.repo.GetAthlete(ctx, id)
}

func (s *Service) ListForGuardian(ctx context.Context, guardianID string) ([]model.Athlete, error) {
	return s.repo.ListAthletesByGuardian(ctx, guardianID)
}

// AssignTier sets the athlete's current program tier regardless of
// enrollments.
func (s *Service) AssignTier(ctx context.Context, athleteID string, t tier.Tier, actor string) (model.Athlete, error) {
	if !t.Valid() {
		return model.Athlete{}, model.NewValidationError("programTier", "must be one of "+tier.Names())
	}

	var updated model.Athlete
	err := s.repo.WithAthlete(ctx, athleteID, func(ctx context.Context, a model.Athlete, tx TierTx) error {
		now := s.now().UTC()
		if err := tx.SetTier(ctx, &t, now); err != nil {
			return err
		}
		evt, err := outbox.NewEvent("athlete", a.ID, EventTierChanged, now, tierChanged{
			AthleteID:    a.ID,
			PreviousTier: a.CurrentProgramTier,
			ProgramTier:  t,
			ChangedBy:    actor,
		})
		if err != nil {
			return err
		}
		if err := tx.Emit(ctx, evt); err != nil {
			return err
		}
		updated = a
		updated.CurrentProgramTier = &t
		updated.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.Athlete{}, fmt.Errorf("assign tier: %w", err)
	}
	s.logger.Info("athlete tier assigned", "athlete_id", athleteID, "program_tier", t, "actor", actor)
	return updated, nil
}

// ResolveCaller returns the athlete a request acts for. Athletes act for
// themselves, guardians for their own athletes and staff for anyone.
func (s *Service) ResolveCaller(ctx context.Context, c Caller, requestedAthleteID string) (model.Athlete, error) {
	switch c.Role {
	case auth.RoleAthlete:
		if c.AthleteID == "" {
			return model.Athlete{}, fmt.Errorf("%w: athlete token has no athlete_id", model.ErrForbidden)
		}
		if requestedAthleteID != "" && requestedAthleteID != c.AthleteID {
			return model.Athlete{}, fmt.Errorf("%w: athletes may only act for themselves", model.ErrForbidden)
		}
		return s.repo.GetAthlete(ctx, c.AthleteID)

	case auth.RoleGuardian:
		if requestedAthleteID == "" {
			return model.Athlete{}, model.NewValidationError("athleteId", "is required")
		}
		a, err := s.repo.GetAthlete(ctx, requestedAthleteID)
		if err != nil {
			return model.Athlete{}, err
		}
		if a.GuardianID != c.GuardianKey() {
			return model.Athlete{}, fmt.Errorf("%w: athlete belongs to another guardian", model.ErrForbidden)
		}
		return a, nil

	case auth.RoleCoach, auth.RoleAdmin:
		if requestedAthleteID == "" {
			return model.Athlete{}, model.NewValidationError("athleteId", "is required")
		}
		return s.repo.GetAthlete(ctx, requestedAthleteID)
	}
	return model.Athlete{}, fmt.Errorf("%w: unknown role %q", model.ErrForbidden, c.Role)
}
