package roster

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strideacademy/coachbook/libs/auth"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/outbox"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

type memRepo struct {
	athletes map[string]model.Athlete
	events   []outbox.Event
}

type memTx struct {
	repo *memRepo
	id   string
}

func (t memTx) SetTier(_ context.Context, tr *tier.Tier, at time.Time) error {
	a := t.repo.athletes[t.id]
	a.CurrentProgramTier = tr
	a.UpdatedAt = at
	t.repo.athletes[t.id] = a
	return nil
}

func (t memTx) Emit(_ context.Context, evt outbox.Event) error {
	t.repo.events = append(t.repo.events, evt)
	return nil
}

func (m *memRepo) GetAthlete(_ context.Context, id string) (model.Athlete, error) {
	a, ok := m.athletes[id]
	if !ok {
		return model.Athlete{}, &model.NotFoundError{Entity: "athlete", ID: id}
	}
	return a, nil
}

func (m *memRepo) ListAthletesByGuardian(_ context.Context, guardianID string) ([]model.Athlete, error) {
	var out []model.Athlete
	for _, a := range m.athletes {
		if a.GuardianID == guardianID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) WithAthlete(ctx context.Context, id string, fn func(context.Context, model.Athlete, TierTx) error) error {
	a, err := m.GetAthlete(ctx, id)
	if err != nil {
		return err
	}
	return fn(ctx, a, memTx{repo: m, id: id})
}

func newService() (*Service, *memRepo) {
	repo := &memRepo{athletes: map[string]model.Athlete{
		"a-1": {ID: "a-1", GuardianID: "g-1", FirstName: "Mia"},
		"a-2": {ID: "a-2", GuardianID: "g-2", FirstName: "Leo"},
	}}
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

func TestAssignTier(t *testing.T) {
	svc, repo := newService()

	a, err := svc.AssignTier(context.Background(), "a-1", tier.Premium, "coach-1")
	require.NoError(t, err)
	assert.Equal(t, tier.Premium, *a.CurrentProgramTier)
	assert.Equal(t, tier.Premium, *repo.athletes["a-1"].CurrentProgramTier)
	require.Len(t, repo.events, 1)
	assert.Equal(t, EventTierChanged, repo.events[0].EventType)

	_, err = svc.AssignTier(context.Background(), "missing", tier.Plus, "coach-1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.AssignTier(context.Background(), "a-1", "gold", "coach-1")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestResolveCaller(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	guardian := Caller{UserID: "u-1", Role: auth.RoleGuardian, GuardianID: "g-1"}
	a, err := svc.ResolveCaller(ctx, guardian, "a-1")
	require.NoError(t, err)
	assert.Equal(t, "a-1", a.ID)

	_, err = svc.ResolveCaller(ctx, guardian, "a-2")
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = svc.ResolveCaller(ctx, guardian, "")
	assert.ErrorIs(t, err, model.ErrValidation)

	athlete := Caller{UserID: "u-9", Role: auth.RoleAthlete, AthleteID: "a-2"}
	a, err = svc.ResolveCaller(ctx, athlete, "")
	require.NoError(t, err)
	assert.Equal(t, "g-2", a.GuardianID)

	_, err = svc.ResolveCaller(ctx, athlete, "a-1")
	assert.ErrorIs(t, err, model.ErrForbidden)

	coach := Caller{UserID: "c-1", Role: auth.RoleCoach}
	a, err = svc.ResolveCaller(ctx, coach, "a-1")
	require.NoError(t, err)
	assert.Equal(t, "a-1", a.ID)
}

func TestGuardianKeyFallsBackToSubject(t *testing.T) {
	assert.Equal(t, "g-1", Caller{UserID: "u", GuardianID: "g-1"}.GuardianKey())
	assert.Equal(t, "u", Caller{UserID: "u"}.GuardianKey())
}
