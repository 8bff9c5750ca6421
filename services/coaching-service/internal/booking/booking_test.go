package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/outbox"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

// memRepo serialises each slot with a mutex, standing in for the advisory
// lock taken by the Postgres implementation.
type memRepo struct {
	mu       sync.Mutex
	slots    map[string]*sync.Mutex
	bookings map[string]model.Booking
	blocks   []model.AvailabilityBlock
	events   []outbox.Event
}

func newMemRepo() *memRepo {
	return &memRepo{slots: map[string]*sync.Mutex{}, bookings: map[string]model.Booking{}}
}

func (m *memRepo) slotLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.slots[key]
	if !ok {
		l = &sync.Mutex{}
		m.slots[key] = l
	}
	return l
}

type slotTx struct {
	repo          *memRepo
	serviceTypeID string
	startsAt      time.Time
	pending       []model.Booking
	events        []outbox.Event
}

func (t *slotTx) CountActive(context.Context) (int, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	n := 0
	for _, b := range t.repo.bookings {
		if b.ServiceTypeID == t.serviceTypeID && b.StartsAt.Equal(t.startsAt) && b.Status != model.BookingCancelled {
			n++
		}
	}
	return n, nil
}

func (t *slotTx) CoveredByBlock(_ context.Context, start, end time.Time) (bool, error) {
	for _, b := range t.repo.blocks {
		if b.ServiceTypeID == t.serviceTypeID && b.Contains(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (t *slotTx) Insert(_ context.Context, b model.Booking) error {
	t.pending = append(t.pending, b)
	return nil
}

func (t *slotTx) Emit(_ context.Context, evt outbox.Event) error {
	t.events = append(t.events, evt)
	return nil
}

func (m *memRepo) WithSlot(ctx context.Context, serviceTypeID string, startsAt time.Time, fn func(context.Context, SlotTx) error) error {
	l := m.slotLock(serviceTypeID + "|" + startsAt.UTC().Format(time.RFC3339Nano))
	l.Lock()
	defer l.Unlock()

	tx := &slotTx{repo: m, serviceTypeID: serviceTypeID, startsAt: startsAt}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range tx.pending {
		m.bookings[b.ID] = b
	}
	m.events = append(m.events, tx.events...)
	return nil
}

type statusTx struct {
	status model.BookingStatus
	at     time.Time
	events []outbox.Event
}

func (t *statusTx) SetStatus(_ context.Context, s model.BookingStatus, at time.Time) error {
	t.status, t.at = s, at
	return nil
}

func (t *statusTx) Emit(_ context.Context, evt outbox.Event) error {
	t.events = append(t.events, evt)
	return nil
}

func (m *memRepo) WithBooking(ctx context.Context, id string, fn func(context.Context, model.Booking, StatusTx) error) error {
	m.mu.Lock()
	b, ok := m.bookings[id]
	m.mu.Unlock()
	if !ok {
		return &model.NotFoundError{Entity: "booking", ID: id}
	}
	tx := &statusTx{}
	if err := fn(ctx, b, tx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.status != "" {
		b.Status, b.UpdatedAt = tx.status, tx.at
		m.bookings[id] = b
	}
	m.events = append(m.events, tx.events...)
	return nil
}

func (m *memRepo) GetBooking(_ context.Context, id string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return model.Booking{}, &model.NotFoundError{Entity: "booking", ID: id}
	}
	return b, nil
}

func (m *memRepo) ListBookingsByGuardian(_ context.Context, guardianID string) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.GuardianID == guardianID {
			out = append(out, b)
		}
	}
	return out, nil
}

type stubTypes map[string]model.ServiceType

func (s stubTypes) Get(_ context.Context, id string) (model.ServiceType, error) {
	st, ok := s[id]
	if !ok {
		return model.ServiceType{}, &model.NotFoundError{Entity: "service type", ID: id}
	}
	return st, nil
}

type stubAthletes map[string]model.Athlete

func (s stubAthletes) Get(_ context.Context, id string) (model.Athlete, error) {
	a, ok := s[id]
	if !ok {
		return model.Athlete{}, &model.NotFoundError{Entity: "athlete", ID: id}
	}
	return a, nil
}

func ptr[T any](v T) *T { return &v }

var (
	evening = time.Date(2026, 3, 3, 18, 0, 0, 0, time.UTC)

	serviceTypes = stubTypes{
		"group":   {ID: "group", Name: "Group call", Kind: model.KindGroupCall, DurationMinutes: 60, Capacity: ptr(2), FixedStartTime: ptr("18:00"), Active: true},
		"premium": {ID: "premium", Name: "Role model", Kind: model.KindRoleModel, DurationMinutes: 30, MinimumTier: ptr(tier.Premium), Active: true},
		"plus":    {ID: "plus", Name: "1:1", Kind: model.KindOneOnOne, DurationMinutes: 45, MinimumTier: ptr(tier.Plus), Active: true},
		"open":    {ID: "open", Name: "Open 1:1", Kind: model.KindOneOnOne, DurationMinutes: 45, Active: true},
		"retired": {ID: "retired", Name: "Old", Kind: model.KindOneOnOne, DurationMinutes: 45, Active: false},
	}
	athletes = stubAthletes{
		"base-athlete":    {ID: "base-athlete", GuardianID: "g-1", CurrentProgramTier: ptr(tier.Base)},
		"premium-athlete": {ID: "premium-athlete", GuardianID: "g-1", CurrentProgramTier: ptr(tier.Premium)},
		"no-tier":         {ID: "no-tier", GuardianID: "g-2"},
	}
)

func newEngine(repo *memRepo, opts Options) *Engine {
	e := NewEngine(repo, serviceTypes, athletes, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.now = func() time.Time { return evening.Add(-48 * time.Hour) }
	return e
}

func input(serviceTypeID, athleteID string, start time.Time, minutes int) CreateInput {
	return CreateInput{
		ServiceTypeID: serviceTypeID,
		AthleteID:     athleteID,
		GuardianID:    "g-1",
		StartsAt:      start,
		EndsAt:        start.Add(time.Duration(minutes) * time.Minute),
		CreatedBy:     "user-1",
	}
}

func TestCreateConfirmsAndCopiesKind(t *testing.T) {
	repo := newMemRepo()
	b, err := newEngine(repo, Options{}).Create(context.Background(), input("group", "base-athlete", evening, 60))
	require.NoError(t, err)

	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, model.KindGroupCall, b.Kind)
	require.Len(t, repo.events, 1)
	assert.Equal(t, EventCreated, repo.events[0].EventType)
	assert.Equal(t, b.ID, repo.events[0].AggregateID)
}

func TestCreateFixedStartTime(t *testing.T) {
	e := newEngine(newMemRepo(), Options{})
	ctx := context.Background()

	_, err := e.Create(ctx, input("group", "base-athlete", evening.Add(30*time.Minute), 60))
	assert.ErrorIs(t, err, model.ErrInvalidSchedule)

	// 18:00 in the submitter's own offset is accepted as-is.
	cet := time.Date(2026, 3, 4, 18, 0, 0, 0, time.FixedZone("CET", 3600))
	_, err = e.Create(ctx, input("group", "base-athlete", cet, 60))
	assert.NoError(t, err)
}

func TestCreateCapacity(t *testing.T) {
	repo := newMemRepo()
	e := newEngine(repo, Options{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := e.Create(ctx, input("group", "base-athlete", evening, 60))
		require.NoError(t, err)
	}
	_, err := e.Create(ctx, input("group", "base-athlete", evening, 60))
	var capErr *model.CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 2, capErr.Capacity)

	// A different start time is a different slot.
	_, err = e.Create(ctx, input("group", "base-athlete", evening.Add(24*time.Hour), 60))
	assert.NoError(t, err)
}

func TestCreateCapacityCountsSubMicrosecondStartsAsOneSlot(t *testing.T) {
	repo := newMemRepo()
	e := newEngine(repo, Options{})
	ctx := context.Background()

	first, err := e.Create(ctx, input("group", "base-athlete", evening.Add(100*time.Nanosecond), 60))
	require.NoError(t, err)
	assert.True(t, first.StartsAt.Equal(evening))
	assert.True(t, first.EndsAt.Equal(evening.Add(time.Hour)))

	_, err = e.Create(ctx, input("group", "base-athlete", evening.Add(200*time.Nanosecond), 60))
	require.NoError(t, err)

	_, err = e.Create(ctx, input("group", "base-athlete", evening.Add(300*time.Nanosecond), 60))
	assert.ErrorIs(t, err, model.ErrCapacityExceeded)
}

func TestCreateCapacityIgnoresCancelled(t *testing.T) {
	repo := newMemRepo()
	e := newEngine(repo, Options{})
	ctx := context.Background()

	first, err := e.Create(ctx, input("group", "base-athlete", evening, 60))
	require.NoError(t, err)
	_, err = e.Create(ctx, input("group", "base-athlete", evening, 60))
	require.NoError(t, err)

	_, err = e.UpdateStatus(ctx, first.ID, model.BookingCancelled, "coach-1")
	require.NoError(t, err)

	_, err = e.Create(ctx, input("group", "base-athlete", evening, 60))
	assert.NoError(t, err)
}

func TestCreateCapacityUnderConcurrency(t *testing.T) {
	repo := newMemRepo()
	e := newEngine(repo, Options{})

	const attempts = 10
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Create(context.Background(), input("group", "base-athlete", evening, 60))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, full := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrCapacityExceeded):
			full++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, attempts-2, full)
}

func TestCreateTierGate(t *testing.T) {
	e := newEngine(newMemRepo(), Options{})
	ctx := context.Background()
	start := evening.Add(time.Hour)

	_, err := e.Create(ctx, input("premium", "base-athlete", start, 30))
	var tierErr *model.TierRestrictedError
	require.ErrorAs(t, err, &tierErr)
	assert.Equal(t, tier.Premium, tierErr.Required)
	assert.Equal(t, tier.Base, tierErr.Actual)

	_, err = e.Create(ctx, input("premium", "premium-athlete", start, 30))
	assert.NoError(t, err)

	_, err = e.Create(ctx, input("plus", "no-tier", start, 45))
	assert.ErrorIs(t, err, model.ErrTierRestricted, "missing tier counts as the lowest")

	_, err = e.Create(ctx, input("open", "no-tier", start, 45))
	assert.NoError(t, err)
}

func TestCreateNotFoundAndValidation(t *testing.T) {
	e := newEngine(newMemRepo(), Options{})
	ctx := context.Background()

	_, err := e.Create(ctx, input("missing", "base-athlete", evening, 60))
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = e.Create(ctx, input("retired", "base-athlete", evening, 45))
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = e.Create(ctx, input("open", "ghost", evening, 45))
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = e.Create(ctx, input("open", "base-athlete", evening, 0))
	assert.ErrorIs(t, err, model.ErrValidation)

	bad := input("open", "base-athlete", evening, 45)
	bad.MeetingLink = "not a url"
	_, err = e.Create(ctx, bad)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCreateEnforcesAvailabilityWhenEnabled(t *testing.T) {
	repo := newMemRepo()
	repo.blocks = []model.AvailabilityBlock{{ServiceTypeID: "open", StartsAt: evening, EndsAt: evening.Add(2 * time.Hour)}}
	ctx := context.Background()

	strict := newEngine(repo, Options{EnforceAvailability: true})
	_, err := strict.Create(ctx, input("open", "base-athlete", evening.Add(30*time.Minute), 45))
	assert.NoError(t, err)
	_, err = strict.Create(ctx, input("open", "base-athlete", evening.Add(90*time.Minute), 45))
	assert.ErrorIs(t, err, model.ErrInvalidSchedule)

	lenient := newEngine(repo, Options{})
	_, err = lenient.Create(ctx, input("open", "base-athlete", evening.Add(90*time.Minute), 45))
	assert.NoError(t, err)
}

func TestUpdateStatus(t *testing.T) {
	repo := newMemRepo()
	e := newEngine(repo, Options{})
	ctx := context.Background()

	b, err := e.Create(ctx, input("open", "base-athlete", evening, 45))
	require.NoError(t, err)

	same, err := e.UpdateStatus(ctx, b.ID, model.BookingConfirmed, "coach-1")
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, same.Status)
	assert.Len(t, repo.events, 1, "no-op emits nothing")

	declined, err := e.UpdateStatus(ctx, b.ID, model.BookingDeclined, "coach-1")
	require.NoError(t, err)
	assert.Equal(t, model.BookingDeclined, declined.Status)
	assert.Equal(t, EventStatusChanged, repo.events[len(repo.events)-1].EventType)

	_, err = e.UpdateStatus(ctx, b.ID, model.BookingConfirmed, "coach-1")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = e.UpdateStatus(ctx, b.ID, "archived", "coach-1")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = e.UpdateStatus(ctx, "missing", model.BookingCancelled, "coach-1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListForGuardianIsRepeatable(t *testing.T) {
	repo := newMemRepo()
	e := newEngine(repo, Options{})
	ctx := context.Background()

	_, err := e.Create(ctx, input("open", "base-athlete", evening, 45))
	require.NoError(t, err)

	first, err := e.ListForGuardian(ctx, "g-1")
	require.NoError(t, err)
	second, err := e.ListForGuardian(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 1)
}
