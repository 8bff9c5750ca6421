package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/strideacademy/coachbook/libs/db"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/booking"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/outbox"
)

const bookingColumns = `id::text, service_type_id::text, athlete_id::text, guardian_id, created_by, kind,
	starts_at, ends_at, status, location, meeting_link, created_at, updated_at`

type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, ob *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: ob}
}

// slotLockKey identifies one (service type, start instant) slot at the
// microsecond precision timestamptz stores. Equal instants in different
// offsets map to the same key.
func slotLockKey(serviceTypeID string, startsAt time.Time) string {
	return serviceTypeID + "|" + startsAt.Truncate(time.Microsecond).UTC().Format(time.RFC3339Nano)
}

// WithSlot serialises writers of one slot with a transaction-scoped advisory
// lock. The lock is released on commit or rollback.
func (r *BookingRepository) WithSlot(ctx context.Context, serviceTypeID string, startsAt time.Time, fn func(context.Context, booking.SlotTx) error) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, slotLockKey(serviceTypeID, startsAt)); err != nil {
			return err
		}
		return fn(ctx, &slotTx{tx: tx, outbox: r.outbox, serviceTypeID: serviceTypeID, startsAt: startsAt})
	})
}

type slotTx struct {
	tx            pgx.Tx
	outbox        *outbox.Repository
	serviceTypeID string
	startsAt      time.Time
}

func (t *slotTx) CountActive(ctx context.Context) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE service_type_id = $1
			AND starts_at = $2
			AND status <> 'cancelled'
	`, t.serviceTypeID, t.startsAt).Scan(&n)
	return n, err
}

func (t *slotTx) CoveredByBlock(ctx context.Context, startsAt, endsAt time.Time) (bool, error) {
	var covered bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM availability_blocks
			WHERE service_type_id = $1
				AND starts_at <= $2
				AND ends_at >= $3
		)
	`, t.serviceTypeID, startsAt, endsAt).Scan(&covered)
	return covered, err
}

func (t *slotTx) Insert(ctx context.Context, b model.Booking) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings
			(id, service_type_id, athlete_id, guardian_id, created_by, kind, starts_at, ends_at, status,
			 location, meeting_link, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, b.ID, b.ServiceTypeID, b.AthleteID, b.GuardianID, b.CreatedBy, string(b.Kind), b.StartsAt, b.EndsAt,
		string(b.Status), b.Location, b.MeetingLink, b.CreatedAt, b.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return &model.NotFoundError{Entity: "athlete", ID: b.AthleteID}
	}
	return err
}

func (t *slotTx) Emit(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

func (r *BookingRepository) WithBooking(ctx context.Context, id string, fn func(context.Context, model.Booking, booking.StatusTx) error) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		b, err := scanBooking(tx.QueryRow(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE id = $1
			FOR UPDATE
		`, id))
		if err != nil {
			return notFound(err, "booking", id)
		}
		return fn(ctx, b, &bookingStatusTx{tx: tx, outbox: r.outbox, id: id})
	})
}

type bookingStatusTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
	id     string
}

func (t *bookingStatusTx) SetStatus(ctx context.Context, status model.BookingStatus, at time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET status = $2,
			updated_at = $3
		WHERE id = $1
	`, t.id, string(status), at)
	return err
}

func (t *bookingStatusTx) Emit(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

func (r *BookingRepository) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id))
	if err != nil {
		return model.Booking{}, notFound(err, "booking", id)
	}
	return b, nil
}

func (r *BookingRepository) ListBookingsByGuardian(ctx context.Context, guardianID string) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE guardian_id = $1
		ORDER BY starts_at, id
	`, guardianID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Booking, error) {
		return scanBooking(row)
	})
}

func scanBooking(row rowScanner) (model.Booking, error) {
	var b model.Booking
	var kind, status string
	err := row.Scan(
		&b.ID,
		&b.ServiceTypeID,
		&b.AthleteID,
		&b.GuardianID,
		&b.CreatedBy,
		&kind,
		&b.StartsAt,
		&b.EndsAt,
		&status,
		&b.Location,
		&b.MeetingLink,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	b.Kind = model.ServiceKind(kind)
	b.Status = model.BookingStatus(status)
	return b, err
}
