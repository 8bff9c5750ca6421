package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/strideacademy/coachbook/libs/db"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
)

type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

func (r *AvailabilityRepository) CreateBlock(ctx context.Context, b model.AvailabilityBlock) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availability_blocks (id, service_type_id, starts_at, ends_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.ServiceTypeID, b.StartsAt, b.EndsAt, b.CreatedBy, b.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return &model.NotFoundError{Entity: "service type", ID: b.ServiceTypeID}
	}
	return err
}

func (r *AvailabilityRepository) ListBlocks(ctx context.Context, serviceTypeID string, from, to time.Time) ([]model.AvailabilityBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, service_type_id::text, starts_at, ends_at, created_by, created_at
		FROM availability_blocks
		WHERE service_type_id = $1
			AND starts_at >= $2
			AND ends_at <= $3
		ORDER BY starts_at, id
	`, serviceTypeID, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AvailabilityBlock, error) {
		var b model.AvailabilityBlock
		err := row.Scan(&b.ID, &b.ServiceTypeID, &b.StartsAt, &b.EndsAt, &b.CreatedBy, &b.CreatedAt)
		return b, err
	})
}

func (r *AvailabilityRepository) CountBookingsByStart(ctx context.Context, serviceTypeID string, from, to time.Time) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT starts_at, COUNT(*)
		FROM bookings
		WHERE service_type_id = $1
			AND starts_at >= $2
			AND starts_at < $3
			AND status <> 'cancelled'
		GROUP BY starts_at
	`, serviceTypeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[int64]int{}
	for rows.Next() {
		var startsAt time.Time
		var n int
		if err := rows.Scan(&startsAt, &n); err != nil {
			return nil, err
		}
		counts[startsAt.Unix()] = n
	}
	return counts, rows.Err()
}
