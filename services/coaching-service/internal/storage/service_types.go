package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/strideacademy/coachbook/libs/db"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
)

const serviceTypeColumns = `id::text, name, kind, duration_minutes, capacity, fixed_start_time, minimum_tier,
	active, created_by, created_at`

type ServiceTypeRepository struct {
	pool *db.Pool
}

func NewServiceTypeRepository(pool *db.Pool) *ServiceTypeRepository {
	return &ServiceTypeRepository{pool: pool}
}

func (r *ServiceTypeRepository) CreateServiceType(ctx context.Context, st model.ServiceType) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO service_types
			(id, name, kind, duration_minutes, capacity, fixed_start_time, minimum_tier, active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, st.ID, st.Name, string(st.Kind), st.DurationMinutes, st.Capacity, st.FixedStartTime,
		tierParam(st.MinimumTier), st.Active, st.CreatedBy, st.CreatedAt)
	return err
}

func (r *ServiceTypeRepository) GetServiceType(ctx context.Context, id string) (model.ServiceType, error) {
	st, err := scanServiceType(r.pool.QueryRow(ctx, `
		SELECT `+serviceTypeColumns+`
		FROM service_types
		WHERE id = $1
	`, id))
	if err != nil {
		return model.ServiceType{}, notFound(err, "service type", id)
	}
	return st, nil
}

func (r *ServiceTypeRepository) ListActiveServiceTypes(ctx context.Context) ([]model.ServiceType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceTypeColumns+`
		FROM service_types
		WHERE active
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ServiceType, error) {
		return scanServiceType(row)
	})
}

func (r *ServiceTypeRepository) DeactivateServiceType(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE service_types SET active = false WHERE id = $1`, id)
	if err != nil {
		return notFound(err, "service type", id)
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Entity: "service type", ID: id}
	}
	return nil
}

func scanServiceType(row rowScanner) (model.ServiceType, error) {
	var st model.ServiceType
	var kind string
	var minTier *string
	if err := row.Scan(
		&st.ID,
		&st.Name,
		&kind,
		&st.DurationMinutes,
		&st.Capacity,
		&st.FixedStartTime,
		&minTier,
		&st.Active,
		&st.CreatedBy,
		&st.CreatedAt,
	); err != nil {
		return model.ServiceType{}, err
	}
	st.Kind = model.ServiceKind(kind)
	t, err := tierValue(minTier)
	if err != nil {
		return model.ServiceType{}, err
	}
	st.MinimumTier = t
	return st, nil
}
