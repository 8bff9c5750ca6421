package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/strideacademy/coachbook/libs/db"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/enrollment"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/outbox"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

const enrollmentColumns = `id::text, athlete_id::text, program_type, status, assigned_by, template_id,
	created_at, updated_at`

type EnrollmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewEnrollmentRepository(pool *db.Pool, ob *outbox.Repository) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool, outbox: ob}
}

func (r *EnrollmentRepository) InTx(ctx context.Context, fn func(context.Context, enrollment.Tx) error) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &enrollmentTx{tx: tx, outbox: r.outbox})
	})
}

func (r *EnrollmentRepository) ListEnrollmentsByAthlete(ctx context.Context, athleteID string) ([]model.Enrollment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE athlete_id = $1
		ORDER BY created_at, id
	`, athleteID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Enrollment, error) {
		return scanEnrollment(row)
	})
}

type enrollmentTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *enrollmentTx) InsertAthlete(ctx context.Context, a model.Athlete) error {
	return insertAthlete(ctx, t.tx, a)
}

func (t *enrollmentTx) LockAthlete(ctx context.Context, id string) (model.Athlete, error) {
	return getAthlete(ctx, t.tx, id, true)
}

func (t *enrollmentTx) SetAthleteTier(ctx context.Context, athleteID string, tr *tier.Tier, at time.Time) error {
	return setAthleteTier(ctx, t.tx, athleteID, tr, at)
}

// InsertEnrollment relies on the (athlete_id, program_type) unique index. A
// concurrent insert of the same pair waits for the other transaction and then
// sees its row.
func (t *enrollmentTx) InsertEnrollment(ctx context.Context, e model.Enrollment) error {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO enrollments
			(id, athlete_id, program_type, status, assigned_by, template_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (athlete_id, program_type) DO NOTHING
	`, e.ID, e.AthleteID, string(e.ProgramType), string(e.Status), e.AssignedBy, e.TemplateID, e.CreatedAt, e.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return &model.NotFoundError{Entity: "athlete", ID: e.AthleteID}
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	existing, err := scanEnrollment(t.tx.QueryRow(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE athlete_id = $1 AND program_type = $2
	`, e.AthleteID, string(e.ProgramType)))
	if err != nil {
		return err
	}
	return &model.DuplicateEnrollmentError{Existing: existing}
}

func (t *enrollmentTx) LockEnrollment(ctx context.Context, id string) (model.Enrollment, error) {
	e, err := scanEnrollment(t.tx.QueryRow(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return model.Enrollment{}, notFound(err, "enrollment", id)
	}
	return e, nil
}

func (t *enrollmentTx) SetEnrollmentStatus(ctx context.Context, id string, status model.EnrollmentStatus, at time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE enrollments
		SET status = $2,
			updated_at = $3
		WHERE id = $1
	`, id, string(status), at)
	return err
}

func (t *enrollmentTx) Emit(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

func scanEnrollment(row rowScanner) (model.Enrollment, error) {
	var e model.Enrollment
	var program, status string
	err := row.Scan(
		&e.ID,
		&e.AthleteID,
		&program,
		&status,
		&e.AssignedBy,
		&e.TemplateID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	e.ProgramType = tier.Tier(program)
	e.Status = model.EnrollmentStatus(status)
	return e, err
}
