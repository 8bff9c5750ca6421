package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/strideacademy/coachbook/libs/db"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/outbox"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/roster"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

const athleteColumns = `id::text, guardian_id, user_id, first_name, last_name, birth_date, sport,
	current_program_tier, created_at, updated_at`

type AthleteRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAthleteRepository(pool *db.Pool, ob *outbox.Repository) *AthleteRepository {
	return &AthleteRepository{pool: pool, outbox: ob}
}

func (r *AthleteRepository) GetAthlete(ctx context.Context, id string) (model.Athlete, error) {
	return getAthlete(ctx, r.pool, id, false)
}

func (r *AthleteRepository) ListAthletesByGuardian(ctx context.Context, guardianID string) ([]model.Athlete, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+athleteColumns+`
		FROM athletes
		WHERE guardian_id = $1
		ORDER BY created_at, id
	`, guardianID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Athlete, error) {
		return scanAthlete(row)
	})
}

func (r *AthleteRepository) WithAthlete(ctx context.Context, id string, fn func(context.Context, model.Athlete, roster.TierTx) error) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		a, err := getAthlete(ctx, tx, id, true)
		if err != nil {
			return err
		}
		return fn(ctx, a, &athleteTierTx{tx: tx, outbox: r.outbox, athleteID: id})
	})
}

type athleteTierTx struct {
	tx        pgx.Tx
	outbox    *outbox.Repository
	athleteID string
}

func (t *athleteTierTx) SetTier(ctx context.Context, tr *tier.Tier, at time.Time) error {
	return setAthleteTier(ctx, t.tx, t.athleteID, tr, at)
}

func (t *athleteTierTx) Emit(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getAthlete(ctx context.Context, q querier, id string, forUpdate bool) (model.Athlete, error) {
	sql := `SELECT ` + athleteColumns + ` FROM athletes WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	a, err := scanAthlete(q.QueryRow(ctx, sql, id))
	if err != nil {
		return model.Athlete{}, notFound(err, "athlete", id)
	}
	return a, nil
}

func insertAthlete(ctx context.Context, tx pgx.Tx, a model.Athlete) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO athletes
			(id, guardian_id, user_id, first_name, last_name, birth_date, sport, current_program_tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.GuardianID, a.UserID, a.FirstName, a.LastName, a.BirthDate, a.Sport,
		tierParam(a.CurrentProgramTier), a.CreatedAt, a.UpdatedAt)
	return err
}

func setAthleteTier(ctx context.Context, tx pgx.Tx, athleteID string, t *tier.Tier, at time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE athletes
		SET current_program_tier = $2,
			updated_at = $3
		WHERE id = $1
	`, athleteID, tierParam(t), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Entity: "athlete", ID: athleteID}
	}
	return nil
}

func scanAthlete(row rowScanner) (model.Athlete, error) {
	var a model.Athlete
	var current *string
	if err := row.Scan(
		&a.ID,
		&a.GuardianID,
		&a.UserID,
		&a.FirstName,
		&a.LastName,
		&a.BirthDate,
		&a.Sport,
		&current,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return model.Athlete{}, err
	}
	t, err := tierValue(current)
	if err != nil {
		return model.Athlete{}, err
	}
	a.CurrentProgramTier = t
	return a, nil
}
