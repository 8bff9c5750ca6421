package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/strideacademy/coachbook/libs/db"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
)

type ContentRepository struct {
	pool *db.Pool
}

func NewContentRepository(pool *db.Pool) *ContentRepository {
	return &ContentRepository{pool: pool}
}

func (r *ContentRepository) CreateContent(ctx context.Context, c model.Content) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO content (id, surface, program_tier, title, body, media_url, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, string(c.Surface), tierParam(c.ProgramTier), c.Title, c.Body, c.MediaURL, c.CreatedBy, c.CreatedAt)
	return err
}

// ListContentBySurface returns the newest items first.
func (r *ContentRepository) ListContentBySurface(ctx context.Context, surface model.Surface) ([]model.Content, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, surface, program_tier, title, body, media_url, created_by, created_at
		FROM content
		WHERE surface = $1
		ORDER BY created_at DESC, id
	`, string(surface))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Content, error) {
		var c model.Content
		var surface string
		var programTier *string
		if err := row.Scan(&c.ID, &surface, &programTier, &c.Title, &c.Body, &c.MediaURL, &c.CreatedBy, &c.CreatedAt); err != nil {
			return model.Content{}, err
		}
		c.Surface = model.Surface(surface)
		t, err := tierValue(programTier)
		if err != nil {
			return model.Content{}, err
		}
		c.ProgramTier = t
		return c, nil
	})
}
