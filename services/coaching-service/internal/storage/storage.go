// Package storage implements the service's repositories on PostgreSQL.
package storage

import (
	"fmt"

	"github.com/strideacademy/coachbook/libs/db"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// notFound turns a missing row, or an id Postgres cannot parse, into a
// NotFoundError for entity.
func notFound(err error, entity, id string) error {
	if db.IsNotFound(err) || db.IsInvalidInput(err) {
		return &model.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

func tierParam(t *tier.Tier) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

func tierValue(s *string) (*tier.Tier, error) {
	if s == nil {
		return nil, nil
	}
	t := tier.Tier(*s)
	if !t.Valid() {
		return nil, fmt.Errorf("stored tier %q is unknown", *s)
	}
	return &t, nil
}
