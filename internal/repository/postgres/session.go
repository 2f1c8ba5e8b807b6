package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/clubhub/internal/apperrors"
	"github.com/nkiryanov/clubhub/internal/models"
	"github.com/nkiryanov/clubhub/internal/repository"
)

type SessionRepo struct {
	DB DBTX
}

const createSession = `-- name: CreateSession
INSERT INTO service_sessions (name, starts_at, ends_at, ad_hoc)
VALUES ($1, $2, $3, $4)
RETURNING id, name, starts_at, ends_at, ad_hoc
`

func (r *SessionRepo) CreateSession(ctx context.Context, arg repository.CreateSessionParams) (models.ServiceSession, error) {
	rows, _ := r.DB.Query(ctx, createSession, arg.Name, arg.StartsAt, arg.EndsAt, arg.AdHoc)
	session, err := pgx.CollectOneRow(rows, rowToSession)
	if err != nil {
		return session, fmt.Errorf("db error: %w", err)
	}

	return session, nil
}

const getSessionByID = `-- name: GetSessionByID
SELECT id, name, starts_at, ends_at, ad_hoc
FROM service_sessions
WHERE id = $1
`

func (r *SessionRepo) GetSessionByID(ctx context.Context, id int64) (models.ServiceSession, error) {
	rows, _ := r.DB.Query(ctx, getSessionByID, id)
	session, err := pgx.CollectOneRow(rows, rowToSession)

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, pgx.ErrNoRows):
		return session, apperrors.ErrSessionNotFound
	default:
		return session, fmt.Errorf("db error: %w", err)
	}
}

func rowToSession(row pgx.CollectableRow) (models.ServiceSession, error) {
	var s models.ServiceSession
	err := row.Scan(&s.ID, &s.Name, &s.StartsAt, &s.EndsAt, &s.AdHoc)
	return s, err
}
