package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/clubhub/internal/apperrors"
	"github.com/nkiryanov/clubhub/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const saveToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (id, user_id, token_hash, created_at, expires_at, used_at, revoked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) error {
	rows, _ := r.DB.Query(ctx, saveToken, token.ID, token.UserID, token.TokenHash, token.CreatedAt, token.ExpiresAt, token.UsedAt, token.RevokedAt)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const getAndMarkUsed = `-- name: MarkTokenUsedIfFresh
UPDATE refresh_tokens
SET used_at = COALESCE(used_at, $2)
WHERE token_hash = $1
RETURNING id, user_id, created_at, expires_at, used_at, revoked_at
`

// GetAndMarkUsed spends the token: read and rotation marker are one
// statement, so a replayed token always observes the earlier used_at and
// loses. Never rewrites an existing used_at.
func (r *RefreshTokenRepo) GetAndMarkUsed(ctx context.Context, tokenHash string, usedAt time.Time) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getAndMarkUsed, tokenHash, usedAt)
	token, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.RefreshToken, error) {
		t := models.RefreshToken{TokenHash: tokenHash}
		err := row.Scan(&t.ID, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt, &t.RevokedAt)
		return t, err
	})

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	case err != nil:
		return token, fmt.Errorf("db error: %w", err)
	case token.RevokedAt != nil:
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenRevoked)
	case token.UsedAt != nil && !token.UsedAt.Equal(usedAt):
		// usedAt survived COALESCE == token was spent earlier
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenIsUsed)
	default:
		return token, nil
	}
}

const revokeUserTokens = `-- name: RevokeUserTokens
UPDATE refresh_tokens
SET revoked_at = COALESCE(revoked_at, $2)
WHERE user_id = $1
`

// RevokeUserTokens invalidates every refresh token of the user. Safe to
// call twice: earlier revocation timestamps are preserved.
func (r *RefreshTokenRepo) RevokeUserTokens(ctx context.Context, userID int64, revokedAt time.Time) error {
	_, err := r.DB.Exec(ctx, revokeUserTokens, userID, revokedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
