package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/clubhub/internal/permission"
)

type PermissionRepo struct {
	DB DBTX
}

const grantsFor = `-- name: GrantsFor
SELECT permission_id FROM user_permissions
WHERE username = $1
`

// GrantsFor loads the user's full grant set. Unknown username is not an
// error, it simply grants nothing.
func (r *PermissionRepo) GrantsFor(ctx context.Context, username string) (permission.Set, error) {
	rows, _ := r.DB.Query(ctx, grantsFor, username)
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return permission.FromIDs(ids), nil
}

const grant = `-- name: Grant
INSERT INTO user_permissions (username, permission_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`

func (r *PermissionRepo) Grant(ctx context.Context, username string, p permission.Permission) error {
	if !p.Valid() {
		return fmt.Errorf("unknown permission id %d", int(p))
	}

	_, err := r.DB.Exec(ctx, grant, username, int(p))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
