// Package gate implements the permission check every privileged route
// handler must pass through before mutating state.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkiryanov/clubhub/internal/apperrors"
	"github.com/nkiryanov/clubhub/internal/models"
	"github.com/nkiryanov/clubhub/internal/permission"
	"github.com/nkiryanov/clubhub/internal/repository"
)

type Gate struct {
	permRepo repository.PermissionRepo
}

func New(permRepo repository.PermissionRepo) (*Gate, error) {
	if permRepo == nil {
		return nil, errors.New("permission repo must not be nil")
	}
	return &Gate{permRepo: permRepo}, nil
}

// Require authorizes the identity when its grant set intersects the
// required set: any single match is enough. The identity must come from a
// successful token verification; calling with a zero identity is misuse
// and reported as apperrors.ErrNoIdentity, not as a denial.
func (g *Gate) Require(ctx context.Context, identity models.Identity, required ...permission.Permission) error {
	if identity.Username == "" {
		return fmt.Errorf("permission gate misuse: %w", apperrors.ErrNoIdentity)
	}

	grants, err := g.permRepo.GrantsFor(ctx, identity.Username)
	if err != nil {
		return fmt.Errorf("error while loading grants. Err: %w", err)
	}

	if !grants.Intersects(permission.NewSet(required...)) {
		return apperrors.ErrPermissionDenied
	}

	return nil
}
