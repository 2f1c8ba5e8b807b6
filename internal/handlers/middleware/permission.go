package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/nkiryanov/clubhub/internal/apperrors"
	"github.com/nkiryanov/clubhub/internal/handlers/render"
	"github.com/nkiryanov/clubhub/internal/handlers/userctx"
	"github.com/nkiryanov/clubhub/internal/models"
	"github.com/nkiryanov/clubhub/internal/permission"
)

type gate interface {
	Require(ctx context.Context, identity models.Identity, required ...permission.Permission) error
}

// RequirePermission authorizes the request identity against the gate.
// Must run after AuthMiddleware: a missing identity is a wiring bug, not a
// user fault, and renders as 500 rather than 403.
func RequirePermission(g gate, required ...permission.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, _ := userctx.FromContext(r.Context())

			err := g.Require(r.Context(), identity, required...)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, apperrors.ErrPermissionDenied):
				render.ServiceError(w, "Permission denied", http.StatusForbidden)
			default:
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
		})
	}
}
