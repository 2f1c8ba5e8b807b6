package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/nkiryanov/clubhub/internal/apperrors"
	"github.com/nkiryanov/clubhub/internal/handlers/render"
	"github.com/nkiryanov/clubhub/internal/handlers/userctx"
	"github.com/nkiryanov/clubhub/internal/models"
)

type authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (models.Identity, error)
}

// AuthMiddleware resolves the bearer token into an identity and stores it
// in the request context. The expired case gets its own message so clients
// know to refresh instead of logging in again.
func AuthMiddleware(a authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := a.Authenticate(r.Context(), r)
			if err != nil {
				switch {
				case errors.Is(err, apperrors.ErrAccessTokenExpired):
					render.ServiceError(w, "Access token expired", http.StatusUnauthorized)
				default:
					render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				}
				return
			}

			ctx := userctx.New(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
