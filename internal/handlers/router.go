package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/clubhub/internal/handlers/middleware"
	"github.com/nkiryanov/clubhub/internal/logger"
	"github.com/nkiryanov/clubhub/internal/models"
	"github.com/nkiryanov/clubhub/internal/permission"
	"github.com/nkiryanov/clubhub/internal/repository"
	"github.com/nkiryanov/clubhub/internal/service/checkin"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	checkinService checkinService,
	permGate permGate,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(authService)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}
	asOrganizer := func(h http.Handler) http.Handler {
		return chain(h,
			authMiddleware,
			middleware.RequirePermission(permGate, permission.Organizer, permission.Admin),
		)
	}

	apiauth := http.NewServeMux()
	apiauth.Handle("POST /register", handleRegister(authService, logger))
	apiauth.Handle("POST /login", handleLogin(authService, logger))
	apiauth.Handle("POST /refresh", handleTokenRefresh(authService, logger))
	apiauth.Handle("POST /logout", withAuth(handleLogout(authService, logger)))
	apiauth.Handle("POST /verify-email", handleRequestEmailVerification(authService, logger))
	apiauth.Handle("POST /verify-email/confirm", handleConfirmEmail(authService, logger))

	apiusers := http.NewServeMux()
	apiusers.Handle("GET /me", withAuth(handleUserMe(authService, logger)))

	apicheckin := http.NewServeMux()
	apicheckin.Handle("POST /sessions", asOrganizer(handleCreateSession(checkinService, logger)))
	apicheckin.Handle("POST /activate", asOrganizer(handleActivateSession(checkinService, logger)))
	apicheckin.Handle("GET /active", asOrganizer(handleListActiveSessions(checkinService, logger)))
	apicheckin.Handle("POST /redeem", withAuth(handleRedeem(checkinService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.Handle("/api/users/", http.StripPrefix("/api/users", apiusers))
	root.Handle("/api/checkin/", http.StripPrefix("/api/checkin", apicheckin))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Register user with caller supplied stable id
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	// No tokens are minted: the user signs in afterwards
	Register(ctx context.Context, id int64, username string, email string, password string) (models.PublicUser, error)

	// Login user with username and password
	// Has to return apperrors.ErrUserNotFound on unknown user or bad password
	Login(ctx context.Context, username string, password string) (models.TokenPair, models.PublicUser, error)

	// Refresh tokens using refresh token, rotating the old one out
	// If token expired: has to return apperrors.ErrRefreshTokenExpired
	// If token reused or unknown: ErrRefreshTokenIsUsed / ErrRefreshTokenNotFound
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Denylist the access token and revoke refresh tokens. Idempotent
	Logout(ctx context.Context, identity models.Identity) error

	// Email verification round trip
	RequestEmailVerification(ctx context.Context, username string) error
	ConfirmEmail(ctx context.Context, code string) error

	// Public view of the user with grants resolved
	GetUser(ctx context.Context, userID int64) (models.PublicUser, error)

	// Set auth tokens (access header, refresh cookie) to response
	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)

	// Get refresh token from request
	GetRefreshString(r *http.Request) (string, error)

	// Get request and return identity if it authenticated or error
	Authenticate(ctx context.Context, r *http.Request) (models.Identity, error)
}

type checkinService interface {
	Activate(ctx context.Context, sessionID int64) (string, error)
	ListActive(ctx context.Context) (map[string]checkin.ActiveSession, error)
	VerifyAttendance(ctx context.Context, hash string, username string) (models.ServiceSession, error)
	CreateSessionWithAttendees(ctx context.Context, arg repository.CreateSessionParams, attendees []checkin.Attendee) (models.ServiceSession, error)
}

type permGate interface {
	Require(ctx context.Context, identity models.Identity, required ...permission.Permission) error
}
