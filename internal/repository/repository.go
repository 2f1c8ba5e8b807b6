package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/clubhub/internal/models"
	"github.com/nkiryanov/clubhub/internal/permission"
)

type CreateUserParams struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
}

// User repository interface
type UserRepo interface {
	// Create user with caller supplied stable id
	// If user with the same id or username exists has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// Mark user email verified
	SetVerified(ctx context.Context, username string) error

	// Accrue service hours to the user's total
	AddServiceHours(ctx context.Context, username string, hours decimal.Decimal) (models.User, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	Save(ctx context.Context, token models.RefreshToken) error

	// Return the token by hash and mark it used in the same statement.
	// The superseded token must never be usable again:
	// if already used return apperrors.ErrRefreshTokenIsUsed
	// if revoked return apperrors.ErrRefreshTokenRevoked
	// if unknown return apperrors.ErrRefreshTokenNotFound
	GetAndMarkUsed(ctx context.Context, tokenHash string, usedAt time.Time) (models.RefreshToken, error)

	// Revoke every live refresh token of the user. Idempotent.
	RevokeUserTokens(ctx context.Context, userID int64, revokedAt time.Time) error
}

// Permission grant repository interface
type PermissionRepo interface {
	// Load the full grant set of the user. Unknown user yields an empty set
	GrantsFor(ctx context.Context, username string) (permission.Set, error)

	// Grant a permission. Granting twice is not an error
	Grant(ctx context.Context, username string, p permission.Permission) error
}

type CreateSessionParams struct {
	Name     string
	StartsAt time.Time
	EndsAt   time.Time
	AdHoc    bool
}

// Service session repository interface
type SessionRepo interface {
	CreateSession(ctx context.Context, arg CreateSessionParams) (models.ServiceSession, error)

	// If session not found must return apperrors.ErrSessionNotFound
	GetSessionByID(ctx context.Context, id int64) (models.ServiceSession, error)
}

// Attendance repository interface
type AttendanceRepo interface {
	// Register the user as an expected attendee with status absent
	// Duplicate registration must return apperrors.ErrAlreadyRegistered;
	// the composite primary key is the backstop for that
	Register(ctx context.Context, sessionID int64, username string, inCharge bool) (models.AttendanceRecord, error)

	// If the pair is unknown must return apperrors.ErrNotRegistered
	Get(ctx context.Context, sessionID int64, username string) (models.AttendanceRecord, error)

	// Transition absent -> attended as one conditional write.
	// Exactly one concurrent caller may succeed per (session, username).
	// If the row is missing return apperrors.ErrNotRegistered
	// If the row is in any non absent state return apperrors.ErrAlreadyAttended
	MarkAttended(ctx context.Context, sessionID int64, username string) error

	// Usernames flagged in charge of the session
	ListInCharge(ctx context.Context, sessionID int64) ([]string, error)
}

// Storage combines all repositories and the transaction boundary
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Permission() PermissionRepo
	Session() SessionRepo
	Attendance() AttendanceRepo

	// Run fn within one transaction: all repository calls made through the
	// storage passed to fn commit or roll back together
	InTx(ctx context.Context, fn func(Storage) error) error
}
