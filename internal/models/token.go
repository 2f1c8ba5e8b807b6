package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken row. Only the sha256 of the opaque value is stored, the raw
// value travels to the client exactly once.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    int64
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time // nil until the token is spent on rotation
	RevokedAt *time.Time // nil unless revoked by logout
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Identity decoded from a verified access token.
type Identity struct {
	UserID    int64
	Username  string
	TokenID   string
	ExpiresAt time.Time
}
