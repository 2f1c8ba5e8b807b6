package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailNotAllowed   = errors.New("email domain is not allowed")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenIsUsed   = errors.New("refresh token is used")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")
	ErrRefreshTokenRevoked  = errors.New("refresh token is revoked")

	ErrAccessTokenInvalid = errors.New("access token is invalid")
	ErrAccessTokenExpired = errors.New("access token is expired")
	ErrAccessTokenRevoked = errors.New("access token is revoked")

	ErrPermissionDenied = errors.New("permission denied")

	// ErrNoIdentity is returned when the permission gate is invoked without
	// a verified identity. Programming error, not a security failure.
	ErrNoIdentity = errors.New("no verified identity")

	ErrSessionNotFound   = errors.New("service session not found")
	ErrHashNotFound      = errors.New("check-in hash not found")
	ErrNotRegistered     = errors.New("user is not registered for session")
	ErrAlreadyRegistered = errors.New("user is already registered for session")
	ErrAlreadyAttended   = errors.New("attendance already recorded")

	ErrCodeNotFound    = errors.New("verification code not found")
	ErrAlreadyVerified = errors.New("user is already verified")
)
