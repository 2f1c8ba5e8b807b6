package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User as persisted in the credential store. ID is the member's stable
// numeric identity (club card number) and is supplied at sign-up, not
// generated.
type User struct {
	ID             int64
	CreatedAt      time.Time
	Username       string
	Email          string
	HashedPassword string
	Verified       bool
	ServiceHours   decimal.Decimal
}

// PublicUser is the profile snapshot returned on login. It never carries
// the password hash.
type PublicUser struct {
	ID           int64           `json:"user_id"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	Verified     bool            `json:"verified"`
	ServiceHours decimal.Decimal `json:"service_hours"`
	Permissions  []int           `json:"permissions"`
}
