package model

import "time"

// User represents an application user record as stored in the `users`
// table.  Gender is fixed at account creation and is only consumed by the
// seat compliance rules.  The struct is used internally by the repository
// layer; handlers expose a trimmed profile.
//
// Fields:
//  ID           – generated identifier (uuid).
//  Email        – unique, normalized email address.
//  Name         – display name.
//  Gender       – male or female.
//  PasswordHash – bcrypt hashed password.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           string
	Email        string
	Name         string
	Gender       Gender
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token is stored.
type RefreshToken struct {
	ID        uint64
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
