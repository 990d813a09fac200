package utils

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 6

var ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

// CheckPassword enforces the sign-up password rules.  bcrypt ignores
// everything past 72 bytes, so longer passwords are refused rather than
// silently truncated.
func CheckPassword(plain string) error {
	switch {
	case len(plain) < MinPasswordLength:
		return ErrWeakPassword
	case len(plain) > 72:
		return errors.New("password must be at most 72 bytes")
	}
	return nil
}

// HashPassword hashes plain with bcrypt.  A cost outside bcrypt's range falls
// back to the library default.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
