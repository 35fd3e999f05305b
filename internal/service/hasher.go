package service

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher derives and verifies one-way password hashes.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	// Compare reports whether plain matches hash.
	Compare(hash, plain string) bool
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a salted bcrypt hasher. Costs outside bcrypt's range fall back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", &ValidationError{Message: "Password must be at most 72 bytes"}
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Compare uses bcrypt's constant-time comparison.
func (h *bcryptHasher) Compare(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
