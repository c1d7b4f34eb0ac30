package services

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher is the one-way hash shared by passwords and one-time codes.
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
}

type bcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt generate: %w", err)
	}
	return string(b), nil
}

// Compare is constant-time with respect to the plaintext.
func (h *bcryptHasher) Compare(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
