package security

import (
	"golang.org/x/crypto/bcrypt"
)

// MaxSecretBytes is the bcrypt input limit. Longer secrets are truncated
// before hashing and verifying, so two secrets sharing their first 72 bytes
// are indistinguishable. Known limitation kept for hash compatibility.
const MaxSecretBytes = 72

type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(truncate(secret), h.Cost)
	return string(b), err
}

func (h *BcryptHasher) Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncate(secret)) == nil
}

func HashPassword(password string) (string, error) {
	return NewBcryptHasher(bcrypt.DefaultCost).Hash(password)
}

func CheckPasswordHash(password, hash string) bool {
	return NewBcryptHasher(bcrypt.DefaultCost).Verify(password, hash)
}

func truncate(secret string) []byte {
	b := []byte(secret)
	if len(b) > MaxSecretBytes {
		b = b[:MaxSecretBytes]
	}
	return b
}
