package core

import "golang.org/x/crypto/bcrypt"

// PasswordHasher provides one-way password hashing and verification.
// Hashes are opaque strings; the plaintext is never stored.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// BcryptHasher implements PasswordHasher using bcrypt (salted, adaptive cost).
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher with the given cost. A cost of 0 (or any
// value outside bcrypt's range) falls back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
