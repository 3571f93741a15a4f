package security

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

type PasswordHasher struct {
	Cost int

	dummyOnce sync.Once
	dummyHash []byte
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &PasswordHasher{Cost: cost}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Verify compares the password with the hash. An empty hash is compared against
// a throwaway hash of the same cost, so unknown accounts take as long as wrong passwords.
func (h *PasswordHasher) Verify(hash string, password string) bool {
	if hash == "" {
		h.dummyOnce.Do(func() {
			h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("authskin"), h.Cost)
		})

		_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))

		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
