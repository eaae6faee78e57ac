package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// AdminGuard protects blocklist administration with a shared admin key.
// The key is configured as a bcrypt hash so the plaintext never appears
// in configuration, and comparison cost is constant regardless of where
// a candidate key diverges.
//
// A nil guard, or one constructed without a hash, permits everything;
// blocklist administration is often driven by an already-authenticated
// operations tool and the guard is an optional second factor.
type AdminGuard struct {
	keyHash []byte
}

// NewAdminGuard creates a guard from a bcrypt hash of the admin key.
// An empty hash disables the guard.
func NewAdminGuard(keyHash string) *AdminGuard {
	if keyHash == "" {
		return &AdminGuard{}
	}
	return &AdminGuard{keyHash: []byte(keyHash)}
}

// HashAdminKey produces a bcrypt hash suitable for NewAdminGuard.
// Intended for provisioning tooling, not the request path.
func HashAdminKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin key: %w", err)
	}
	return string(hash), nil
}

// Authorize checks a presented admin key against the configured hash.
func (g *AdminGuard) Authorize(key string) error {
	if g == nil || len(g.keyHash) == 0 {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(g.keyHash, []byte(key)); err != nil {
		return fmt.Errorf("invalid admin key")
	}
	return nil
}
