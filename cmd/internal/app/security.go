package app

import (
	"errors"
	"strings"
)

// minProductionSecretBytes is the HMAC key floor enforced in production.
const minProductionSecretBytes = 32

// ValidateSecurityConfig enforces the signing secret policy at startup.
// Fail-fast: the server never starts with a missing key, and production
// refuses short ones.
func ValidateSecurityConfig(cfg Config) error {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return errors.New("security policy: SECRET_KEY must be set")
	}
	// Measured in bytes because the key is used as raw HMAC key material.
	if cfg.Production() && len(secret) < minProductionSecretBytes {
		return errors.New("security policy: SECRET_KEY is too short for production (min 32 bytes)")
	}
	return nil
}
