package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ResetTokenTTL is the lifetime of password reset tokens. It is not configurable.
const ResetTokenTTL = time.Hour

// Config is the immutable process-wide credential configuration.
// It is loaded once at startup and passed to constructors by value.
type Config struct {
	// Secret is the symmetric signing key.
	Secret string

	// Algorithm is the JWT "alg": HS256 (default), HS384 or HS512.
	Algorithm string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// MaxActiveSessions caps live sessions per user. Admitting a session at
	// the cap evicts the least recently active one.
	MaxActiveSessions int

	// ResetRevokesSessions makes a completed password reset revoke every live
	// session of the account. Off by default.
	ResetRevokesSessions bool
}

// DefaultConfig returns the defaults: HS256, 30 minute access, 7 day refresh,
// 5 sessions per user. Secret is left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		Algorithm:         jwt.SigningMethodHS256.Alg(),
		AccessTTL:         30 * time.Minute,
		RefreshTTL:        7 * 24 * time.Hour,
		MaxActiveSessions: 5,
	}
}

// Validate returns an error wrapping ErrConfig when c is unusable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Secret) == "" {
		return fmt.Errorf("%w: signing secret is required", ErrConfig)
	}
	if _, err := signingMethod(c.Algorithm); err != nil {
		return err
	}
	if c.AccessTTL <= 0 {
		return fmt.Errorf("%w: access ttl must be positive", ErrConfig)
	}
	if c.RefreshTTL <= 0 {
		return fmt.Errorf("%w: refresh ttl must be positive", ErrConfig)
	}
	if c.MaxActiveSessions < 1 {
		return fmt.Errorf("%w: max active sessions must be at least 1", ErrConfig)
	}
	return nil
}

func signingMethod(alg string) (*jwt.SigningMethodHMAC, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", jwt.SigningMethodHS256.Alg():
		return jwt.SigningMethodHS256, nil
	case jwt.SigningMethodHS384.Alg():
		return jwt.SigningMethodHS384, nil
	case jwt.SigningMethodHS512.Alg():
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrConfig, alg)
	}
}
