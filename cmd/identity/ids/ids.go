// Package ids provides the ID primitives used across accounts and sessions.
//
// Users are keyed by random UUIDs and carry a short public client ID.
// Sessions are keyed by ULIDs so that IDs sort by issue time.
package ids

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewUserID returns a random (v4) UUID string.
func NewUserID() string {
	return uuid.NewString()
}

// NewClientID returns the public client identifier shown to account holders:
// "c" followed by 24 lowercase hex characters.
func NewClientID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "c" + hex[:24]
}

// NewSessionID returns a new ULID string (26 chars).
func NewSessionID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewRequestID returns an identifier for correlating a single HTTP request.
func NewRequestID() string {
	return uuid.NewString()
}

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
