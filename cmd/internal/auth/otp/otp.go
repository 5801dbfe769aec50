// Package otp keeps short-lived email verification codes in process memory.
//
// Codes are not shared between processes and are lost on restart. They
// verify email ownership only and never grant a session.
package otp

import (
	"strings"
	"sync"
	"time"

	"github.com/finovotech001-eng/zuperior-api/cmd/security/token"
)

const (
	// CodeDigits is the length of issued codes.
	CodeDigits = 6

	// DefaultTTL is how long a code stays valid.
	DefaultTTL = 10 * time.Minute

	// MaxAttempts is how many wrong guesses burn a code.
	MaxAttempts = 5
)

type entry struct {
	code      string
	expiresAt time.Time
	failures  int
}

// MemoryStore holds one outstanding code per email address.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]entry
	ttl time.Duration
}

// NewMemoryStore returns a store issuing codes valid for ttl (DefaultTTL when ttl <= 0).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{m: make(map[string]entry), ttl: ttl}
}

// Issue generates a fresh code for email, replacing any outstanding one.
func (s *MemoryStore) Issue(email string, now time.Time) (string, time.Time, error) {
	code, err := token.NewNumericCode(CodeDigits)
	if err != nil {
		return "", time.Time{}, err
	}
	exp := now.Add(s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key(email)] = entry{code: code, expiresAt: exp}
	return code, exp, nil
}

// Verify reports whether code is the live code for email. A match consumes
// the code; MaxAttempts mismatches burn it.
func (s *MemoryStore) Verify(email, code string, now time.Time) bool {
	k := key(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[k]
	if !ok {
		return false
	}
	if !e.expiresAt.After(now) {
		delete(s.m, k)
		return false
	}

	if token.Equal(e.code, strings.TrimSpace(code)) {
		delete(s.m, k)
		return true
	}

	e.failures++
	if e.failures >= MaxAttempts {
		delete(s.m, k)
	} else {
		s.m[k] = e
	}
	return false
}

// Len reports how many codes are outstanding, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
