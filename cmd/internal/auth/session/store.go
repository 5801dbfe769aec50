package session

import (
	"context"
	"time"
)

// State is the revocation state of a session. It only moves Active -> Revoked.
type State uint8

const (
	StateActive State = iota
	StateRevoked
)

func (s State) String() string {
	if s == StateRevoked {
		return "revoked"
	}
	return "active"
}

// stateFromColumn maps the nullable revoked column. NULL means active.
func stateFromColumn(revoked *bool) State {
	if revoked != nil && *revoked {
		return StateRevoked
	}
	return StateActive
}

// Session is one issued refresh credential and the device it was issued to.
type Session struct {
	ID     string
	UserID string

	// Token is the refresh credential itself. It is unique and never reused.
	Token string

	IssuedAt     time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
	State        State

	DeviceName string
	IPAddress  string
	UserAgent  string
}

// Live reports whether the session is not revoked and not expired at now.
func (s Session) Live(now time.Time) bool {
	return s.State == StateActive && s.ExpiresAt.After(now)
}

// Queries is the session persistence surface. Inside Store.InTx every call
// joins the same transaction.
type Queries interface {
	// LockUser serialises admission and rotation for userID until the
	// enclosing transaction ends.
	LockUser(ctx context.Context, userID string) error

	// Create inserts a new session row.
	Create(ctx context.Context, s Session) error

	// LiveSessions returns the user's live sessions ordered by
	// last_activity ASC, then issued_at ASC (eviction order).
	LiveSessions(ctx context.Context, userID string, now time.Time) ([]Session, error)

	// FindByToken returns the session holding token or ErrSessionNotFound.
	// Inside a transaction the row stays locked until commit.
	FindByToken(ctx context.Context, token string) (Session, error)

	// Revoke marks a session revoked and touches last_activity. Revoking an
	// already revoked session is a no-op.
	Revoke(ctx context.Context, sessionID string, now time.Time) error

	// RevokeAll revokes every live session of userID and returns how many
	// were revoked.
	RevokeAll(ctx context.Context, userID string, now time.Time) (int, error)

	// Touch advances last_activity without changing state.
	Touch(ctx context.Context, sessionID string, now time.Time) error
}

// Store is Queries plus transactions. InTx commits when fn returns nil and
// rolls back every change made through q otherwise.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
}
