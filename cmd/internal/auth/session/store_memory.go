package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a process-local Store used when no database is configured
// and in tests. Transactions are serialised by a single mutex and restored
// from a snapshot on error. All writes go through InTx.
type MemoryStore struct {
	txMu sync.Mutex

	mu      sync.RWMutex
	byID    map[string]Session
	byToken map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]Session),
		byToken: make(map[string]string),
	}
}

var _ Store = (*MemoryStore)(nil)

// InTx runs fn with exclusive access and discards its writes if it fails.
func (s *MemoryStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type memSnapshot struct {
	byID    map[string]Session
	byToken map[string]string
}

func (s *MemoryStore) snapshot() memSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := memSnapshot{
		byID:    make(map[string]Session, len(s.byID)),
		byToken: make(map[string]string, len(s.byToken)),
	}
	for k, v := range s.byID {
		snap.byID[k] = v
	}
	for k, v := range s.byToken {
		snap.byToken[k] = v
	}
	return snap
}

func (s *MemoryStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = snap.byID
	s.byToken = snap.byToken
}

// LockUser is a no-op: InTx already holds the store-wide lock.
func (s *MemoryStore) LockUser(_ context.Context, _ string) error { return nil }

func (s *MemoryStore) Create(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[sess.ID]; ok {
		return ErrDuplicateSession
	}
	if _, ok := s.byToken[sess.Token]; ok {
		return ErrDuplicateSession
	}
	if sess.LastActivity.IsZero() {
		sess.LastActivity = sess.IssuedAt
	}
	s.byID[sess.ID] = sess
	s.byToken[sess.Token] = sess.ID
	return nil
}

func (s *MemoryStore) LiveSessions(_ context.Context, userID string, now time.Time) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Session
	for _, sess := range s.byID {
		if sess.UserID == userID && sess.Live(now) {
			out = append(out, sess)
		}
	}
	sortEvictionOrder(out)
	return out, nil
}

func (s *MemoryStore) FindByToken(_ context.Context, token string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byToken[token]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryStore) Revoke(_ context.Context, sessionID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[sessionID]
	if !ok || sess.State == StateRevoked {
		return nil
	}
	sess.State = StateRevoked
	sess.LastActivity = now
	s.byID[sessionID] = sess
	return nil
}

func (s *MemoryStore) RevokeAll(_ context.Context, userID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.byID {
		if sess.UserID != userID || !sess.Live(now) {
			continue
		}
		sess.State = StateRevoked
		sess.LastActivity = now
		s.byID[id] = sess
		n++
	}
	return n, nil
}

func (s *MemoryStore) Touch(_ context.Context, sessionID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.LastActivity = now
	s.byID[sessionID] = sess
	return nil
}

// Get returns a session by ID regardless of state.
func (s *MemoryStore) Get(sessionID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[sessionID]
	return sess, ok
}

func sortEvictionOrder(ss []Session) {
	sort.SliceStable(ss, func(i, j int) bool {
		if !ss[i].LastActivity.Equal(ss[j].LastActivity) {
			return ss[i].LastActivity.Before(ss[j].LastActivity)
		}
		if !ss[i].IssuedAt.Equal(ss[j].IssuedAt) {
			return ss[i].IssuedAt.Before(ss[j].IssuedAt)
		}
		return ss[i].ID < ss[j].ID
	})
}
