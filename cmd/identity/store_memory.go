package identity

import (
	"context"
	"sync"
	"time"

	"github.com/finovotech001-eng/zuperior-api/cmd/identity/ids"
)

// MemoryStore is a process-local Store for tests and database-less runs.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	in, err := prepareCreate(op, in)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[in.Email]; ok {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	u := User{
		ID:           ids.NewUserID(),
		ClientID:     ids.NewClientID(),
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Name:         in.Name,
		Phone:        in.Phone,
		Country:      in.Country,
		Role:         in.Role,
		Status:       StatusActive,
		CreatedAt:    in.Now,
	}
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return u, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, notFound("identity.GetByID", "user")
	}
	return u, nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, notFound("identity.GetByEmail", "user")
	}
	return s.byID[id], nil
}

func (s *MemoryStore) UpdateLastLogin(_ context.Context, id string, now time.Time) error {
	return s.update("identity.UpdateLastLogin", id, func(u *User) {
		u.LastLoginAt = &now
	})
}

func (s *MemoryStore) SetResetToken(_ context.Context, id, token string, expires time.Time) error {
	if token == "" {
		return invalid("identity.SetResetToken", "empty token")
	}
	return s.update("identity.SetResetToken", id, func(u *User) {
		u.ResetToken = &token
		u.ResetTokenExpires = &expires
	})
}

func (s *MemoryStore) FindByResetToken(_ context.Context, token string, now time.Time) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if token != "" {
		for _, u := range s.byID {
			if resetTokenMatches(u, token, now) {
				return u, nil
			}
		}
	}
	return User{}, notFound("identity.FindByResetToken", "reset_token")
}

func (s *MemoryStore) CompletePasswordReset(ctx context.Context, id, token, newHash string, now time.Time, within func(ctx context.Context) error) error {
	const op = "identity.CompletePasswordReset"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok || !resetTokenMatches(u, token, now) {
		return notFound(op, "reset_token")
	}
	if within != nil {
		if err := within(ctx); err != nil {
			return err
		}
	}
	u.PasswordHash = newHash
	u.ResetToken = nil
	u.ResetTokenExpires = nil
	s.byID[id] = u
	return nil
}

func (s *MemoryStore) MarkEmailVerified(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return notFound("identity.MarkEmailVerified", "user")
	}
	u := s.byID[id]
	u.EmailVerified = true
	s.byID[id] = u
	return nil
}

// SetStatus changes an account's status. Admin tooling and tests use it.
func (s *MemoryStore) SetStatus(id, status string) error {
	return s.update("identity.SetStatus", id, func(u *User) { u.Status = status })
}

// SetRole changes an account's role.
func (s *MemoryStore) SetRole(id, role string) error {
	return s.update("identity.SetRole", id, func(u *User) { u.Role = NormalizeRole(role) })
}

func (s *MemoryStore) update(op, id string, fn func(*User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return notFound(op, "user")
	}
	fn(&u)
	s.byID[id] = u
	return nil
}

func resetTokenMatches(u User, token string, now time.Time) bool {
	return u.ResetToken != nil && *u.ResetToken == token &&
		u.ResetTokenExpires != nil && u.ResetTokenExpires.After(now)
}
