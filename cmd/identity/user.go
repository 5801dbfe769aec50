package identity

import (
	"context"
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	StatusActive = "active"

	// inactiveLabel is shown when an account carries no status at all.
	inactiveLabel = "Inactive"
)

// User is a dashboard account.
type User struct {
	ID       string
	ClientID string
	Email    string

	// PasswordHash is an encoded argon2id hash. It never leaves the server.
	PasswordHash string

	Name    *string
	Phone   *string
	Country *string

	Role          string
	Status        string
	EmailVerified bool

	ResetToken        *string
	ResetTokenExpires *time.Time

	CreatedAt   time.Time
	LastLoginAt *time.Time
}

// Active reports whether the account may log in.
func (u User) Active() bool {
	return strings.EqualFold(strings.TrimSpace(u.Status), StatusActive)
}

// StatusLabel is the status as shown to the account holder.
func (u User) StatusLabel() string {
	if s := strings.TrimSpace(u.Status); s != "" {
		return s
	}
	return inactiveLabel
}

// IsAdmin reports whether the account has the admin role.
func (u User) IsAdmin() bool {
	return strings.EqualFold(u.Role, RoleAdmin)
}

// CreateUserInput describes a registration. PasswordHash must already be encoded.
type CreateUserInput struct {
	Email        string
	PasswordHash string
	Name         *string
	Phone        *string
	Country      *string
	Role         string
	Now          time.Time
}

// Store is the account persistence boundary.
type Store interface {
	// CreateUser inserts a new active account. A taken email is a ConflictError.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)

	UpdateLastLogin(ctx context.Context, id string, now time.Time) error

	// SetResetToken stores token with its expiry, replacing any outstanding one.
	SetResetToken(ctx context.Context, id, token string, expires time.Time) error

	// FindByResetToken returns the user whose stored token equals token and
	// whose expiry is after now.
	FindByResetToken(ctx context.Context, token string, now time.Time) (User, error)

	// CompletePasswordReset replaces the password hash and clears the reset
	// token, but only while token is still the stored, unexpired token. A lost
	// race reports ErrNotFound. A non-nil within runs after the update in the
	// same unit of work; if it fails nothing is changed.
	CompletePasswordReset(ctx context.Context, id, token, newHash string, now time.Time, within func(ctx context.Context) error) error

	// MarkEmailVerified flags the account with email as verified. Unknown
	// emails report ErrNotFound.
	MarkEmailVerified(ctx context.Context, email string) error
}

func prepareCreate(op string, in CreateUserInput) (CreateUserInput, error) {
	in.Email = NormalizeEmail(in.Email)
	if in.Email == "" {
		return in, invalid(op, "email is required")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return in, invalid(op, "password hash is required")
	}
	in.Role = NormalizeRole(in.Role)
	in.Name = trimPtr(in.Name)
	in.Phone = trimPtr(in.Phone)
	in.Country = trimPtr(in.Country)
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}
