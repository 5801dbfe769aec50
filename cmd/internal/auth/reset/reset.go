// Package reset implements the forgot-password and reset-password flow.
package reset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/finovotech001-eng/zuperior-api/cmd/identity"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/autherr"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/session"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/notify"
	"github.com/finovotech001-eng/zuperior-api/cmd/security/password"
	"github.com/finovotech001-eng/zuperior-api/cmd/security/token"
)

const (
	// GenericResetMessage is returned for every forgot-password request.
	GenericResetMessage = "If an account with that email exists, a password reset link has been sent."

	// InvalidTokenMessage is returned for unknown, expired or used tokens.
	InvalidTokenMessage = "Invalid or expired reset token"

	// SuccessMessage is returned after a completed reset.
	SuccessMessage = "Password has been reset successfully"
)

// SessionRevoker revokes every live session of a user.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason string) (int, error)
}

// Config controls the flow.
type Config struct {
	// URLBase is the front-end page that accepts ?token=.
	URLBase string

	// RevokeSessions makes a completed reset revoke every live session of
	// the account.
	RevokeSessions bool
}

// Service runs the reset flow.
type Service struct {
	cfg      Config
	users    identity.Store
	hasher   password.Hasher
	sessions SessionRevoker
	notifier notify.Dispatcher
	log      *slog.Logger
}

// NewService constructs a Service. sessions may be nil only when
// cfg.RevokeSessions is false.
func NewService(cfg Config, users identity.Store, hasher password.Hasher, sessions SessionRevoker, notifier notify.Dispatcher, log *slog.Logger) (*Service, error) {
	if users == nil || hasher == nil || notifier == nil {
		return nil, errors.New("reset: nil dependency")
	}
	if cfg.RevokeSessions && sessions == nil {
		return nil, errors.New("reset: session revocation enabled without a revoker")
	}
	if _, err := url.Parse(cfg.URLBase); err != nil {
		return nil, fmt.Errorf("reset: url base: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, users: users, hasher: hasher, sessions: sessions, notifier: notifier, log: log}, nil
}

// decoyUserID is a well-formed id no account ever has. Unknown emails write
// a token against it so both branches cost one store round trip.
const decoyUserID = "00000000-0000-0000-0000-000000000000"

// RequestReset starts a reset for email. The returned message is the same
// whether or not the account exists, and both branches perform one token
// write; only unexpected store failures are returned as errors. The notifier
// is expected to be non-blocking (notify.Async).
func (s *Service) RequestReset(ctx context.Context, email string, now time.Time) (string, error) {
	tok, err := token.NewOpaque(token.DefaultOpaqueBytes)
	if err != nil {
		return "", err
	}
	expires := now.Add(session.ResetTokenTTL)

	u, err := s.users.GetByEmail(ctx, email)
	if identity.IsNotFound(err) {
		if err := s.users.SetResetToken(ctx, decoyUserID, tok, expires); err != nil && !identity.IsNotFound(err) {
			return "", err
		}
		s.log.InfoContext(ctx, "auth.password_reset.request", "known", false)
		return GenericResetMessage, nil
	}
	if err != nil {
		return "", err
	}

	if err := s.users.SetResetToken(ctx, u.ID, tok, expires); err != nil {
		return "", err
	}

	if err := s.notifier.SendPasswordReset(ctx, notify.Recipient{Email: u.Email, Name: deref(u.Name)}, s.resetURL(tok), expires); err != nil {
		s.log.WarnContext(ctx, "auth.password_reset.notify.fail", "user_id", u.ID, "err", err)
	}
	s.log.InfoContext(ctx, "auth.password_reset.request", "known", true, "user_id", u.ID)
	return GenericResetMessage, nil
}

// Result describes a completed reset.
type Result struct {
	UserID          string
	SessionsRevoked int
}

// CompleteReset consumes tok and sets newPassword. Unknown, expired and
// already used tokens all fail with autherr.ErrValidation and
// InvalidTokenMessage.
func (s *Service) CompleteReset(ctx context.Context, tok, newPassword string, now time.Time) (Result, error) {
	const op = "reset.CompleteReset"

	tok = strings.TrimSpace(tok)
	if !token.LooksOpaque(tok) {
		return Result{}, autherr.Validation(op, InvalidTokenMessage)
	}

	u, err := s.users.FindByResetToken(ctx, tok, now)
	if identity.IsNotFound(err) {
		return Result{}, autherr.Validation(op, InvalidTokenMessage)
	}
	if err != nil {
		return Result{}, err
	}

	if err := s.hasher.Validate(newPassword); err != nil {
		return Result{}, autherr.Validation(op, PolicyMessage(err))
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return Result{}, err
	}

	out := Result{UserID: u.ID}

	// Revocation runs inside the password update: either both land or
	// neither does and the token stays usable.
	var within func(context.Context) error
	if s.cfg.RevokeSessions {
		within = func(txCtx context.Context) error {
			n, err := s.sessions.RevokeAllForUser(txCtx, u.ID, now, session.ReasonPasswordReset)
			out.SessionsRevoked = n
			return err
		}
	}

	err = s.users.CompletePasswordReset(ctx, u.ID, tok, hash, now, within)
	if identity.IsNotFound(err) {
		// Another request consumed the token first.
		return Result{}, autherr.Validation(op, InvalidTokenMessage)
	}
	if err != nil {
		return Result{}, err
	}

	s.log.InfoContext(ctx, "auth.password_reset.complete", "user_id", u.ID, "sessions_revoked", out.SessionsRevoked)
	return out, nil
}

// PolicyMessage turns a password policy error into a client-facing message.
func PolicyMessage(err error) string {
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return "Password is too short"
	case errors.Is(err, password.ErrPasswordTooLong):
		return "Password is too long"
	case errors.Is(err, password.ErrWeakPassword):
		return "Password is too weak"
	default:
		return "Invalid password"
	}
}

func (s *Service) resetURL(tok string) string {
	u, err := url.Parse(s.cfg.URLBase)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("token", tok)
	u.RawQuery = q.Encode()
	return u.String()
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
