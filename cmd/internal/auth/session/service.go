package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finovotech001-eng/zuperior-api/cmd/identity/ids"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/autherr"
)

// Service is the revocation guard: it issues sessions, validates access and
// refresh credentials against live sessions, rotates refresh credentials and
// revokes sessions.
type Service struct {
	cfg     Config
	issuer  *Issuer
	store   Store
	metrics *Metrics
	log     *slog.Logger
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithMetrics records session counters on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// Issued is the result of issuing or rotating a session.
type Issued struct {
	SessionID    string
	UserID       string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time

	// Evicted is the session revoked to stay under the cap, if any.
	Evicted *Session
}

// NewService constructs a Service. The issuer must have been built from cfg.
func NewService(cfg Config, store Store, issuer *Issuer, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || issuer == nil {
		return nil, fmt.Errorf("%w: nil store or issuer", ErrConfig)
	}

	s := &Service{cfg: cfg, issuer: issuer, store: store, log: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Config returns the configuration the service was built with.
func (s *Service) Config() Config { return s.cfg }

// IssueSession mints a credential pair for userID and admits its session,
// evicting the least recently active session if the user is at the cap.
func (s *Service) IssueSession(ctx context.Context, now time.Time, userID string, dev DeviceContext) (Issued, error) {
	var out Issued
	err := s.store.InTx(ctx, func(q Queries) error {
		if err := q.LockUser(ctx, userID); err != nil {
			return err
		}
		issued, err := s.admitNew(ctx, q, now, userID, dev)
		if err != nil {
			return err
		}
		out = issued
		return nil
	})
	if err != nil {
		return Issued{}, err
	}

	s.afterAdmit(out)
	return out, nil
}

// admitNew mints a pair, applies the cap and persists the new session.
// Callers must hold the user lock.
func (s *Service) admitNew(ctx context.Context, q Queries, now time.Time, userID string, dev DeviceContext) (Issued, error) {
	access, accessExp, err := s.issuer.IssueAccess(userID, now)
	if err != nil {
		return Issued{}, err
	}
	refresh, refreshExp, err := s.issuer.IssueRefresh(userID, now)
	if err != nil {
		return Issued{}, err
	}
	sessionID, err := ids.NewSessionID(now)
	if err != nil {
		return Issued{}, err
	}

	evicted, err := admit(ctx, q, userID, now, s.cfg.MaxActiveSessions)
	if err != nil {
		return Issued{}, err
	}

	err = q.Create(ctx, Session{
		ID:           sessionID,
		UserID:       userID,
		Token:        refresh,
		IssuedAt:     now,
		ExpiresAt:    refreshExp,
		LastActivity: now,
		State:        StateActive,
		DeviceName:   dev.DeviceName,
		IPAddress:    dev.IPAddress,
		UserAgent:    dev.UserAgent,
	})
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		SessionID:    sessionID,
		UserID:       userID,
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshExp:   refreshExp,
		Evicted:      evicted,
	}, nil
}

func (s *Service) afterAdmit(out Issued) {
	s.metrics.sessionIssued()
	if out.Evicted != nil {
		s.metrics.sessionEvicted()
		s.log.Info("session.evicted",
			"user_id", out.UserID,
			"session_id", out.Evicted.ID,
			"replaced_by", out.SessionID,
		)
	}
}

// ValidateAccess returns the subject of a valid access credential. The
// subject must still hold at least one live session; otherwise the call
// fails with autherr.ErrSessionRevoked even though the credential itself has
// not expired.
func (s *Service) ValidateAccess(ctx context.Context, token string, now time.Time) (string, error) {
	const op = "session.ValidateAccess"

	claims, err := s.issuer.Parse(token, now, TypeAccess)
	if err != nil {
		s.metrics.accessRejectedFor("token")
		return "", err
	}

	live, err := s.store.LiveSessions(ctx, claims.Subject, now)
	if err != nil {
		return "", err
	}
	if len(live) == 0 {
		s.metrics.accessRejectedFor("session_revoked")
		return "", autherr.SessionRevoked(op)
	}
	return claims.Subject, nil
}

// ValidateRefresh checks a refresh credential against its live session and
// touches that session.
func (s *Service) ValidateRefresh(ctx context.Context, token string, now time.Time) (string, Session, error) {
	claims, err := s.issuer.Parse(token, now, TypeRefresh)
	if err != nil {
		return "", Session{}, err
	}

	var sess Session
	err = s.store.InTx(ctx, func(q Queries) error {
		if err := q.LockUser(ctx, claims.Subject); err != nil {
			return err
		}
		got, err := validateRefreshTx(ctx, q, claims.Subject, token, now)
		if err != nil {
			return err
		}
		sess = got
		return nil
	})
	if err != nil {
		return "", Session{}, err
	}
	return claims.Subject, sess, nil
}

// validateRefreshTx requires an exact live session for token owned by
// subject, then touches it. Callers must hold the user lock.
func validateRefreshTx(ctx context.Context, q Queries, subject, token string, now time.Time) (Session, error) {
	const op = "session.ValidateRefresh"

	sess, err := q.FindByToken(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return Session{}, autherr.Token(op, "refresh token not recognised")
	}
	if err != nil {
		return Session{}, err
	}
	if sess.UserID != subject {
		return Session{}, autherr.Token(op, "refresh token subject mismatch")
	}
	if !sess.Live(now) {
		return Session{}, autherr.Token(op, "refresh token revoked or expired")
	}

	if err := q.Touch(ctx, sess.ID, now); err != nil {
		return Session{}, err
	}
	sess.LastActivity = now
	return sess, nil
}

// Rotate exchanges a refresh credential for a new pair. In one transaction it
// validates and touches the old session, revokes it and admits a new session
// that inherits the old device metadata wherever dev is empty. A replayed
// refresh credential fails with autherr.ErrToken.
func (s *Service) Rotate(ctx context.Context, token string, now time.Time, dev DeviceContext) (Issued, error) {
	claims, err := s.issuer.Parse(token, now, TypeRefresh)
	if err != nil {
		s.metrics.refreshResult("invalid")
		return Issued{}, err
	}

	var out Issued
	err = s.store.InTx(ctx, func(q Queries) error {
		if err := q.LockUser(ctx, claims.Subject); err != nil {
			return err
		}

		old, err := validateRefreshTx(ctx, q, claims.Subject, token, now)
		if err != nil {
			return err
		}
		if err := q.Revoke(ctx, old.ID, now); err != nil {
			return err
		}

		issued, err := s.admitNew(ctx, q, now, claims.Subject, dev.inherit(old))
		if err != nil {
			return err
		}
		out = issued
		return nil
	})
	if err != nil {
		if autherr.IsToken(err) {
			s.metrics.refreshResult("rejected")
		} else {
			s.metrics.refreshResult("error")
		}
		return Issued{}, err
	}

	s.metrics.refreshResult("rotated")
	s.metrics.sessionsRevoked(ReasonRotation, 1)
	s.afterAdmit(out)
	return out, nil
}

// Logout revokes the session holding token when it belongs to subject.
// Unknown or foreign tokens are ignored; it reports whether a session was
// revoked.
func (s *Service) Logout(ctx context.Context, subject, token string, now time.Time) (bool, error) {
	revoked := false
	err := s.store.InTx(ctx, func(q Queries) error {
		if err := q.LockUser(ctx, subject); err != nil {
			return err
		}
		sess, err := q.FindByToken(ctx, token)
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if sess.UserID != subject || sess.State == StateRevoked {
			return nil
		}
		if err := q.Revoke(ctx, sess.ID, now); err != nil {
			return err
		}
		revoked = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if revoked {
		s.metrics.sessionsRevoked(ReasonLogout, 1)
	}
	return revoked, nil
}

// LogoutAll revokes every live session of subject and returns the count.
func (s *Service) LogoutAll(ctx context.Context, subject string, now time.Time) (int, error) {
	return s.RevokeAllForUser(ctx, subject, now, ReasonLogoutAll)
}

// RevokeAllForUser revokes every live session of userID. reason labels the
// revocation in metrics and logs.
func (s *Service) RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason string) (int, error) {
	var n int
	err := s.store.InTx(ctx, func(q Queries) error {
		if err := q.LockUser(ctx, userID); err != nil {
			return err
		}
		count, err := q.RevokeAll(ctx, userID, now)
		if err != nil {
			return err
		}
		n = count
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.sessionsRevoked(reason, n)
	s.log.Info("session.revoke_all", "user_id", userID, "reason", reason, "count", n)
	return n, nil
}

// ActiveSessions lists subject's live sessions, least recently active first.
func (s *Service) ActiveSessions(ctx context.Context, subject string, now time.Time) ([]Session, error) {
	return s.store.LiveSessions(ctx, subject, now)
}
