package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finovotech001-eng/zuperior-api/cmd/internal/db"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store over zuperior.sessions.
// The pool is owned by the caller.
type PostgresStore struct {
	pgQueries
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgQueries: pgQueries{db: pool}, pool: pool}
}

var _ Store = (*PostgresStore)(nil)

// InTx runs fn inside a READ COMMITTED transaction. Per-user serialisation
// comes from LockUser, not from the isolation level. When ctx already carries
// a transaction (db.WithTx), fn runs in a savepoint of it and nothing is
// durable until the outer transaction commits.
func (s *PostgresStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	var (
		tx  pgx.Tx
		err error
	)
	if outer, ok := db.TxFromContext(ctx); ok {
		tx, err = outer.Begin(ctx)
	} else {
		tx, err = s.pool.BeginTx(ctx, pgx.TxOptions{
			IsoLevel:   pgx.ReadCommitted,
			AccessMode: pgx.ReadWrite,
		})
	}
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(pgQueries{db: tx, inTx: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgQueries struct {
	db   dbtx
	inTx bool
}

const sessionColumns = `
	id, user_id, token, issued_at, expires_at, last_activity, revoked,
	COALESCE(device_name, ''), COALESCE(ip_address, ''), COALESCE(user_agent, '')`

func scanSession(row pgx.Row) (Session, error) {
	var (
		s       Session
		revoked *bool
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Token,
		&s.IssuedAt,
		&s.ExpiresAt,
		&s.LastActivity,
		&revoked,
		&s.DeviceName,
		&s.IPAddress,
		&s.UserAgent,
	)
	if err != nil {
		return Session{}, err
	}
	s.State = stateFromColumn(revoked)
	return s, nil
}

// LockUser takes a transaction-scoped advisory lock keyed on the user ID.
// Outside a transaction it would release immediately, so it is a no-op there.
func (q pgQueries) LockUser(ctx context.Context, userID string) error {
	if !q.inTx {
		return nil
	}
	_, err := q.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID)
	return err
}

func (q pgQueries) Create(ctx context.Context, s Session) error {
	lastActivity := s.LastActivity
	if lastActivity.IsZero() {
		lastActivity = s.IssuedAt
	}

	_, err := q.db.Exec(ctx, `
		INSERT INTO zuperior.sessions (
			id, user_id, token, issued_at, expires_at, last_activity, revoked,
			device_name, ip_address, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $8, $9)
	`, s.ID, s.UserID, s.Token, s.IssuedAt, s.ExpiresAt, lastActivity,
		nullIfEmpty(s.DeviceName), nullIfEmpty(s.IPAddress), nullIfEmpty(s.UserAgent))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSession
		}
		return err
	}
	return nil
}

func (q pgQueries) LiveSessions(ctx context.Context, userID string, now time.Time) ([]Session, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM zuperior.sessions
		WHERE user_id = $1
		  AND revoked IS NOT TRUE
		  AND expires_at > $2
		ORDER BY last_activity ASC, issued_at ASC, id ASC
	`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q pgQueries) FindByToken(ctx context.Context, token string) (Session, error) {
	sql := `SELECT ` + sessionColumns + ` FROM zuperior.sessions WHERE token = $1`
	if q.inTx {
		sql += ` FOR UPDATE`
	}

	s, err := scanSession(q.db.QueryRow(ctx, sql, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

func (q pgQueries) Revoke(ctx context.Context, sessionID string, now time.Time) error {
	_, err := q.db.Exec(ctx, `
		UPDATE zuperior.sessions
		SET revoked = TRUE,
		    last_activity = $2
		WHERE id = $1
		  AND revoked IS NOT TRUE
	`, sessionID, now)
	return err
}

func (q pgQueries) RevokeAll(ctx context.Context, userID string, now time.Time) (int, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE zuperior.sessions
		SET revoked = TRUE,
		    last_activity = $2
		WHERE user_id = $1
		  AND revoked IS NOT TRUE
		  AND expires_at > $2
	`, userID, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (q pgQueries) Touch(ctx context.Context, sessionID string, now time.Time) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE zuperior.sessions
		SET last_activity = $2
		WHERE id = $1
	`, sessionID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
