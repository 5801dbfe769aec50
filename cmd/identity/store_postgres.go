package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finovotech001-eng/zuperior-api/cmd/identity/ids"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/db"
)

// PostgresStore implements Store over PostgreSQL. The pool is owned by the
// caller and is never closed here.
type PostgresStore struct {
	pool  *pgxpool.Pool
	users string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema holding the users table (default "zuperior").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier %q", schema)
		}
		s.users = pgx.Identifier{schema, "users"}.Sanitize()
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	st := &PostgresStore{
		pool:  pool,
		users: pgx.Identifier{"zuperior", "users"}.Sanitize(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	return st, nil
}

var _ Store = (*PostgresStore)(nil)

const userColumns = `
	id::text, client_id, email, password_hash, name, phone, country,
	role, status, email_verified, reset_token, reset_token_expires,
	created_at, last_login_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.ClientID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Country,
		&u.Role, &u.Status, &u.EmailVerified, &u.ResetToken, &u.ResetTokenExpires,
		&u.CreatedAt, &u.LastLoginAt,
	)
	return u, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	in, err := prepareCreate(op, in)
	if err != nil {
		return User{}, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO `+s.users+` (
			id, client_id, email, password_hash, name, phone, country,
			role, status, email_verified, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10)
		RETURNING `+userColumns,
		ids.NewUserID(), ids.NewClientID(), in.Email, in.PasswordHash,
		in.Name, in.Phone, in.Country, in.Role, StatusActive, in.Now,
	)
	u, err := scanUser(row)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetByID"

	if !ids.IsUUID(id) {
		return User{}, notFound(op, "user")
	}
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM `+s.users+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, notFound(op, "user")
	}
	return u, err
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.users+` WHERE email = $1`, NormalizeEmail(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, notFound("identity.GetByEmail", "user")
	}
	return u, err
}

func (s *PostgresStore) UpdateLastLogin(ctx context.Context, id string, now time.Time) error {
	if !ids.IsUUID(id) {
		return notFound("identity.UpdateLastLogin", "user")
	}
	return s.execOne(ctx, "identity.UpdateLastLogin", "user",
		`UPDATE `+s.users+` SET last_login_at = $2 WHERE id = $1`, id, now)
}

func (s *PostgresStore) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	const op = "identity.SetResetToken"
	if token == "" {
		return invalid(op, "empty token")
	}
	if !ids.IsUUID(id) {
		return notFound(op, "user")
	}
	return s.execOne(ctx, op, "user", `
		UPDATE `+s.users+`
		SET reset_token = $2, reset_token_expires = $3
		WHERE id = $1`, id, token, expires)
}

func (s *PostgresStore) FindByResetToken(ctx context.Context, token string, now time.Time) (User, error) {
	const op = "identity.FindByResetToken"
	if token == "" {
		return User{}, notFound(op, "reset_token")
	}

	u, err := scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM `+s.users+`
		WHERE reset_token = $1 AND reset_token_expires > $2`, token, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, notFound(op, "reset_token")
	}
	return u, err
}

func (s *PostgresStore) CompletePasswordReset(ctx context.Context, id, token, newHash string, now time.Time, within func(ctx context.Context) error) error {
	const op = "identity.CompletePasswordReset"
	if !ids.IsUUID(id) || token == "" {
		return notFound(op, "reset_token")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE `+s.users+`
		SET password_hash = $3, reset_token = NULL, reset_token_expires = NULL
		WHERE id = $1 AND reset_token = $2 AND reset_token_expires > $4`,
		id, token, newHash, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(op, "reset_token")
	}

	if within != nil {
		if err := within(db.WithTx(ctx, tx)); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) MarkEmailVerified(ctx context.Context, email string) error {
	return s.execOne(ctx, "identity.MarkEmailVerified", "user",
		`UPDATE `+s.users+` SET email_verified = TRUE WHERE email = $1`, NormalizeEmail(email))
}

// SetStatus changes an account's status.
func (s *PostgresStore) SetStatus(ctx context.Context, id, status string) error {
	if !ids.IsUUID(id) {
		return notFound("identity.SetStatus", "user")
	}
	return s.execOne(ctx, "identity.SetStatus", "user",
		`UPDATE `+s.users+` SET status = $2 WHERE id = $1`, id, status)
}

// execOne runs a single-row UPDATE and maps zero rows to NotFoundError.
func (s *PostgresStore) execOne(ctx context.Context, op, resource, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(op, resource)
	}
	return nil
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(pgErr.ConstraintName)
	switch {
	case strings.Contains(c, "email"):
		return "email", true
	case strings.Contains(c, "client_id"):
		return "client_id", true
	default:
		return "unique", true
	}
}
