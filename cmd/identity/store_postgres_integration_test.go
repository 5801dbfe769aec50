package identity

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finovotech001-eng/zuperior-api/cmd/identity/ids"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/db"
)

// Integration tests are opt-in and require DATABASE_URL. Each test runs in
// its own schema built from the embedded migration.
// In non-CI runs, unreachable Postgres skips these tests.

func TestPostgresStore_CreateUser_ConflictEmail_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s := mustNewIsolatedStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	u, err := s.CreateUser(ctx, CreateUserInput{Email: "Trader@Example.com", PasswordHash: "h", Now: time.Now().UTC()})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Email != "trader@example.com" || u.Role != RoleUser || u.Status != StatusActive {
		t.Fatalf("created = %+v", u)
	}
	if !ids.IsUUID(u.ID) {
		t.Fatalf("ID %q is not a UUID", u.ID)
	}

	_, err = s.CreateUser(ctx, CreateUserInput{Email: "TRADER@example.com", PasswordHash: "h"})
	var ce ConflictError
	if !errors.As(err, &ce) || ce.Field != "email" {
		t.Fatalf("duplicate = %v, want email conflict", err)
	}
}

func TestPostgresStore_CreateUser_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	s := mustNewIsolatedStore(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateUser(context.Background(), CreateUserInput{Email: "race@example.com", PasswordHash: "h"})
			if err != nil && !IsConflict(err) {
				t.Errorf("CreateUser: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
}

func TestPostgresStore_ResetTokenSingleUse(t *testing.T) {
	t.Parallel()

	s := mustNewIsolatedStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	u, err := s.CreateUser(ctx, CreateUserInput{Email: "reset@example.com", PasswordHash: "old"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.SetResetToken(ctx, u.ID, "tok", now.Add(time.Hour)); err != nil {
		t.Fatalf("SetResetToken: %v", err)
	}

	found, err := s.FindByResetToken(ctx, "tok", now)
	if err != nil || found.ID != u.ID {
		t.Fatalf("FindByResetToken = %+v, %v", found, err)
	}
	if _, err := s.FindByResetToken(ctx, "tok", now.Add(time.Hour+time.Second)); !IsNotFound(err) {
		t.Fatalf("expired lookup = %v", err)
	}

	if err := s.CompletePasswordReset(ctx, u.ID, "tok", "new", now, nil); err != nil {
		t.Fatalf("CompletePasswordReset: %v", err)
	}
	if err := s.CompletePasswordReset(ctx, u.ID, "tok", "newer", now, nil); !IsNotFound(err) {
		t.Fatalf("second CompletePasswordReset = %v", err)
	}

	got, err := s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PasswordHash != "new" || got.ResetToken != nil || got.ResetTokenExpires != nil {
		t.Fatalf("after reset: %+v", got)
	}
}

func TestPostgresStore_LoginAndVerification(t *testing.T) {
	t.Parallel()

	s := mustNewIsolatedStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	u, err := s.CreateUser(ctx, CreateUserInput{Email: "login@example.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.UpdateLastLogin(ctx, u.ID, now); err != nil {
		t.Fatalf("UpdateLastLogin: %v", err)
	}
	if err := s.MarkEmailVerified(ctx, "LOGIN@example.com"); err != nil {
		t.Fatalf("MarkEmailVerified: %v", err)
	}
	if err := s.SetStatus(ctx, u.ID, "suspended"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	got, err := s.GetByEmail(ctx, "login@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(now) {
		t.Fatalf("LastLoginAt = %v", got.LastLoginAt)
	}
	if !got.EmailVerified || got.Active() {
		t.Fatalf("verified=%v active=%v", got.EmailVerified, got.Active())
	}

	if _, err := s.GetByID(ctx, "not-a-uuid"); !IsNotFound(err) {
		t.Fatalf("GetByID(bad) = %v", err)
	}
	if err := s.UpdateLastLogin(ctx, ids.NewUserID(), now); !IsNotFound(err) {
		t.Fatalf("UpdateLastLogin(missing) = %v", err)
	}
}

func mustNewIsolatedStore(t *testing.T) *PostgresStore {
	t.Helper()

	pool := mustOpenTestPool(t)
	t.Cleanup(pool.Close)

	schema := "zuperior_it_" + strings.ReplaceAll(ids.NewUserID(), "-", "")
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})
	mustApplyMigrations(t, pool, schema)

	s, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	return s
}

// mustApplyMigrations runs every embedded up migration with the production
// schema name swapped for schema.
func mustApplyMigrations(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	files, err := fs.Glob(db.MigrationFS, "migrations/*.up.sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	for _, name := range files {
		b, err := fs.ReadFile(db.MigrationFS, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		sql := strings.ReplaceAll(string(b), "zuperior.", schema+".")
		sql = strings.ReplaceAll(sql, "SCHEMA IF NOT EXISTS zuperior;", "SCHEMA IF NOT EXISTS "+schema+";")
		if _, err := pool.Exec(ctx, sql); err != nil {
			t.Fatalf("apply %s: %v", name, err)
		}
	}
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse DATABASE_URL: %v", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}

func shouldSkipIntegration(err error) bool {
	if err == nil || os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}
