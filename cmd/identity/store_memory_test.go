package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func mustCreate(t *testing.T, s Store, email string) User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), CreateUserInput{
		Email:        email,
		PasswordHash: "$argon2id$stub",
		Now:          testNow,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestMemoryStore_CreateUserDefaults(t *testing.T) {
	s := NewMemoryStore()
	name := "  Ada Lovelace "
	u, err := s.CreateUser(context.Background(), CreateUserInput{
		Email:        "  Ada@Example.COM ",
		PasswordHash: "$argon2id$stub",
		Name:         &name,
		Now:          testNow,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if u.Email != "ada@example.com" {
		t.Fatalf("Email = %q", u.Email)
	}
	if u.Role != RoleUser || u.Status != StatusActive || !u.Active() {
		t.Fatalf("role=%q status=%q", u.Role, u.Status)
	}
	if u.Name == nil || *u.Name != "Ada Lovelace" {
		t.Fatalf("Name = %v", u.Name)
	}
	if len(u.ClientID) != 25 || u.ClientID[0] != 'c' {
		t.Fatalf("ClientID = %q", u.ClientID)
	}
	if u.EmailVerified || u.LastLoginAt != nil {
		t.Fatalf("new account should be unverified with no login")
	}
}

func TestMemoryStore_CreateUserValidation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, CreateUserInput{PasswordHash: "h"}); !IsInvalidInput(err) {
		t.Fatalf("missing email: %v", err)
	}
	if _, err := s.CreateUser(ctx, CreateUserInput{Email: "a@b.c"}); !IsInvalidInput(err) {
		t.Fatalf("missing hash: %v", err)
	}

	mustCreate(t, s, "dup@example.com")
	_, err := s.CreateUser(ctx, CreateUserInput{Email: "DUP@example.com", PasswordHash: "h"})
	if !IsConflict(err) {
		t.Fatalf("duplicate email: %v", err)
	}
}

func TestMemoryStore_ConcurrentRegistrationSingleWinner(t *testing.T) {
	s := NewMemoryStore()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		conflict int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateUser(context.Background(), CreateUserInput{Email: "race@example.com", PasswordHash: "h"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if IsConflict(err) {
				conflict++
			}
		}()
	}
	wg.Wait()

	if created != 1 || conflict != 9 {
		t.Fatalf("created=%d conflict=%d", created, conflict)
	}
}

func TestMemoryStore_Lookups(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u := mustCreate(t, s, "look@example.com")

	if got, err := s.GetByEmail(ctx, "LOOK@example.com"); err != nil || got.ID != u.ID {
		t.Fatalf("GetByEmail = %+v, %v", got, err)
	}
	if got, err := s.GetByID(ctx, u.ID); err != nil || got.Email != u.Email {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}
	if _, err := s.GetByEmail(ctx, "nobody@example.com"); !IsNotFound(err) {
		t.Fatalf("unknown email: %v", err)
	}
	if _, err := s.GetByID(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("unknown id: %v", err)
	}

	if err := s.UpdateLastLogin(ctx, u.ID, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("UpdateLastLogin: %v", err)
	}
	got, _ := s.GetByID(ctx, u.ID)
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("LastLoginAt = %v", got.LastLoginAt)
	}

	if err := s.MarkEmailVerified(ctx, "look@example.com"); err != nil {
		t.Fatalf("MarkEmailVerified: %v", err)
	}
	got, _ = s.GetByID(ctx, u.ID)
	if !got.EmailVerified {
		t.Fatalf("email not verified")
	}
	if err := s.MarkEmailVerified(ctx, "ghost@example.com"); !IsNotFound(err) {
		t.Fatalf("MarkEmailVerified unknown: %v", err)
	}
}

func TestMemoryStore_ResetTokenLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u := mustCreate(t, s, "reset@example.com")
	exp := testNow.Add(time.Hour)

	if err := s.SetResetToken(ctx, u.ID, "first", exp); err != nil {
		t.Fatalf("SetResetToken: %v", err)
	}
	if err := s.SetResetToken(ctx, u.ID, "second", exp); err != nil {
		t.Fatalf("SetResetToken: %v", err)
	}
	if _, err := s.FindByResetToken(ctx, "first", testNow); !IsNotFound(err) {
		t.Fatalf("overwritten token still valid: %v", err)
	}
	if _, err := s.FindByResetToken(ctx, "second", exp); !IsNotFound(err) {
		t.Fatalf("token valid at its expiry instant: %v", err)
	}
	got, err := s.FindByResetToken(ctx, "second", testNow)
	if err != nil || got.ID != u.ID {
		t.Fatalf("FindByResetToken = %+v, %v", got, err)
	}

	if err := s.CompletePasswordReset(ctx, u.ID, "second", "new-hash", testNow, nil); err != nil {
		t.Fatalf("CompletePasswordReset: %v", err)
	}
	if err := s.CompletePasswordReset(ctx, u.ID, "second", "newer-hash", testNow, nil); !IsNotFound(err) {
		t.Fatalf("reuse: %v", err)
	}

	got, _ = s.GetByID(ctx, u.ID)
	if got.PasswordHash != "new-hash" || got.ResetToken != nil || got.ResetTokenExpires != nil {
		t.Fatalf("after reset: %+v", got)
	}
}

func TestUserStatusLabel(t *testing.T) {
	tests := []struct {
		status string
		active bool
		label  string
	}{
		{"active", true, "active"},
		{"Active", true, "Active"},
		{"suspended", false, "suspended"},
		{"", false, "Inactive"},
	}
	for _, tt := range tests {
		u := User{Status: tt.status}
		if u.Active() != tt.active || u.StatusLabel() != tt.label {
			t.Fatalf("status %q: active=%v label=%q", tt.status, u.Active(), u.StatusLabel())
		}
	}
}

func TestMemoryStore_CompletePasswordResetWithinFailure(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u := mustCreate(t, s, "atomic@example.com")
	if err := s.SetResetToken(ctx, u.ID, "tok", testNow.Add(time.Hour)); err != nil {
		t.Fatalf("SetResetToken: %v", err)
	}

	boom := errors.New("boom")
	err := s.CompletePasswordReset(ctx, u.ID, "tok", "new-hash", testNow, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("CompletePasswordReset = %v, want boom", err)
	}

	got, _ := s.GetByID(ctx, u.ID)
	if got.PasswordHash == "new-hash" || got.ResetToken == nil {
		t.Fatalf("partial reset applied: %+v", got)
	}

	var ran bool
	if err := s.CompletePasswordReset(ctx, u.ID, "tok", "new-hash", testNow, func(context.Context) error { ran = true; return nil }); err != nil {
		t.Fatalf("CompletePasswordReset: %v", err)
	}
	if !ran {
		t.Fatalf("within was not called")
	}
}
