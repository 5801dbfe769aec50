package ids

import (
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewUserID_IsUUID(t *testing.T) {
	t.Parallel()

	id := NewUserID()
	if !IsUUID(id) {
		t.Fatalf("expected uuid, got %q", id)
	}
	if id == NewUserID() {
		t.Fatalf("expected distinct ids")
	}
}

func TestNewClientID_Format(t *testing.T) {
	t.Parallel()

	id := NewClientID()
	if len(id) != 25 || !strings.HasPrefix(id, "c") {
		t.Fatalf("unexpected client id %q", id)
	}
	if strings.ContainsAny(id[1:], "-ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		t.Fatalf("expected lowercase hex suffix, got %q", id)
	}
}

func TestNewSessionID_SortsByTime(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a, err := NewSessionID(t0)
	if err != nil {
		t.Fatalf("NewSessionID: %v", err)
	}
	b, err := NewSessionID(t0.Add(time.Second))
	if err != nil {
		t.Fatalf("NewSessionID: %v", err)
	}
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("expected ULID length 26, got %d and %d", len(a), len(b))
	}
	if a >= b {
		t.Fatalf("expected %q < %q", a, b)
	}

	parsed, err := ulid.Parse(a)
	if err != nil {
		t.Fatalf("ulid.Parse: %v", err)
	}
	if got := ulid.Time(parsed.Time()); !got.Equal(t0) {
		t.Fatalf("timestamp mismatch: %v", got)
	}
}
