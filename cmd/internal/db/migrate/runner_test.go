package migrate

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/finovotech001-eng/zuperior-api/cmd/internal/db"
)

func TestRun_RequiresDSN(t *testing.T) {
	for _, dsn := range []string{"", "   "} {
		if err := Run(dsn, Up); !errors.Is(err, ErrNoDSN) {
			t.Fatalf("Run(%q) = %v, want ErrNoDSN", dsn, err)
		}
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{in: "up", want: Up},
		{in: "down", want: Down},
		{in: "UP", wantErr: true},
		{in: "", wantErr: true},
		{in: "sideways", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseDirection(%q) should fail", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseDirection(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestRun_RejectsBadDirection(t *testing.T) {
	err := Run("postgres://localhost/zuperior", Direction("left"))
	if err == nil || !strings.Contains(err.Error(), "direction") {
		t.Fatalf("Run = %v, want direction error", err)
	}
}

func TestMigrationFS_HasPairedFiles(t *testing.T) {
	entries, err := fs.ReadDir(db.MigrationFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	if len(ups) == 0 {
		t.Fatalf("no migrations embedded")
	}
	for v := range ups {
		if !downs[v] {
			t.Fatalf("migration %s has no down file", v)
		}
	}
}

func TestMigrationFS_SessionsRevokedIsNullable(t *testing.T) {
	b, err := fs.ReadFile(db.MigrationFS, "migrations/0001_auth.up.sql")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(b), "revoked       BOOLEAN NULL DEFAULT FALSE") {
		t.Fatalf("sessions.revoked must stay a nullable boolean")
	}
}
