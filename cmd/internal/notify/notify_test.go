package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	calls   []string
	err     error
	delay   time.Duration
	ctxErrs []error
}

func (r *recorder) record(ctx context.Context, call string) error {
	if r.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delay):
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return r.err
}

func (r *recorder) SendWelcome(ctx context.Context, to Recipient) error {
	return r.record(ctx, "welcome:"+to.Email)
}

func (r *recorder) SendPasswordReset(ctx context.Context, to Recipient, _ string, _ time.Time) error {
	return r.record(ctx, "reset:"+to.Email)
}

func (r *recorder) SendVerificationCode(ctx context.Context, email, _ string, _ time.Time) error {
	return r.record(ctx, "code:"+email)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestAsync_DeliversInBackground(t *testing.T) {
	rec := &recorder{}
	a := NewAsync(rec, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	_ = a.SendWelcome(ctx, Recipient{Email: "a@example.com"})
	_ = a.SendPasswordReset(ctx, Recipient{Email: "b@example.com"}, "https://x/reset?token=t", time.Now())
	_ = a.SendVerificationCode(ctx, "c@example.com", "123456", time.Now())
	cancel()

	if err := a.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	calls := rec.snapshot()
	if len(calls) != 3 {
		t.Fatalf("calls = %v", calls)
	}
	for _, err := range rec.ctxErrs {
		if err != nil {
			t.Fatalf("delivery context was cancelled with the request")
		}
	}
}

func TestAsync_FailuresAreLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	rec := &recorder{err: errors.New("smtp down")}
	a := NewAsync(rec, slog.New(slog.NewTextHandler(&buf, nil)))

	if err := a.SendWelcome(context.Background(), Recipient{Email: "a@example.com"}); err != nil {
		t.Fatalf("SendWelcome returned %v", err)
	}
	if err := a.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !strings.Contains(buf.String(), "notify.async.fail") || !strings.Contains(buf.String(), "smtp down") {
		t.Fatalf("log = %q", buf.String())
	}
}

func TestAsync_DoesNotBlockCaller(t *testing.T) {
	rec := &recorder{delay: 200 * time.Millisecond}
	a := NewAsync(rec, nil)

	start := time.Now()
	_ = a.SendWelcome(context.Background(), Recipient{Email: "slow@example.com"})
	if time.Since(start) > 50*time.Millisecond {
		t.Fatalf("SendWelcome blocked for %v", time.Since(start))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	if err := a.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want deadline exceeded", err)
	}
	if err := a.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestAsync_TimeoutBoundsDelivery(t *testing.T) {
	rec := &recorder{delay: time.Second}
	a := NewAsync(rec, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	a.timeout = 10 * time.Millisecond

	_ = a.SendWelcome(context.Background(), Recipient{Email: "a@example.com"})
	if err := a.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(rec.snapshot()) != 0 {
		t.Fatalf("delivery should have been cut off")
	}
}

func TestLogDispatcher_NeverLogsSecrets(t *testing.T) {
	var buf bytes.Buffer
	d := LogDispatcher{Log: slog.New(slog.NewJSONHandler(&buf, nil))}
	ctx := context.Background()

	_ = d.SendPasswordReset(ctx, Recipient{Email: "a@example.com"}, "https://app/reset?token=SECRET-TOKEN", time.Now())
	_ = d.SendVerificationCode(ctx, "a@example.com", "987654", time.Now())

	out := buf.String()
	if strings.Contains(out, "SECRET-TOKEN") || strings.Contains(out, "987654") {
		t.Fatalf("secret leaked into log: %s", out)
	}
	if !strings.Contains(out, "notify.password_reset") {
		t.Fatalf("missing event: %s", out)
	}
}
