package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SendTimeout bounds a single background delivery.
const SendTimeout = 10 * time.Second

// Async hands every notification to a detached goroutine and returns at once.
// Delivery failures are logged and never reach the caller. Request
// cancellation does not abort an in-flight delivery.
type Async struct {
	next    Dispatcher
	log     *slog.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

var _ Dispatcher = (*Async)(nil)

// NewAsync wraps next. A nil logger uses slog.Default().
func NewAsync(next Dispatcher, log *slog.Logger) *Async {
	if log == nil {
		log = slog.Default()
	}
	return &Async{next: next, log: log, timeout: SendTimeout}
}

func (a *Async) SendWelcome(_ context.Context, to Recipient) error {
	a.dispatch("welcome", to.Email, func(ctx context.Context) error {
		return a.next.SendWelcome(ctx, to)
	})
	return nil
}

func (a *Async) SendPasswordReset(_ context.Context, to Recipient, resetURL string, expires time.Time) error {
	a.dispatch("password_reset", to.Email, func(ctx context.Context) error {
		return a.next.SendPasswordReset(ctx, to, resetURL, expires)
	})
	return nil
}

func (a *Async) SendVerificationCode(_ context.Context, email, code string, expires time.Time) error {
	a.dispatch("verification_code", email, func(ctx context.Context) error {
		return a.next.SendVerificationCode(ctx, email, code, expires)
	})
	return nil
}

// Wait blocks until every dispatched notification has finished or ctx is done.
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) dispatch(kind, to string, send func(ctx context.Context) error) {
	if a == nil || a.next == nil {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("notify.async.panic", "kind", kind, "to", to, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := send(ctx); err != nil {
			a.log.Warn("notify.async.fail", "kind", kind, "to", to, "err", err)
		}
	}()
}
