// Package notify sends account notifications: welcome mails, password reset
// links and email verification codes.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Recipient is the addressee of a notification.
type Recipient struct {
	Email string
	Name  string
}

// Dispatcher delivers notifications.
type Dispatcher interface {
	SendWelcome(ctx context.Context, to Recipient) error
	SendPasswordReset(ctx context.Context, to Recipient, resetURL string, expires time.Time) error
	SendVerificationCode(ctx context.Context, email, code string, expires time.Time) error
}

// LogDispatcher records notifications in the log instead of delivering them.
// Reset links and codes are never written out.
type LogDispatcher struct {
	Log *slog.Logger
}

var _ Dispatcher = LogDispatcher{}

func (d LogDispatcher) logger() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

func (d LogDispatcher) SendWelcome(ctx context.Context, to Recipient) error {
	d.logger().InfoContext(ctx, "notify.welcome", "to", to.Email)
	return nil
}

func (d LogDispatcher) SendPasswordReset(ctx context.Context, to Recipient, _ string, expires time.Time) error {
	d.logger().InfoContext(ctx, "notify.password_reset", "to", to.Email, "expires_at", expires)
	return nil
}

func (d LogDispatcher) SendVerificationCode(ctx context.Context, email, _ string, expires time.Time) error {
	d.logger().InfoContext(ctx, "notify.verification_code", "to", email, "expires_at", expires)
	return nil
}
