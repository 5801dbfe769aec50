package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Logger is the app-wide logger type (slog).
type Logger = *slog.Logger

const redacted = "[redacted]"

// NewLogger creates the process logger: JSON by default, or the coloured
// text handler when format is "pretty".
func NewLogger(level, format string) *slog.Logger {
	log := newLogger(os.Stdout, level, format, !color.NoColor)
	slog.SetDefault(log)
	return log
}

func newLogger(w io.Writer, level, format string, useColor bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLogLevel(level),
		AddSource:   true,
		ReplaceAttr: redactAttr,
	}

	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "pretty") {
		h = newPrettyHandler(w, opts, useColor)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// sensitiveKey matches attribute keys that may carry credentials.
func sensitiveKey(k string) bool {
	switch strings.ToLower(strings.TrimSpace(k)) {
	case "password", "new_password", "token", "access_token", "refresh_token", "reset_token", "code", "secret", "authorization":
		return true
	default:
		return false
	}
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}
