// Package autherr defines the error taxonomy shared by the credential and
// session subsystem and the HTTP layer that reports it.
//
// Every failure surfaced to clients is one of five kinds. Callers test kinds
// with errors.Is and extract detail with errors.As on *Error.
package autherr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (stable for errors.Is and for mapping to HTTP status codes).
var (
	// ErrAuthentication covers bad credentials and inactive accounts.
	ErrAuthentication = errors.New("authentication_failed")
	// ErrToken covers bad signatures, wrong credential type and expiry.
	ErrToken = errors.New("invalid_token")
	// ErrSessionRevoked is a structurally valid access credential whose subject has no live session.
	ErrSessionRevoked = errors.New("session_revoked")
	// ErrAuthorization is a failed role check.
	ErrAuthorization = errors.New("forbidden")
	// ErrValidation covers malformed input and invalid or expired reset tokens.
	ErrValidation = errors.New("validation_failed")
)

// Error is a typed operation error with a stable Op + Kind contract.
// Msg is safe to show to clients; never put secrets in it.
type Error struct {
	Op   string
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// New builds an *Error of the given kind.
func New(op string, kind error, msg string) error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// Authentication returns an ErrAuthentication failure.
func Authentication(op, msg string) error { return New(op, ErrAuthentication, msg) }

// Token returns an ErrToken failure.
func Token(op, msg string) error { return New(op, ErrToken, msg) }

// SessionRevoked returns an ErrSessionRevoked failure.
func SessionRevoked(op string) error { return New(op, ErrSessionRevoked, "session revoked") }

// Authorization returns an ErrAuthorization failure.
func Authorization(op, msg string) error { return New(op, ErrAuthorization, msg) }

// Validation returns an ErrValidation failure.
func Validation(op, msg string) error { return New(op, ErrValidation, msg) }

// Message returns the client-facing message carried by err, or fallback when
// err is not an *Error or carries no message.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return fallback
}

// IsAuthentication reports whether err represents ErrAuthentication.
func IsAuthentication(err error) bool { return errors.Is(err, ErrAuthentication) }

// IsToken reports whether err represents ErrToken.
func IsToken(err error) bool { return errors.Is(err, ErrToken) }

// IsSessionRevoked reports whether err represents ErrSessionRevoked.
func IsSessionRevoked(err error) bool { return errors.Is(err, ErrSessionRevoked) }

// IsAuthorization reports whether err represents ErrAuthorization.
func IsAuthorization(err error) bool { return errors.Is(err, ErrAuthorization) }

// IsValidation reports whether err represents ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
