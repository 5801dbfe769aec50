package autherr

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_UnwrapsToKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		kind error
		is   func(error) bool
	}{
		{err: Authentication("op", "bad"), kind: ErrAuthentication, is: IsAuthentication},
		{err: Token("op", "bad"), kind: ErrToken, is: IsToken},
		{err: SessionRevoked("op"), kind: ErrSessionRevoked, is: IsSessionRevoked},
		{err: Authorization("op", "bad"), kind: ErrAuthorization, is: IsAuthorization},
		{err: Validation("op", "bad"), kind: ErrValidation, is: IsValidation},
	}

	for _, tc := range cases {
		wrapped := fmt.Errorf("outer: %w", tc.err)
		if !errors.Is(wrapped, tc.kind) {
			t.Fatalf("expected %v to match kind %v", wrapped, tc.kind)
		}
		if !tc.is(wrapped) {
			t.Fatalf("helper did not match %v", wrapped)
		}
	}
}

func TestError_KindsAreDistinct(t *testing.T) {
	t.Parallel()

	err := Token("session.Parse", "expired")
	if IsSessionRevoked(err) || IsValidation(err) || IsAuthentication(err) {
		t.Fatalf("token error matched an unrelated kind: %v", err)
	}
}

func TestMessage(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrap: %w", Validation("reset.Complete", "Invalid or expired reset token"))
	if got := Message(err, "fallback"); got != "Invalid or expired reset token" {
		t.Fatalf("Message()=%q", got)
	}
	if got := Message(errors.New("plain"), "fallback"); got != "fallback" {
		t.Fatalf("Message()=%q want fallback", got)
	}
	if got := Message(New("op", ErrToken, ""), "fallback"); got != "fallback" {
		t.Fatalf("Message()=%q want fallback for empty msg", got)
	}
}

func TestError_String(t *testing.T) {
	t.Parallel()

	if got := New("a.B", ErrToken, "").Error(); got != "a.B: invalid_token" {
		t.Fatalf("Error()=%q", got)
	}
	if got := New("a.B", ErrToken, "expired").Error(); got != "a.B: invalid_token: expired" {
		t.Fatalf("Error()=%q", got)
	}
}
