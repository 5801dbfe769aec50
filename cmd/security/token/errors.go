package token

import "errors"

// Public, stable errors for callers.
var (
	ErrInvalidLength = errors.New("token: invalid length")
)
