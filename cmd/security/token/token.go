package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"math/big"
	"strings"
)

// DefaultOpaqueBytes is the entropy of reset tokens.
const DefaultOpaqueBytes = 32

// NewOpaque returns nBytes of randomness encoded as unpadded base64url.
func NewOpaque(nBytes int) (string, error) {
	if nBytes < 16 || nBytes > 128 {
		return "", ErrInvalidLength
	}

	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewNumericCode returns a uniformly random code of exactly digits decimal
// digits with no leading zero (e.g. 100000..999999 for six digits).
func NewNumericCode(digits int) (string, error) {
	if digits < 4 || digits > 12 {
		return "", ErrInvalidLength
	}

	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Sub(new(big.Int).Mul(lo, big.NewInt(10)), lo)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	return n.Add(n, lo).String(), nil
}

// Equal compares two secrets in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// LooksOpaque reports whether s is plausibly a token produced by NewOpaque.
// It bounds input size before any store lookup.
func LooksOpaque(s string) bool {
	if len(s) < 16 || len(s) > 256 {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_')
	}) < 0
}
