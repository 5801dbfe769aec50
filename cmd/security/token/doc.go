// Package token generates the random secrets handed out by the account flows:
// opaque URL-safe tokens (password reset links) and short numeric codes
// (email verification).
//
// All randomness comes from crypto/rand.
package token
