// Package identity holds user accounts: registration, lookup by email or ID,
// login bookkeeping, email verification and password reset state.
//
// Password hashing lives in cmd/security/password; stores only persist the
// encoded hash they are given.
package identity
