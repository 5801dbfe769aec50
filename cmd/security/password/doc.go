// Package password hashes and verifies account passwords.
//
// Hashes use Argon2id in the PHC string format
// ($argon2id$v=19$m=..,t=..,p=..$salt$key). Encoded hashes are treated as
// untrusted input during verification and rejected when their cost parameters
// exceed the configured bounds.
package password
