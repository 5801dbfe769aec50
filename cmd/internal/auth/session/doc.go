// Package session implements credential issuance and the multi-device session
// lifecycle.
//
// Access and refresh credentials are compact HMAC-signed JWTs carrying
// {sub, type, exp}. Access credentials are never persisted: they are honoured
// only while their subject still has at least one live session, so revoking
// sessions invalidates outstanding access credentials immediately.
//
// Every refresh credential is backed by one session row. Refresh rotates: the
// presented session is revoked and a new one is admitted in the same
// transaction, so a replayed refresh credential always fails. Admission
// enforces a per-user cap on live sessions by evicting the least recently
// active one. Admission and rotation serialise per user.
package session
