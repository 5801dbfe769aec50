package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Version = argon2.Version // 0x13

var b64 = base64.RawStdEncoding

// encoded is a parsed PHC string.
type encoded struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (e encoded) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		e.params.MemoryKiB,
		e.params.Iterations,
		e.params.Parallelism,
		b64.EncodeToString(e.salt),
		b64.EncodeToString(e.key),
	)
}

func derive(pw string, salt []byte, p Argon2idParams, keyLen uint32) []byte {
	return argon2.IDKey([]byte(pw), salt, p.Iterations, p.MemoryKiB, p.Parallelism, keyLen)
}

// Hash validates password against the policy and returns its PHC encoding.
func (c Config) Hash(pw string) (string, error) {
	if err := c.Validate(pw); err != nil {
		return "", err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	return encoded{
		params: c.Params,
		salt:   salt,
		key:    derive(pw, salt, c.Params, c.Params.KeyLength),
	}.String(), nil
}

// Verify reports whether pw matches encodedHash.
// A malformed or out-of-bounds hash yields (false, ErrInvalidHash).
func (c Config) Verify(encodedHash, pw string) (bool, error) {
	e, err := parse(encodedHash)
	if err != nil {
		return false, err
	}
	if !c.acceptable(e.params) {
		return false, ErrInvalidHash
	}

	got := derive(pw, e.salt, e.params, uint32(len(e.key))) // #nosec G115 -- key length bounded by acceptable().
	return subtle.ConstantTimeCompare(got, e.key) == 1, nil
}

// NeedsRehash reports whether encodedHash was produced with parameters other
// than the current ones.
func (c Config) NeedsRehash(encodedHash string) bool {
	e, err := parse(encodedHash)
	if err != nil {
		return true
	}
	return e.params != c.Params
}

// acceptable allows hashes made with older, cheaper settings but refuses
// attacker-supplied parameters far above the configured cost.
func (c Config) acceptable(got Argon2idParams) bool {
	lim := c.Params
	return got.MemoryKiB <= lim.MemoryKiB*2 &&
		got.Iterations <= lim.Iterations*2 &&
		got.Parallelism <= lim.Parallelism*2 &&
		got.SaltLength >= 8 && got.SaltLength <= 64 &&
		got.KeyLength >= 16 && got.KeyLength <= 128
}

func parse(s string) (encoded, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return encoded{}, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2Version) {
		return encoded{}, ErrInvalidHash
	}

	var mem, iter, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return encoded{}, ErrInvalidHash
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return encoded{}, ErrInvalidHash
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return encoded{}, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return encoded{}, ErrInvalidHash
	}

	return encoded{
		params: Argon2idParams{
			MemoryKiB:   mem,
			Iterations:  iter,
			Parallelism: uint8(par),
			SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by the encoded string length.
			KeyLength:   uint32(len(key)),  // #nosec G115 -- bounded by the encoded string length.
		},
		salt: salt,
		key:  key,
	}, nil
}
