package session

import (
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/autherr"
)

// TokenType distinguishes access from refresh credentials.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// maxTokenLen bounds input before any parsing work.
const maxTokenLen = 4096

// Claims is the signed credential payload: {sub, type, exp} plus iat and jti.
// The jti makes two refresh credentials minted for the same subject in the
// same second distinct.
type Claims struct {
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies credentials. It performs no I/O.
type Issuer struct {
	secret     []byte
	method     *jwt.SigningMethodHMAC
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer builds an Issuer from a validated Config.
func NewIssuer(cfg Config) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	return &Issuer{
		secret:     []byte(cfg.Secret),
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

// IssueAccess signs {sub: subject, type: "access", exp: now + access ttl}.
func (i *Issuer) IssueAccess(subject string, now time.Time) (string, time.Time, error) {
	return i.issue(subject, TypeAccess, now, i.accessTTL)
}

// IssueRefresh signs {sub: subject, type: "refresh", exp: now + refresh ttl}.
func (i *Issuer) IssueRefresh(subject string, now time.Time) (string, time.Time, error) {
	return i.issue(subject, TypeRefresh, now, i.refreshTTL)
}

func (i *Issuer) issue(subject string, typ TokenType, now time.Time, ttl time.Duration) (string, time.Time, error) {
	jti, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", time.Time{}, err
	}

	// exp is stored with the session, so keep it at the claim's precision.
	exp := now.Add(ttl).Truncate(jwt.TimePrecision)
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti.String(),
		},
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies signature, algorithm, exp > now and type == want.
// Every failure is an autherr.ErrToken.
func (i *Issuer) Parse(tokenStr string, now time.Time, want TokenType) (Claims, error) {
	const op = "session.Parse"

	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" || len(tokenStr) > maxTokenLen {
		return Claims{}, autherr.Token(op, "malformed token")
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, autherr.Token(op, "token expired")
		}
		return Claims{}, autherr.Token(op, "invalid token")
	}
	if claims.Type != want {
		return Claims{}, autherr.Token(op, "wrong token type")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, autherr.Token(op, "missing subject")
	}
	return claims, nil
}
