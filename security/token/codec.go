// Package token issues and verifies HS256-signed session tokens.
//
// A token is the compact JWS form header.payload.signature, each segment
// base64url without padding. The payload carries only sub, iat and exp.
// Verification checks the signature before any part of the payload is
// decoded, so a forged or altered token is reported as ErrBadSignature
// regardless of what its payload claims.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinKeyBytes is the shortest accepted signing key (256 bits).
const MinKeyBytes = 32

var (
	// ErrMalformed means the token is not a well-formed HS256 JWT with the required claims.
	ErrMalformed = errors.New("token malformed")

	// ErrBadSignature means the signature does not match the signed segments.
	ErrBadSignature = errors.New("token signature invalid")

	// ErrExpired means the signature is valid but the token is past its expiry.
	ErrExpired = errors.New("token expired")
)

var method = jwt.SigningMethodHS256

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec signs and verifies tokens with a single symmetric key.
// It is immutable after construction and safe for concurrent use.
type Codec struct {
	key []byte
}

// NewCodec creates a codec over a copy of key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) < MinKeyBytes {
		return nil, fmt.Errorf("signing key must be at least %d bytes, got %d", MinKeyBytes, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Codec{key: k}, nil
}

// Issue signs a token for subject valid from now until now+ttl.
// Times are carried at second precision.
func (c *Codec) Issue(subject string, now time.Time, ttl time.Duration) (string, *Claims, error) {
	if subject == "" {
		return "", nil, errors.New("token subject is required")
	}
	if ttl <= 0 {
		return "", nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	iat := jwt.NewNumericDate(now)
	exp := jwt.NewNumericDate(now.Add(ttl))
	if !exp.After(iat.Time) {
		return "", nil, fmt.Errorf("token ttl %s is below one second", ttl)
	}

	signed, err := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}).SignedString(c.key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, &Claims{Subject: subject, IssuedAt: iat.Time, ExpiresAt: exp.Time}, nil
}

// Verify checks raw against the key and the clock reading now.
// It returns exactly one of ErrMalformed, ErrBadSignature or ErrExpired on failure.
func (c *Codec) Verify(raw string, now time.Time) (*Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, ErrMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
	)

	sig, err := parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, ErrMalformed
	}
	if err := method.Verify(parts[0]+"."+parts[1], sig, c.key); err != nil {
		return nil, ErrBadSignature
	}

	var rc jwt.RegisteredClaims
	_, err = parser.ParseWithClaims(raw, &rc, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case err != nil:
		return nil, ErrMalformed
	}

	if rc.Subject == "" || rc.IssuedAt == nil || !rc.ExpiresAt.After(rc.IssuedAt.Time) {
		return nil, ErrMalformed
	}

	return &Claims{
		Subject:   rc.Subject,
		IssuedAt:  rc.IssuedAt.Time,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}
