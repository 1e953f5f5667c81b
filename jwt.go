package main

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec-level failure kinds. Callers classify decode outcomes with errors.Is
// instead of matching on error text.
var (
	ErrTokenMalformed   = errors.New("token is malformed")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenUnsupported = errors.New("token is unsupported")
	ErrTokenSignature   = errors.New("token signature is invalid")
)

// TokenClaims is the claim set embedded in every issued token. Role is a
// single flat string with no authorization-framework prefix; prefixing happens
// at the authorization boundary, never here.
type TokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec produces and parses HS256-signed tokens carrying subject, role,
// issued-at and expiry. It performs no I/O.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func NewTokenCodec(secret []byte, ttl time.Duration, issuer string) *TokenCodec {
	return &TokenCodec{secret: secret, ttl: ttl, issuer: issuer}
}

// TTL returns the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Encode signs a new token for subject with the given role.
func (c *TokenCodec) Encode(subject, role string) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode verifies the signature and returns the claim set. An expired token
// still returns its claims alongside ErrTokenExpired so callers can tell
// "was valid, now lapsed" apart from "never valid".
func (c *TokenCodec) Decode(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return claims, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, ErrTokenUnsupported
	default:
		return nil, ErrTokenMalformed
	}
}

// IsValid reports whether tokenString decodes, verifies, belongs to
// expectedSubject and has not expired. The subject equality check guards
// against a caller presenting a structurally valid token under the wrong
// identity.
func (c *TokenCodec) IsValid(tokenString, expectedSubject string) bool {
	claims, err := c.Decode(tokenString)
	if err != nil {
		return false
	}
	if claims.Subject != expectedSubject {
		return false
	}
	return claims.ExpiresAt != nil && time.Now().Before(claims.ExpiresAt.Time)
}
