/*
Package jwt verifies access tokens issued by the external token-signing
authority. The authority and this gateway share a pre-shared secret and a
single fixed signing algorithm (HS256); any token that deviates is invalid.

Verification never panics or returns partial identities: callers treat a
non-nil error as "connection stays unauthenticated", not as a fatal failure.
*/
package jwt

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

// ErrInvalidToken is returned for any verification failure: bad signature,
// unexpected algorithm, expiry, or malformed identity claims.
var ErrInvalidToken = errors.New("invalid or expired token")

// VerifyToken parses and validates a token string using the shared secret and
// extracts the Identity encoded in the `sub` claim.
func VerifyToken(tokenString string, secretKey string) (*Identity, error) {
	claims := &jwt.StandardClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	var identity Identity
	if err := json.Unmarshal([]byte(claims.Subject), &identity); err != nil {
		return nil, ErrInvalidToken
	}

	if identity.ID == "" {
		return nil, ErrInvalidToken
	}

	return &identity, nil
}

// GenerateToken creates and signs a token string carrying the given Identity,
// mirroring the authority's format. Used by tests and operational tooling.
func GenerateToken(identity *Identity, secretKey string, duration time.Duration) (string, error) {
	subject, err := json.Marshal(identity)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.StandardClaims{
		Subject:   string(subject),
		ExpiresAt: now.Add(duration).Unix(),
		IssuedAt:  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(secretKey))
}
