package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry decodes the exp claim of a JWT without verifying the
// signature; the backend is the verifier, the client only needs the
// embedded expiry for refresh scheduling.
func tokenExpiry(token string) (time.Time, error) {
	parser := jwt.NewParser()
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, jwt.ErrTokenInvalidClaims
	}

	return exp.Time, nil
}

// IsTokenExpired reports whether the token's embedded expiry has passed.
// A token that cannot be decoded, or that carries no exp claim, is
// treated as expired: the check fails closed.
func IsTokenExpired(token string) bool {
	if token == "" {
		return true
	}

	exp, err := tokenExpiry(token)
	if err != nil {
		return true
	}

	return exp.Before(time.Now())
}
