package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims is the subset of a SESSION_TOKEN's JWT claims the
// authenticator inspects opportunistically to recover an expiry
// without a round-trip to the exchange. Grounded on the teacher's
// golang-jwt/jwt usage (internal/auth/jwt_test.go); standardized on
// v5, the actively maintained major the teacher also depends on (see
// DESIGN.md "Dropped teacher dependencies" for golang-jwt/jwt/v4).
type sessionClaims struct {
	expiry time.Time
}

// parseSessionClaims parses tokenString's claims without verifying its
// signature: the session token was already issued by the exchange
// over a trusted TLS channel, so this call only recovers the expiry
// for local bookkeeping, not a second authentication.
func parseSessionClaims(tokenString string) (sessionClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	_, _, err := parser.ParseUnverified(tokenString, claims)
	if err != nil {
		return sessionClaims{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return sessionClaims{expiry: time.Now().Add(8 * time.Hour)}, nil
	}
	return sessionClaims{expiry: exp.Time}, nil
}
