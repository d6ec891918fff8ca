// Package token signs and verifies the access tokens that carry identity
// between the issuer and the gateway. Both operations are pure functions
// over their inputs; the secret is the only shared state.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures. The gateway treats them all as "anonymous" but
// they stay distinct for logging and metrics.
var (
	ErrMalformed        = errors.New("token malformed")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
)

// Claims is the set of facts embedded in a token. Roles travel under the
// "authorities" claim on the wire.
type Claims struct {
	Subject     string
	Authorities []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type wireClaims struct {
	Authorities []string `json:"authorities"`
	jwt.RegisteredClaims
}

var signingMethod = jwt.SigningMethodHS512

// Sign produces a compact signed token for the given claims. It is
// deterministic for identical claims and never fails for a well-formed set.
func Sign(claims Claims, secret []byte) (string, error) {
	wire := wireClaims{
		Authorities: claims.Authorities,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	}

	return jwt.NewWithClaims(signingMethod, wire).SignedString(secret)
}

// Verify checks the token's signature and freshness against the supplied
// clock and returns the embedded claims. The signature is verified before
// any claim value is trusted, so tampering with the payload can never
// smuggle a claim through.
func Verify(tokenString string, secret []byte, now time.Time) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)

	wire := &wireClaims{}
	parsed, err := parser.ParseWithClaims(tokenString, wire, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}
	if !parsed.Valid {
		return Claims{}, ErrSignatureInvalid
	}
	if wire.Subject == "" {
		return Claims{}, ErrMalformed
	}

	claims := Claims{
		Subject:     wire.Subject,
		Authorities: wire.Authorities,
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.Time
	}

	return claims, nil
}

// classify maps jwt/v5 errors onto the local taxonomy. Signature failures
// win over everything else so a tampered token is never reported as merely
// expired.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformed
	}
}
