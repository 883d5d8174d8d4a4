// Package auth verifies the identity credential presented at connect time.
// Credentials are HMAC-signed JWTs issued by the account service; this
// package only verifies them and extracts the user identity. Token issuance
// is not handled here.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any credential that fails verification:
// bad signature, wrong algorithm, expired, or missing the user id claim.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the JWT claim set carried by identity credentials.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Verifier validates identity credentials against a shared HMAC secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a credential string and returns the user id it
// was issued for. Only HS256 signatures are accepted.
func (v *Verifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
