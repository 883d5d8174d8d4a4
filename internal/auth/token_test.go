package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, userID string, expiry time.Duration) string {
	t.Helper()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestVerify_ValidToken(t *testing.T) {
	v := NewVerifier("test-secret")
	token := signToken(t, "test-secret", "user-42", time.Hour)

	userID, err := v.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("expected user-42, got %q", userID)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	v := NewVerifier("right-secret")
	token := signToken(t, "wrong-secret", "user-42", time.Hour)

	_, err := v.Verify(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	v := NewVerifier("test-secret")
	token := signToken(t, "test-secret", "user-42", -time.Minute)

	_, err := v.Verify(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_EmptyToken(t *testing.T) {
	v := NewVerifier("test-secret")
	if _, err := v.Verify(""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_MissingUserID(t *testing.T) {
	v := NewVerifier("test-secret")
	token := signToken(t, "test-secret", "", time.Hour)

	_, err := v.Verify(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
