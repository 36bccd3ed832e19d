package handlers

import (
	"testing"
	"time"

	"github.com/almatopete/clinica-backend/libs/auth"
)

func TestPasswordHashing(t *testing.T) {
	password := "correct-horse"
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := verifyPassword(hash, password); err != nil {
		t.Fatalf("verifyPassword should succeed: %v", err)
	}
	if err := verifyPassword(hash, "wrong-pass"); err == nil {
		t.Fatal("verifyPassword should fail for wrong password")
	}
}

func TestHS256SignerRoundTrip(t *testing.T) {
	signer := NewHS256Signer("test-secret")
	now := time.Now()
	token, err := signer.Sign(auth.Claims{
		Sub:   "user-1",
		Name:  "Ana Gomez",
		Email: "ana@example.com",
		Role:  "PATIENT",
		Iat:   now.Unix(),
		Exp:   now.Add(7 * 24 * time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Sub != "user-1" || claims.Role != "PATIENT" || claims.Email != "ana@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if signer.JWKS() != nil {
		t.Fatal("hs256 signer should not publish a jwks")
	}
}
