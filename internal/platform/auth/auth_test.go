package auth

import (
	"strings"
	"testing"
	"time"

	"leadrelay/internal/platform/config"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService(config.AuthConfig{JWTSecret: "s3cret", Issuer: "leadrelay", TokenTTL: time.Hour})

	token, err := svc.GenerateAccessToken("ops@example.com", 0, "sessions")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Operator != "ops@example.com" || claims.Issuer != "leadrelay" {
		t.Errorf("Unexpected claims %+v", claims)
	}
	if len(claims.Scopes) != 1 || claims.Scopes[0] != "sessions" {
		t.Errorf("Unexpected scopes %v", claims.Scopes)
	}
}

func TestTokenService_RejectsExpiredAndForeignTokens(t *testing.T) {
	svc := NewTokenService(config.AuthConfig{JWTSecret: "s3cret", Issuer: "leadrelay", TokenTTL: time.Hour})
	token, err := svc.GenerateAccessToken("ops", time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("Expected expired token to be rejected")
	}

	other := NewTokenService(config.AuthConfig{JWTSecret: "different", Issuer: "leadrelay"})
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("Expected token signed with another secret to be rejected")
	}
}

func TestTokenService_Disabled(t *testing.T) {
	svc := NewTokenService(config.AuthConfig{})
	if svc.Enabled() {
		t.Fatal("Expected disabled service without secret")
	}
	if _, err := svc.GenerateAccessToken("ops", 0); err == nil {
		t.Error("Expected error generating without secret")
	}
}

func TestAPIKeyVerifier(t *testing.T) {
	raw, hash, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}
	if !strings.HasPrefix(raw, apiKeyPrefix) {
		t.Errorf("Expected prefix %s, got %s", apiKeyPrefix, raw)
	}

	v := NewAPIKeyVerifier(hash)
	if !v.Verify(raw) {
		t.Error("Expected generated key to verify")
	}
	if v.Verify(raw + "x") {
		t.Error("Expected altered key to fail")
	}
	if NewAPIKeyVerifier("").Verify(raw) {
		t.Error("Expected disabled verifier to reject everything")
	}
}
