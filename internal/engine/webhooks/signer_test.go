package webhooks

import (
	"strings"
	"testing"
)

func TestSign(t *testing.T) {
	secret := "secret"
	payload := []byte("payload")

	// Calculated using: echo -n "payload" | openssl dgst -sha256 -hmac "secret"
	expected := "b82fcb791acec57859b989b430a826488ce2e479fdf92326bd0a2e8375a42ba4"

	got := Sign(secret, payload)

	if got != expected {
		t.Errorf("Sign() = %v, want %v", got, expected)
	}
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"type":"sync"}`)
	sig := Sign("secret", payload)

	tests := []struct {
		name      string
		secret    string
		signature string
		want      bool
	}{
		{"Valid", "secret", sig, true},
		{"Upper case hex", "secret", strings.ToUpper(sig), true},
		{"Wrong secret", "other", sig, false},
		{"Not hex", "secret", "zz", false},
		{"Empty", "secret", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(tt.secret, payload, tt.signature); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}
