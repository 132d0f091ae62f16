package auth

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const apiKeyPrefix = "lr_live_"

// GenerateAPIKey returns a new raw key and its bcrypt hash. Only the hash is
// meant to be stored in configuration.
func GenerateAPIKey() (raw, hash string, err error) {
	raw = apiKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	hashed, err := HashAPIKey(raw)
	if err != nil {
		return "", "", err
	}
	return raw, hashed, nil
}

func HashAPIKey(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("api key is empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(hashed), nil
}

// APIKeyVerifier checks presented keys against one configured bcrypt hash.
type APIKeyVerifier struct {
	hash []byte
}

func NewAPIKeyVerifier(hash string) *APIKeyVerifier {
	return &APIKeyVerifier{hash: []byte(strings.TrimSpace(hash))}
}

func (v *APIKeyVerifier) Enabled() bool {
	return v != nil && len(v.hash) > 0
}

func (v *APIKeyVerifier) Verify(raw string) bool {
	if !v.Enabled() || raw == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(raw)) == nil
}
