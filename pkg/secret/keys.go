package secret

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"
	"golang.org/x/crypto/bcrypt"
)

const (
	webhookSecretPrefix = "whsec_"
	apiKeyLength        = 32
)

// Hash returns a bcrypt hash of value for one-way storage.
func Hash(value string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing value: %w", err)
	}
	return string(h), nil
}

// VerifyHash reports whether value matches a hash produced by Hash.
func VerifyHash(value, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(value)) == nil
}

// GenerateWebhookSecret returns a random signing secret for inbound webhooks.
func GenerateWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating webhook secret: %w", err)
	}
	return webhookSecretPrefix + hex.EncodeToString(buf), nil
}

// GenerateAPIKey returns prefix_<32 url-safe random characters>.
func GenerateAPIKey(prefix string) (string, error) {
	gen, err := nanoid.Standard(apiKeyLength)
	if err != nil {
		return "", fmt.Errorf("creating api key generator: %w", err)
	}
	if prefix == "" {
		return gen(), nil
	}
	return prefix + "_" + gen(), nil
}

// GenerateMasterKey returns a fresh 64 hex character master key.
func GenerateMasterKey() (string, error) {
	buf := make([]byte, keyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating master key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
