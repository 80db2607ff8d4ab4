package secret_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/integrations/pkg/secret"
)

func TestMaskSecret(t *testing.T) {
	masked := secret.MaskSecret("sk_live_abcdef1234", 4)

	assert.True(t, strings.HasSuffix(masked, "1234"))
	assert.Equal(t, strings.Repeat("*", 14), strings.TrimSuffix(masked, "1234"))
	assert.Len(t, masked, len("sk_live_abcdef1234"))
}

func TestMaskSecret_Short(t *testing.T) {
	assert.Equal(t, "***", secret.MaskSecret("abc", 4))
	assert.Equal(t, "", secret.MaskSecret("", 4))
	assert.Equal(t, "**cd", secret.MaskSecret("abcd", 2))
}

func TestMaskSecret_DefaultVisible(t *testing.T) {
	assert.Equal(t, "****5678", secret.MaskSecret("12345678", 0))
}

func TestMaskCredentials(t *testing.T) {
	creds := map[string]any{
		"clientId":     "public-id",
		"clientSecret": "super-secret-value",
		"apiKey":       "key_abcdefgh",
		"retries":      float64(3),
		"oauth": map[string]any{
			"accessToken": "tok_1234567890",
			"region":      "eu",
		},
	}

	masked := secret.MaskCredentials(creds)

	assert.Equal(t, "public-id", masked["clientId"])
	assert.Equal(t, "**************alue", masked["clientSecret"])
	assert.Equal(t, "********efgh", masked["apiKey"])
	assert.Equal(t, float64(3), masked["retries"])

	nested, ok := masked["oauth"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "**********7890", nested["accessToken"])
	assert.Equal(t, "eu", nested["region"])

	assert.Equal(t, "super-secret-value", creds["clientSecret"], "input must not be mutated")
}

func TestIsSecretKey(t *testing.T) {
	for _, k := range []string{"password", "ClientSecret", "api_key", "licenseKey", "PRIVATE_KEY", "webhookSignature"} {
		assert.True(t, secret.IsSecretKey(k), k)
	}
	for _, k := range []string{"clientId", "accountNumber", "region"} {
		assert.False(t, secret.IsSecretKey(k), k)
	}
}
