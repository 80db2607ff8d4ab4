package integration_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/integrations/pkg/integration"
)

func TestValidateShippingParties(t *testing.T) {
	valid := integration.Address{Phone: "+44 20 7946 0958"}

	tests := []struct {
		name      string
		sender    integration.Address
		recipient integration.Address
		wantMsg   string
	}{
		{"both valid", valid, valid, ""},
		{"sender missing", integration.Address{}, valid, "sender phone number is required"},
		{"recipient missing", valid, integration.Address{Phone: "  "}, "recipient phone number is required"},
		{"recipient too short", valid, integration.Address{Phone: "12-34"}, "recipient phone number must contain at least 7 digits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := integration.ValidateShippingParties("royalmail", tt.sender, tt.recipient)
			if tt.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, integration.ErrValidation))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "+442079460958", integration.DigitsOnly(" +44 (20) 7946-0958 "))
	assert.Equal(t, "4165551234", integration.DigitsOnly("416-555-1234"))
}

func TestValues_String(t *testing.T) {
	v := integration.Values{
		"clientId":      "  abc ",
		"accountNumber": float64(740561073),
		"empty":         "",
	}

	assert.Equal(t, "abc", v.String("clientId"))
	assert.Equal(t, "740561073", v.String("accountNumber"))
	assert.Equal(t, "abc", v.String("empty", "clientId"))
	assert.Equal(t, "", v.String("missing"))
	assert.Equal(t, []string{"empty", "missing"}, v.Missing("clientId", "empty", "missing"))
}

func TestProviderConfig_BaseURL(t *testing.T) {
	cfg := integration.ProviderConfig{TestMode: true}
	assert.Equal(t, "https://sandbox", cfg.BaseURL("https://prod", "https://sandbox"))

	cfg.TestMode = false
	assert.Equal(t, "https://prod", cfg.BaseURL("https://prod", "https://sandbox"))

	cfg.Settings = integration.Values{"baseUrl": "http://localhost:9000/"}
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL("https://prod", "https://sandbox"))
}
