package integration_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/integrations/pkg/integration"
)

func TestError_Error(t *testing.T) {
	err := integration.NewError("fedex", integration.KindUpstream, "Invalid postal code").WithCode("INVALID_ADDRESS")
	assert.Equal(t, "fedex upstream error (INVALID_ADDRESS): Invalid postal code", err.Error())
}

func TestError_ErrorWithCause(t *testing.T) {
	cause := errors.New("network timeout")
	err := integration.NewError("fedex", integration.KindUpstream, "API call failed").WithCause(cause)
	assert.Contains(t, err.Error(), "API call failed")
	assert.Contains(t, err.Error(), "network timeout")
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("network timeout")
	err := integration.NewError("fedex", integration.KindUpstream, "API call failed").WithCause(cause)
	assert.True(t, errors.Is(err, cause))
}

func TestError_IsMatchesKind(t *testing.T) {
	err := integration.NewError("royalmail", integration.KindAuthentication, "bad client secret")

	assert.True(t, errors.Is(err, integration.ErrAuthentication))
	assert.False(t, errors.Is(err, integration.ErrUpstream))
}

func TestError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("loading rates: %w", integration.NotConfigured("dhl", "clientId"))
	assert.True(t, errors.Is(err, integration.ErrNotConfigured))
}

func TestError_IsRequiresCodeWhenTargetHasOne(t *testing.T) {
	err1 := integration.NewError("fedex", integration.KindUpstream, "x").WithCode("RATE_LIMIT")
	err2 := integration.NewError("dhl", integration.KindUpstream, "y").WithCode("RATE_LIMIT")
	err3 := integration.NewError("dhl", integration.KindUpstream, "z").WithCode("OTHER")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestError_WithStatusCode(t *testing.T) {
	err := integration.NewError("fedex", integration.KindAuthentication, "Unauthorized").WithStatusCode(401)
	assert.Equal(t, 401, err.StatusCode)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, integration.IsRetryable(integration.NewError("fedex", integration.KindUpstream, "busy").WithRetryable(true)))
	assert.False(t, integration.IsRetryable(integration.NewError("fedex", integration.KindValidation, "bad")))
	assert.False(t, integration.IsRetryable(errors.New("plain")))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, integration.KindValidation, integration.KindOf(integration.Validation("dhl", "bad %s", "weight")))
	assert.Equal(t, integration.KindUpstream, integration.KindOf(errors.New("plain")))
}
