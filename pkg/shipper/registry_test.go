package shipper_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/shipper"
	"github.com/tournevent/integrations/pkg/shipper/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func TestRegistry_Build(t *testing.T) {
	registry := shipper.NewRegistry(map[string]shipper.Constructor{
		"mock": mock.FromProviderConfig,
	})

	carrier, err := registry.Build(integration.ProviderConfig{Provider: "mock"}, otelzap.New(zap.NewNop()), nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", carrier.Name())
}

func TestRegistry_Build_Unsupported(t *testing.T) {
	registry := shipper.NewRegistry(nil)

	_, err := registry.Build(integration.ProviderConfig{Provider: "pigeon"}, nil, nil)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, integration.ErrNotFound))
}

func TestRegistry_Register_Override(t *testing.T) {
	registry := shipper.NewRegistry(map[string]shipper.Constructor{"mock": mock.FromProviderConfig})
	assert.Equal(t, 1, registry.Count())

	registry.Register("mock", mock.FromProviderConfig)
	assert.Equal(t, 1, registry.Count())

	registry.Register("other", mock.FromProviderConfig)
	assert.Equal(t, 2, registry.Count())
	assert.True(t, registry.Supports("other"))
	assert.False(t, registry.Supports("pigeon"))
}

func TestRegistry_Names_Sorted(t *testing.T) {
	registry := shipper.NewRegistry(map[string]shipper.Constructor{
		"royalmail": mock.FromProviderConfig,
		"dhl":       mock.FromProviderConfig,
		"fedex":     mock.FromProviderConfig,
	})

	assert.Equal(t, []string{"dhl", "fedex", "royalmail"}, registry.Names())
}
