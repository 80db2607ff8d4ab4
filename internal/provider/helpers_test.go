package provider_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tournevent/integrations/internal/audit"
	"github.com/tournevent/integrations/internal/store"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/secret"
	"github.com/tournevent/integrations/pkg/shipper"
	"github.com/tournevent/integrations/pkg/shipper/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var testMasterKey = strings.Repeat("5a", 32)

func newCipher(t *testing.T) *secret.Cipher {
	t.Helper()
	c, err := secret.NewCipher(testMasterKey, nil)
	require.NoError(t, err)
	return c
}

// staticSource serves fixed rows in the order given.
type staticSource []store.IntegrationConfig

func (s staticSource) List(_ context.Context, category store.Category) ([]store.IntegrationConfig, error) {
	var out []store.IntegrationConfig
	for _, row := range s {
		if row.Category == category {
			out = append(out, row)
		}
	}
	return out, nil
}

func row(t *testing.T, c *secret.Cipher, category store.Category, provider string, active bool, priority int) store.IntegrationConfig {
	t.Helper()
	blob, err := c.EncryptJSON(map[string]any{"apiKey": provider + "-key"})
	require.NoError(t, err)
	return store.IntegrationConfig{
		ID:          provider + "-id",
		Category:    category,
		Provider:    provider,
		IsActive:    active,
		Priority:    priority,
		Credentials: blob,
	}
}

// carriers returns a registry whose constructors hand out the given mocks.
func carriers(mocks ...shipper.Carrier) *shipper.Registry {
	ctors := map[string]shipper.Constructor{}
	for _, m := range mocks {
		ctors[m.Name()] = func(integration.ProviderConfig, *otelzap.Logger, trace.Tracer) shipper.Carrier { return m }
	}
	return shipper.NewRegistry(ctors)
}

func nopLogger() *otelzap.Logger {
	return otelzap.New(zap.NewNop())
}

type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *recordingSink) Write(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Provider + ":" + e.Action
	}
	return out
}

// unmappedCarrier reports every shipment with a vendor code it could not map.
type unmappedCarrier struct {
	*mock.Client
}

func (c unmappedCarrier) TrackShipment(_ context.Context, number string) (*shipper.TrackingResponse, error) {
	return &shipper.TrackingResponse{
		Provider:       c.Name(),
		TrackingNumber: number,
		Status:         shipper.StatusInTransit,
		VendorStatus:   "CUSTOMS HOLD 7",
		Unmapped:       true,
	}, nil
}

// panickingCarrier blows up on every rate request.
type panickingCarrier struct {
	*mock.Client
}

func (c panickingCarrier) GetRates(context.Context, *shipper.RateRequest) ([]shipper.Rate, error) {
	panic("nil rate table")
}
