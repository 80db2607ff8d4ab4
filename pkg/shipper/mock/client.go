// Package mock provides a deterministic in-process carrier for tests and
// for integrations configured with the "mock" provider id.
package mock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
)

// Client is a mock carrier. Exported fields shape its behaviour.
type Client struct {
	name string

	Configured bool
	// Rates replaces the two default rates when non-nil.
	Rates []shipper.Rate
	// Err is returned by every domain operation when set.
	Err error
	// TrackingStatus is reported by TrackShipment (default IN_TRANSIT).
	TrackingStatus shipper.TrackingStatus
	// Latency delays every call; context cancellation is honoured.
	Latency time.Duration

	calls atomic.Int64
}

// New creates a new mock carrier.
func New(name string) *Client {
	return &Client{name: name, Configured: true, TrackingStatus: shipper.StatusInTransit}
}

// FromProviderConfig satisfies shipper.Constructor.
func FromProviderConfig(cfg integration.ProviderConfig, _ *otelzap.Logger, _ trace.Tracer) shipper.Carrier {
	return New(cfg.Provider)
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.name
}

// IsConfigured reports the Configured flag.
func (c *Client) IsConfigured() bool {
	return c.Configured
}

// Calls returns how many domain operations were invoked.
func (c *Client) Calls() int64 {
	return c.calls.Load()
}

// TestConnection succeeds unless Err is set.
func (c *Client) TestConnection(ctx context.Context) integration.ConnectionResult {
	return integration.RunConnectionTest(ctx, c.name, func(ctx context.Context) (map[string]any, error) {
		if err := c.begin(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"mock": true}, nil
	})
}

// GetRates returns Rates or a standard and an express option.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest) ([]shipper.Rate, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	if c.Rates != nil {
		out := make([]shipper.Rate, len(c.Rates))
		copy(out, c.Rates)
		for i := range out {
			if out[i].Provider == "" {
				out[i].Provider = c.name
			}
		}
		return out, nil
	}

	return []shipper.Rate{
		{
			Provider:    c.name,
			RateID:      c.name + "-standard",
			ServiceCode: "STANDARD",
			ServiceName: c.name + " Standard",
			ServiceType: shipper.ServiceStandard,
			BaseRate:    shipper.NewMoney(12.50, "GBP"),
			Surcharges:  shipper.NewMoney(1.50, "GBP"),
			TotalPrice:  shipper.NewMoney(14.00, "GBP"),
			TransitDays: 3,
		},
		{
			Provider:    c.name,
			RateID:      c.name + "-express",
			ServiceCode: "EXPRESS",
			ServiceName: c.name + " Express",
			ServiceType: shipper.ServiceExpress,
			BaseRate:    shipper.NewMoney(22.00, "GBP"),
			Surcharges:  shipper.NewMoney(2.50, "GBP"),
			TotalPrice:  shipper.NewMoney(24.50, "GBP"),
			TransitDays: 1,
			Guaranteed:  true,
		},
	}, nil
}

// CreateShipment books a mock shipment.
func (c *Client) CreateShipment(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.ShipmentResponse, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	if err := integration.ValidateShippingParties(c.name, req.Sender, req.Recipient); err != nil {
		return nil, err
	}

	n := c.calls.Load()
	trackingNumber := fmt.Sprintf("MOCK%010d", n)
	return &shipper.ShipmentResponse{
		Provider:       c.name,
		ShipmentID:     fmt.Sprintf("%s-shp-%d", c.name, n),
		TrackingNumber: trackingNumber,
		TrackingURL:    fmt.Sprintf("https://track.%s.mock/%s", c.name, trackingNumber),
		ServiceCode:    req.ServiceCode,
		TotalCharged:   shipper.NewMoney(14.00, "GBP"),
		LabelFormat:    shipper.LabelPDF,
		LabelURL:       fmt.Sprintf("https://labels.%s.mock/%s.pdf", c.name, trackingNumber),
	}, nil
}

// TrackShipment reports TrackingStatus.
func (c *Client) TrackShipment(ctx context.Context, trackingNumber string) (*shipper.TrackingResponse, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	return &shipper.TrackingResponse{
		Provider:       c.name,
		TrackingNumber: trackingNumber,
		Status:         c.TrackingStatus,
		VendorStatus:   string(c.TrackingStatus),
	}, nil
}

// CancelShipment cancels a mock shipment.
func (c *Client) CancelShipment(ctx context.Context, shipmentID string) (*shipper.CancelResponse, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	return &shipper.CancelResponse{Provider: c.name, ShipmentID: shipmentID, Cancelled: true}, nil
}

// ValidateAddress accepts any address with a postal code and country.
func (c *Client) ValidateAddress(ctx context.Context, addr integration.Address) (*integration.AddressValidationResult, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	if addr.PostalCode == "" || addr.CountryCode == "" {
		return &integration.AddressValidationResult{
			Valid:    false,
			Messages: []string{"postal code and country are required"},
		}, nil
	}
	return &integration.AddressValidationResult{Valid: true, Normalized: &addr}, nil
}

// SchedulePickup books a mock collection.
func (c *Client) SchedulePickup(ctx context.Context, req *shipper.PickupRequest) (*shipper.PickupResponse, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	return &shipper.PickupResponse{
		Provider:           c.name,
		ConfirmationNumber: fmt.Sprintf("PU-%s-%d", c.name, c.calls.Load()),
		PickupDate:         req.ReadyTime,
	}, nil
}

// AvailableServices lists the two mock services.
func (c *Client) AvailableServices(ctx context.Context) ([]shipper.Service, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	return []shipper.Service{
		{Code: "STANDARD", Name: c.name + " Standard", Type: shipper.ServiceStandard, Domestic: true},
		{Code: "EXPRESS", Name: c.name + " Express", Type: shipper.ServiceExpress, Domestic: true, International: true},
	}, nil
}

func (c *Client) begin(ctx context.Context) error {
	c.calls.Add(1)
	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return integration.NewError(c.name, integration.KindUpstream, "request cancelled").
				WithCause(ctx.Err()).
				WithRetryable(true)
		}
	}
	return c.Err
}
