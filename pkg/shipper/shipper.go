// Package shipper provides an abstraction layer for shipping carriers.
package shipper

import (
	"context"

	"github.com/tournevent/integrations/pkg/integration"
)

// Carrier defines the interface that all courier adapters must implement.
// Every error returned crosses the boundary as an *integration.Error.
type Carrier interface {
	// Name returns the provider identifier (e.g., "royalmail", "fedex", "dhl").
	Name() string

	// IsConfigured reports whether all required credentials are present.
	IsConfigured() bool

	// TestConnection performs one minimal live call. It never fails.
	TestConnection(ctx context.Context) integration.ConnectionResult

	// GetRates returns rate options for a shipment.
	GetRates(ctx context.Context, req *RateRequest) ([]Rate, error)

	// CreateShipment books a shipment and returns its label.
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)

	// TrackShipment returns the normalized tracking state of a shipment.
	TrackShipment(ctx context.Context, trackingNumber string) (*TrackingResponse, error)

	// CancelShipment voids a booked shipment.
	CancelShipment(ctx context.Context, shipmentID string) (*CancelResponse, error)

	// ValidateAddress checks an address against the carrier's address service.
	ValidateAddress(ctx context.Context, addr integration.Address) (*integration.AddressValidationResult, error)
}

// PickupScheduler is implemented by carriers that can book collections.
type PickupScheduler interface {
	SchedulePickup(ctx context.Context, req *PickupRequest) (*PickupResponse, error)
}

// ServiceLister is implemented by carriers that expose their service catalogue.
type ServiceLister interface {
	AvailableServices(ctx context.Context) ([]Service, error)
}
