package royalmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/integrations/pkg/integration"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetRates        func(ctx context.Context, req *RatesRequest) (*RatesResponse, error)
	OnCreateShipment  func(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)
	OnGetTracking     func(ctx context.Context, trackingNumber string) (*TrackingResponse, error)
	OnCancelShipment  func(ctx context.Context, shipmentID string) (*CancelResponse, error)
	OnValidateAddress func(ctx context.Context, req *AddressRequest) (*AddressResponse, error)
	OnGetServices     func(ctx context.Context) (*ServicesResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) simulate() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return integration.NewError(carrierName, integration.KindUpstream, "Simulated API error").
			WithCode("MOCK_ERROR").
			WithStatusCode(503).
			WithRetryable(true)
	}
	return nil
}

// GetRates returns Tracked 48 and Tracked 24 rates.
func (m *MockAPIClient) GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	return &RatesResponse{
		Rates: []Rate{
			{
				ServiceCode: "TRN",
				ServiceName: "Royal Mail Tracked 24",
				NetPrice:    4.58,
				VAT:         0.92,
				TotalPrice:  5.50,
				Currency:    "GBP",
				TransitDays: 1,
			},
			{
				ServiceCode: "TPS",
				ServiceName: "Royal Mail Tracked 48",
				NetPrice:    3.33,
				VAT:         0.67,
				TotalPrice:  4.00,
				Currency:    "GBP",
				TransitDays: 2,
			},
		},
	}, nil
}

// CreateShipment creates a mock shipment.
func (m *MockAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, req)
	}

	return &ShipmentResponse{
		ShipmentID:     "rm-" + uuid.New().String()[:8],
		TrackingNumber: fmt.Sprintf("TT%09dGB", time.Now().UnixNano()%1000000000),
		ServiceCode:    req.ServiceCode,
		TotalPrice:     4.00,
		Currency:       "GBP",
		Label:          base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 mock label")),
		LabelFormat:    req.LabelFormat,
	}, nil
}

// GetTracking returns an in-transit mailpiece.
func (m *MockAPIClient) GetTracking(ctx context.Context, trackingNumber string) (*TrackingResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetTracking != nil {
		return m.OnGetTracking(ctx, trackingNumber)
	}

	return &TrackingResponse{
		MailPieceID: trackingNumber,
		Summary: TrackingSummary{
			StatusCode:        "IN_TRANSIT",
			StatusDescription: "Item in transit",
		},
		Events: []TrackingEvent{
			{
				EventCode:     "IN_TRANSIT",
				EventName:     "Item in transit",
				EventDateTime: time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339),
				LocationName:  "Heathrow Worldwide DC",
			},
			{
				EventCode:     "ACCEPTED",
				EventName:     "Item received",
				EventDateTime: time.Now().Add(-20 * time.Hour).UTC().Format(time.RFC3339),
				LocationName:  "London Central MC",
			},
		},
	}, nil
}

// CancelShipment cancels a mock shipment.
func (m *MockAPIClient) CancelShipment(ctx context.Context, shipmentID string) (*CancelResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCancelShipment != nil {
		return m.OnCancelShipment(ctx, shipmentID)
	}
	return &CancelResponse{ShipmentID: shipmentID, Status: "cancelled"}, nil
}

// ValidateAddress echoes the address back as valid.
func (m *MockAPIClient) ValidateAddress(ctx context.Context, req *AddressRequest) (*AddressResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnValidateAddress != nil {
		return m.OnValidateAddress(ctx, req)
	}
	addr := req.Address
	return &AddressResponse{Valid: true, Address: &addr}, nil
}

// GetServices returns the account's mock services.
func (m *MockAPIClient) GetServices(ctx context.Context) (*ServicesResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetServices != nil {
		return m.OnGetServices(ctx)
	}
	return &ServicesResponse{
		Services: []ServiceInfo{
			{Code: "TRN", Name: "Royal Mail Tracked 24"},
			{Code: "TPS", Name: "Royal Mail Tracked 48"},
			{Code: "SD1", Name: "Special Delivery Guaranteed by 1pm"},
			{Code: "MTI", Name: "International Tracked", International: true},
		},
	}, nil
}
