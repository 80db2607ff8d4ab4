package fedex

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/tournevent/integrations/pkg/integration"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetRates       func(ctx context.Context, req *RateRequest) (*RateResponse, error)
	OnCreateShipment func(ctx context.Context, req *ShipRequest) (*ShipResponse, error)
	OnTrack          func(ctx context.Context, req *TrackRequest) (*TrackResponse, error)
	OnCancelShipment func(ctx context.Context, req *CancelRequest) (*CancelResponse, error)
	OnResolveAddress func(ctx context.Context, req *AddressRequest) (*AddressResponse, error)
	OnCreatePickup   func(ctx context.Context, req *PickupRequest) (*PickupResponse, error)
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
			WithCode("SERVICE.UNAVAILABLE.ERROR").
			WithStatusCode(503).
			WithRetryable(true)
	}
	return nil
}

// Authenticate always succeeds unless errors are simulated.
func (m *MockAPIClient) Authenticate(ctx context.Context) error {
	return m.simulate()
}

// GetRates returns ground and two-day quotes.
func (m *MockAPIClient) GetRates(ctx context.Context, req *RateRequest) (*RateResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	resp := &RateResponse{}
	ground := RateReplyDetail{
		ServiceType: "FEDEX_GROUND",
		ServiceName: "FedEx Ground",
		RatedShipmentDetails: []RatedShipmentDetail{
			{RateType: "ACCOUNT", TotalBaseCharge: 11.20, TotalSurcharges: 1.75, TotalNetCharge: 12.95, Currency: "USD"},
		},
	}
	ground.OperationalDetail.TransitTime = "THREE_DAYS"

	twoDay := RateReplyDetail{
		ServiceType: "FEDEX_2_DAY",
		ServiceName: "FedEx 2Day",
		RatedShipmentDetails: []RatedShipmentDetail{
			{RateType: "ACCOUNT", TotalBaseCharge: 24.10, TotalSurcharges: 3.40, TotalNetCharge: 27.50, Currency: "USD"},
		},
	}
	twoDay.OperationalDetail.TransitTime = "TWO_DAYS"

	resp.Output.RateReplyDetails = []RateReplyDetail{ground, twoDay}
	return resp, nil
}

// CreateShipment creates a mock shipment with one inline label per piece.
func (m *MockAPIClient) CreateShipment(ctx context.Context, req *ShipRequest) (*ShipResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, req)
	}

	master := fmt.Sprintf("7%011d", time.Now().UnixNano()%100000000000)
	shipment := TransactionShipment{
		MasterTrackingNumber: master,
		ServiceType:          req.RequestedShipment.ServiceType,
	}
	for i := range req.RequestedShipment.RequestedPackageLineItems {
		shipment.PieceResponses = append(shipment.PieceResponses, PieceResponse{
			TrackingNumber:  fmt.Sprintf("%s%d", master, i),
			NetChargeAmount: 12.95,
			Currency:        "USD",
			PackageDocuments: []Document{{
				ContentType:  "LABEL",
				DocType:      req.RequestedShipment.LabelSpecification.ImageType,
				EncodedLabel: base64.StdEncoding.EncodeToString([]byte("mock fedex label")),
			}},
		})
	}

	resp := &ShipResponse{}
	resp.Output.TransactionShipments = []TransactionShipment{shipment}
	return resp, nil
}

// Track returns an in-transit package.
func (m *MockAPIClient) Track(ctx context.Context, req *TrackRequest) (*TrackResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnTrack != nil {
		return m.OnTrack(ctx, req)
	}

	resp := &TrackResponse{}
	for _, info := range req.TrackingInfo {
		result := TrackResult{
			LatestStatusDetail: StatusDetail{Code: "IT", DerivedCode: "IT", Description: "In transit"},
			ScanEvents: []ScanEvent{{
				Date:             time.Now().Add(-3 * time.Hour).UTC().Format(time.RFC3339),
				EventType:        "AR",
				EventDescription: "At local FedEx facility",
			}},
		}
		resp.Output.CompleteTrackResults = append(resp.Output.CompleteTrackResults, CompleteTrackResult{
			TrackingNumber: info.TrackingNumberInfo.TrackingNumber,
			TrackResults:   []TrackResult{result},
		})
	}
	return resp, nil
}

// CancelShipment cancels a mock shipment.
func (m *MockAPIClient) CancelShipment(ctx context.Context, req *CancelRequest) (*CancelResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCancelShipment != nil {
		return m.OnCancelShipment(ctx, req)
	}
	resp := &CancelResponse{}
	resp.Output.CancelledShipment = true
	resp.Output.Message = "Shipment is successfully cancelled"
	return resp, nil
}

// ResolveAddress echoes the address as resolved.
func (m *MockAPIClient) ResolveAddress(ctx context.Context, req *AddressRequest) (*AddressResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnResolveAddress != nil {
		return m.OnResolveAddress(ctx, req)
	}

	resp := &AddressResponse{}
	for _, a := range req.AddressesToValidate {
		resolved := ResolvedAddress{
			StreetLinesToken:    a.Address.StreetLines,
			City:                a.Address.City,
			StateOrProvinceCode: a.Address.StateOrProvinceCode,
			PostalCode:          a.Address.PostalCode,
			CountryCode:         a.Address.CountryCode,
			Classification:      "BUSINESS",
		}
		resolved.Attributes.Resolved = "true"
		resp.Output.ResolvedAddresses = append(resp.Output.ResolvedAddresses, resolved)
	}
	return resp, nil
}

// CreatePickup books a mock collection.
func (m *MockAPIClient) CreatePickup(ctx context.Context, req *PickupRequest) (*PickupResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreatePickup != nil {
		return m.OnCreatePickup(ctx, req)
	}
	resp := &PickupResponse{}
	resp.Output.PickupConfirmationCode = fmt.Sprintf("%d", 100000+time.Now().UnixNano()%900000)
	resp.Output.Location = "NQAA"
	return resp, nil
}
