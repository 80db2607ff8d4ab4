package dhl

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

	OnGetProducts func(ctx context.Context, req *ProductsRequest) (*ProductsResponse, error)
	OnCreateLabel func(ctx context.Context, req *LabelRequest, format string) (*LabelResponse, error)
	OnGetTracking func(ctx context.Context, trackingID string) (*TrackingResponse, error)
	OnDeleteLabel func(ctx context.Context, pickupAccount, packageID string) error
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
			WithStatusCode(502).
			WithRetryable(true)
	}
	return nil
}

// Authenticate always succeeds unless errors are simulated.
func (m *MockAPIClient) Authenticate(ctx context.Context) error {
	return m.simulate()
}

// GetProducts returns Parcel Ground and Parcel Expedited.
func (m *MockAPIClient) GetProducts(ctx context.Context, req *ProductsRequest) (*ProductsResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetProducts != nil {
		return m.OnGetProducts(ctx, req)
	}

	ground := Product{OrderedProductID: "GND", ProductName: "DHL Parcel Ground", TrackingAvailable: true}
	ground.Rate = &ProductRate{Amount: 7.85, Currency: "USD"}
	ground.Estimate = &DeliveryEstimate{DeliveryDaysMin: 3, DeliveryDaysMax: 6}

	expedited := Product{OrderedProductID: "EXP", ProductName: "DHL Parcel Expedited", TrackingAvailable: true}
	expedited.Rate = &ProductRate{Amount: 9.40, Currency: "USD"}
	expedited.Estimate = &DeliveryEstimate{DeliveryDaysMin: 2, DeliveryDaysMax: 5}

	return &ProductsResponse{Products: []Product{ground, expedited}}, nil
}

// CreateLabel books a mock package.
func (m *MockAPIClient) CreateLabel(ctx context.Context, req *LabelRequest, format string) (*LabelResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateLabel != nil {
		return m.OnCreateLabel(ctx, req, format)
	}
	return &LabelResponse{Labels: []Label{{
		PackageID:    req.PackageDetail.PackageID,
		DHLPackageID: fmt.Sprintf("GM%016d", time.Now().UnixNano()%10000000000000000),
		TrackingID:   fmt.Sprintf("9261290%015d", time.Now().UnixNano()%1000000000000000),
		LabelData:    base64.StdEncoding.EncodeToString([]byte("mock dhl label")),
		Format:       format,
	}}}, nil
}

// GetTracking returns a package that has just been processed.
func (m *MockAPIClient) GetTracking(ctx context.Context, trackingID string) (*TrackingResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetTracking != nil {
		return m.OnGetTracking(ctx, trackingID)
	}

	pkg := TrackedPackage{
		Events: []Event{
			{
				Date:                    time.Now().UTC().Format("2006-01-02"),
				Time:                    "08:15:00",
				PrimaryEventID:          220,
				PrimaryEventDescription: "PROCESSED",
				Location:                "Memphis, TN, US",
			},
			{
				Date:                    time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02"),
				Time:                    "17:40:00",
				PrimaryEventID:          600,
				PrimaryEventDescription: "ELECTRONIC NOTIFICATION RECEIVED",
			},
		},
	}
	pkg.Package.TrackingID = trackingID
	return &TrackingResponse{Packages: []TrackedPackage{pkg}}, nil
}

// DeleteLabel voids a mock label.
func (m *MockAPIClient) DeleteLabel(ctx context.Context, pickupAccount, packageID string) error {
	if err := m.simulate(); err != nil {
		return err
	}
	if m.OnDeleteLabel != nil {
		return m.OnDeleteLabel(ctx, pickupAccount, packageID)
	}
	return nil
}
