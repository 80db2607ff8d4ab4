package dhl_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/shipper"
	"github.com/tournevent/integrations/pkg/shipper/dhl"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(mockClient *dhl.MockAPIClient) *dhl.Client {
	logger := otelzap.New(zap.NewNop())
	return dhl.NewWithAPIClient(
		dhl.Config{ClientID: "id", ClientSecret: "secret", PickupAccount: "5351244", DistributionCenter: "USDFW1"},
		mockClient,
		logger,
		nil,
	)
}

func address(phone string) integration.Address {
	return integration.Address{
		Name:        "Sam Lee",
		Line1:       "1600 Main St",
		City:        "Dallas",
		State:       "tx",
		PostalCode:  "75201",
		CountryCode: "us",
		Phone:       phone,
	}
}

func TestClient_GetRates_ConsolidatesInGrams(t *testing.T) {
	mockAPI := dhl.NewMockAPIClient()
	var captured *dhl.ProductsRequest
	mockAPI.OnGetProducts = func(ctx context.Context, req *dhl.ProductsRequest) (*dhl.ProductsResponse, error) {
		captured = req
		return &dhl.ProductsResponse{}, nil
	}

	_, err := newTestClient(mockAPI).GetRates(context.Background(), &shipper.RateRequest{
		Origin:      address(""),
		Destination: address(""),
		Packages: []shipper.Package{
			{Weight: 0.75, Length: 20, Width: 15, Height: 5},
			{Weight: 1.5, Length: 30, Width: 10, Height: 10},
		},
	})

	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, "G", captured.PackageDetail.Weight.UnitOfMeasure)
	assert.Equal(t, 2250.0, captured.PackageDetail.Weight.Value)
	require.NotNil(t, captured.PackageDetail.Dimension)
	assert.Equal(t, 30.0, captured.PackageDetail.Dimension.Length)
	assert.Equal(t, 15.0, captured.PackageDetail.Dimension.Width)
	assert.Equal(t, 10.0, captured.PackageDetail.Dimension.Height)
	assert.Equal(t, "5351244", captured.PickupAccount)
	assert.True(t, captured.Rate.Calculate)
}

func TestClient_GetRates_Success(t *testing.T) {
	rates, err := newTestClient(dhl.NewMockAPIClient()).GetRates(context.Background(), &shipper.RateRequest{
		Packages: []shipper.Package{{Weight: 1}},
	})

	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "GND", rates[0].ServiceCode)
	assert.Equal(t, "7.85", rates[0].TotalPrice.Amount.String())
	assert.Equal(t, 6, rates[0].TransitDays)
	assert.Equal(t, shipper.ServiceExpress, rates[1].ServiceType)
}

func TestClient_GetRates_SkipsUnpricedProducts(t *testing.T) {
	mockAPI := dhl.NewMockAPIClient()
	mockAPI.OnGetProducts = func(ctx context.Context, req *dhl.ProductsRequest) (*dhl.ProductsResponse, error) {
		return &dhl.ProductsResponse{Products: []dhl.Product{
			{OrderedProductID: "GND"},
			{OrderedProductID: "EXP", Rate: &dhl.ProductRate{Amount: 9.4}},
		}}, nil
	}

	rates, err := newTestClient(mockAPI).GetRates(context.Background(), &shipper.RateRequest{
		Packages: []shipper.Package{{Weight: 1}},
	})

	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "USD", rates[0].TotalPrice.Currency)
}

func TestClient_CreateShipment_Success(t *testing.T) {
	mockAPI := dhl.NewMockAPIClient()
	var format string
	mockAPI.OnCreateLabel = func(ctx context.Context, req *dhl.LabelRequest, f string) (*dhl.LabelResponse, error) {
		format = f
		return &dhl.LabelResponse{Labels: []dhl.Label{{
			PackageID:  req.PackageDetail.PackageID,
			TrackingID: "9261290100830000000001",
			LabelData:  "ZGF0YQ==",
			Format:     f,
		}}}, nil
	}

	resp, err := newTestClient(mockAPI).CreateShipment(context.Background(), &shipper.ShipmentRequest{
		OrderID:     "order-1234567890-1234567890-1234567890",
		ServiceCode: "GND",
		Sender:      address("214-555-0100"),
		Recipient:   address("214-555-0101"),
		Packages:    []shipper.Package{{Weight: 1}},
		LabelFormat: shipper.LabelZPL,
	})

	require.NoError(t, err)
	assert.Equal(t, "ZPL", format)
	assert.Equal(t, "9261290100830000000001", resp.TrackingNumber)
	assert.Len(t, resp.ShipmentID, 30, "package ids are truncated to 30 characters")
	assert.Equal(t, shipper.LabelZPL, resp.LabelFormat)
}

func TestClient_CreateShipment_MultiplePackages(t *testing.T) {
	_, err := newTestClient(dhl.NewMockAPIClient()).CreateShipment(context.Background(), &shipper.ShipmentRequest{
		ServiceCode: "GND",
		Sender:      address("214-555-0100"),
		Recipient:   address("214-555-0101"),
		Packages:    []shipper.Package{{Weight: 1}, {Weight: 2}},
	})

	assert.True(t, errors.Is(err, integration.ErrValidation))
}

func TestClient_CreateShipment_MissingSenderPhone(t *testing.T) {
	_, err := newTestClient(dhl.NewMockAPIClient()).CreateShipment(context.Background(), &shipper.ShipmentRequest{
		ServiceCode: "GND",
		Sender:      address(""),
		Recipient:   address("214-555-0101"),
		Packages:    []shipper.Package{{Weight: 1}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sender phone number is required")
}

func TestClient_TrackShipment_LatestEventWins(t *testing.T) {
	resp, err := newTestClient(dhl.NewMockAPIClient()).TrackShipment(context.Background(), "9261290100830000000001")

	require.NoError(t, err)
	assert.Equal(t, shipper.StatusInTransit, resp.Status)
	assert.False(t, resp.Unmapped)
	require.Len(t, resp.Events, 2)
	assert.Equal(t, shipper.StatusPreTransit, resp.Events[1].Status)
	assert.Equal(t, "220", resp.Events[0].Code)
	assert.Equal(t, 8, resp.Events[0].Timestamp.Hour())
}

func TestClient_TrackShipment_Statuses(t *testing.T) {
	tests := []struct {
		description string
		expected    shipper.TrackingStatus
	}{
		{"DELIVERED", shipper.StatusDelivered},
		{"OUT FOR DELIVERY", shipper.StatusOutForDelivery},
		{"DELIVERY ATTEMPTED", shipper.StatusFailedAttempt},
		{"RETURNED TO SHIPPER", shipper.StatusReturnToSender},
		{"ARRIVAL DESTINATION DHL ECOMMERCE FACILITY", shipper.StatusInTransit},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			mockAPI := dhl.NewMockAPIClient()
			mockAPI.OnGetTracking = func(ctx context.Context, id string) (*dhl.TrackingResponse, error) {
				return &dhl.TrackingResponse{Packages: []dhl.TrackedPackage{{
					Events: []dhl.Event{{Date: "2026-02-01", Time: "10:00:00", PrimaryEventDescription: tt.description}},
				}}}, nil
			}

			resp, err := newTestClient(mockAPI).TrackShipment(context.Background(), "x")

			require.NoError(t, err)
			assert.Equal(t, tt.expected, resp.Status)
		})
	}
}

func TestClient_TrackShipment_UnrecognizedEvent(t *testing.T) {
	mockAPI := dhl.NewMockAPIClient()
	mockAPI.OnGetTracking = func(ctx context.Context, id string) (*dhl.TrackingResponse, error) {
		return &dhl.TrackingResponse{Packages: []dhl.TrackedPackage{{
			Events: []dhl.Event{{Date: "2026-02-01", Time: "10:00:00", PrimaryEventDescription: "CUSTOMS CLEARANCE PENDING"}},
		}}}, nil
	}

	resp, err := newTestClient(mockAPI).TrackShipment(context.Background(), "x")

	require.NoError(t, err)
	assert.Equal(t, shipper.StatusInTransit, resp.Status)
	assert.True(t, resp.Unmapped)
	assert.Equal(t, "CUSTOMS CLEARANCE PENDING", resp.VendorStatus)
}

func TestClient_TrackShipment_NoEvents(t *testing.T) {
	mockAPI := dhl.NewMockAPIClient()
	mockAPI.OnGetTracking = func(ctx context.Context, id string) (*dhl.TrackingResponse, error) {
		return &dhl.TrackingResponse{Packages: []dhl.TrackedPackage{{}}}, nil
	}

	resp, err := newTestClient(mockAPI).TrackShipment(context.Background(), "x")

	require.NoError(t, err)
	assert.Equal(t, shipper.StatusUnknown, resp.Status)
}

func TestClient_CancelShipment(t *testing.T) {
	mockAPI := dhl.NewMockAPIClient()
	var pickup, pkg string
	mockAPI.OnDeleteLabel = func(ctx context.Context, p, id string) error {
		pickup, pkg = p, id
		return nil
	}

	resp, err := newTestClient(mockAPI).CancelShipment(context.Background(), "PKG1")

	require.NoError(t, err)
	assert.True(t, resp.Cancelled)
	assert.Equal(t, "5351244", pickup)
	assert.Equal(t, "PKG1", pkg)
}

func TestClient_ValidateAddress(t *testing.T) {
	client := newTestClient(dhl.NewMockAPIClient())

	resp, err := client.ValidateAddress(context.Background(), address(""))
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.Equal(t, "US", resp.Normalized.CountryCode)
	assert.Equal(t, "TX", resp.Normalized.State)

	bad := address("")
	bad.State = ""
	bad.City = ""
	resp, err = client.ValidateAddress(context.Background(), bad)
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Len(t, resp.Messages, 2)
}

func TestClient_TestConnection_NotConfigured(t *testing.T) {
	client := dhl.NewWithAPIClient(dhl.Config{ClientID: "id", ClientSecret: "secret"}, dhl.NewMockAPIClient(), nil, nil)

	result := client.TestConnection(context.Background())

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "pickupAccount")
}

func TestHTTPAPIClient_BasicAuthToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v4/accesstoken":
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "id", user)
			assert.Equal(t, "secret", pass)
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": "3600"})
		case "/shipping/v4/label/5351244":
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "PKG1", r.URL.Query().Get("packageId"))
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	api := dhl.NewHTTPAPIClient(dhl.HTTPAPIClientConfig{BaseURL: server.URL, ClientID: "id", ClientSecret: "secret"})

	require.NoError(t, api.Authenticate(context.Background()))
	require.NoError(t, api.DeleteLabel(context.Background(), "5351244", "PKG1"))

	_, err := api.GetTracking(context.Background(), "missing")
	assert.True(t, errors.Is(err, integration.ErrNotFound))
}
