package taxjar_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/tax"
	"github.com/tournevent/integrations/pkg/tax/taxjar"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(mockClient *taxjar.MockAPIClient) *taxjar.Client {
	logger := otelzap.New(zap.NewNop())
	return taxjar.NewWithAPIClient(taxjar.Config{APIToken: "token"}, mockClient, logger, nil)
}

func calculationRequest(transactionID string) *tax.CalculationRequest {
	return &tax.CalculationRequest{
		TransactionID: transactionID,
		Currency:      "USD",
		Origin:        integration.Address{Line1: "9500 Gilman Dr", City: "La Jolla", State: "CA", PostalCode: "92093", CountryCode: "US"},
		Destination:   integration.Address{Line1: "1335 E 103rd St", City: "Los Angeles", State: "CA", PostalCode: "90002", CountryCode: "US"},
		LineItems: []tax.LineItem{
			{ID: "1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00"), TaxCode: "20010"},
			{ID: "2", Quantity: 1, UnitPrice: decimal.RequireFromString("30.00")},
		},
		Shipping: decimal.RequireFromString("5.00"),
	}
}

func TestClient_CalculateTax_Success(t *testing.T) {
	resp, err := newTestClient(taxjar.NewMockAPIClient()).CalculateTax(context.Background(), calculationRequest(""))

	require.NoError(t, err)
	assert.Equal(t, "taxjar", resp.Provider)
	assert.Equal(t, tax.StatusCalculated, resp.Status)
	assert.Equal(t, "50", resp.Subtotal.String())
	assert.Equal(t, "3.63", resp.TotalTax.String())
	assert.Equal(t, "58.63", resp.Total.String())
	assert.True(t, resp.ShippingTax.IsZero())
	require.Len(t, resp.Lines, 2)
	assert.Equal(t, "1.45", resp.Lines[0].Tax.String())
	require.Len(t, resp.Jurisdictions, 2)
	assert.Equal(t, "STATE", resp.Jurisdictions[0].Type)
	assert.Equal(t, "CA", resp.Jurisdictions[0].Name)
	assert.Equal(t, "3.13", resp.Jurisdictions[0].Tax.String())
	assert.Equal(t, "COUNTY", resp.Jurisdictions[1].Type)
}

func TestClient_CalculateTax_BuildsRequest(t *testing.T) {
	mockAPI := taxjar.NewMockAPIClient()
	var captured *taxjar.TaxRequest
	mockAPI.OnTaxForOrder = func(ctx context.Context, req *taxjar.TaxRequest) (*taxjar.TaxResponse, error) {
		captured = req
		return &taxjar.TaxResponse{}, nil
	}

	_, err := newTestClient(mockAPI).CalculateTax(context.Background(), calculationRequest(""))

	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, 50.0, captured.Amount)
	assert.Equal(t, 5.0, captured.Shipping)
	assert.Equal(t, "90002", captured.ToZip)
	require.Len(t, captured.LineItems, 2)
	assert.Equal(t, "20010", captured.LineItems[0].ProductTaxCode)
	assert.Equal(t, 2, captured.LineItems[0].Quantity)
}

func TestClient_CalculateTax_Validation(t *testing.T) {
	_, err := newTestClient(taxjar.NewMockAPIClient()).CalculateTax(context.Background(), &tax.CalculationRequest{})
	assert.True(t, errors.Is(err, integration.ErrValidation))
}

func TestClient_CommitThenRefund(t *testing.T) {
	ctx := context.Background()
	mockAPI := taxjar.NewMockAPIClient()
	client := newTestClient(mockAPI)

	_, err := client.CalculateTax(ctx, calculationRequest("order-1"))
	require.NoError(t, err)

	committed, err := client.CommitTransaction(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, tax.StatusCommitted, committed.Status)
	assert.Equal(t, "3.63", committed.TotalTax.String())

	order, err := mockAPI.ShowOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, 55.0, order.Amount)
	assert.Equal(t, 3.63, order.SalesTax)
	require.Len(t, order.LineItems, 2)
	assert.Equal(t, 1.45, order.LineItems[0].SalesTax)

	_, err = client.CommitTransaction(ctx, "order-1")
	assert.True(t, errors.Is(err, integration.ErrNotFound), "a calculation commits once")

	refund, err := client.RefundTransaction(ctx, &tax.RefundRequest{TransactionID: "order-1"})
	require.NoError(t, err)
	assert.Equal(t, tax.StatusRefunded, refund.Status)
	assert.Equal(t, "order-1-refund", refund.TransactionID)
	assert.Equal(t, "-3.63", refund.TotalTax.String())
	assert.Equal(t, "-50", refund.Subtotal.String())
}

func TestClient_RefundTransaction_Partial(t *testing.T) {
	ctx := context.Background()
	mockAPI := taxjar.NewMockAPIClient()
	client := newTestClient(mockAPI)

	req := calculationRequest("order-2")
	req.Commit = true
	resp, err := client.CalculateTax(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, tax.StatusCommitted, resp.Status)

	half := decimal.RequireFromString("27.50")
	_, err = client.RefundTransaction(ctx, &tax.RefundRequest{TransactionID: "order-2", RefundTransactionID: "r-2", Amount: &half})
	require.NoError(t, err)

	refunds := mockAPI.Refunds()
	require.Len(t, refunds, 1)
	assert.Equal(t, "r-2", refunds[0].TransactionID)
	assert.Equal(t, "order-2", refunds[0].TransactionReferenceID)
	assert.Equal(t, -27.5, refunds[0].Amount)
	assert.Equal(t, -2.5, refunds[0].Shipping)
	assert.Equal(t, -1.82, refunds[0].SalesTax)

	tooMuch := decimal.RequireFromString("60")
	_, err = client.RefundTransaction(ctx, &tax.RefundRequest{TransactionID: "order-2", Amount: &tooMuch})
	assert.True(t, errors.Is(err, integration.ErrValidation))
}

func TestClient_VoidTransaction(t *testing.T) {
	ctx := context.Background()
	mockAPI := taxjar.NewMockAPIClient()
	client := newTestClient(mockAPI)

	_, err := client.CalculateTax(ctx, calculationRequest("pending"))
	require.NoError(t, err)
	voided, err := client.VoidTransaction(ctx, "pending")
	require.NoError(t, err)
	assert.Equal(t, tax.StatusVoided, voided.Status)
	_, err = client.CommitTransaction(ctx, "pending")
	assert.True(t, errors.Is(err, integration.ErrNotFound))

	req := calculationRequest("recorded")
	req.Commit = true
	_, err = client.CalculateTax(ctx, req)
	require.NoError(t, err)
	voided, err = client.VoidTransaction(ctx, "recorded")
	require.NoError(t, err)
	assert.Equal(t, tax.StatusVoided, voided.Status)
	assert.Equal(t, "3.63", voided.TotalTax.String())
	_, err = mockAPI.ShowOrder(ctx, "recorded")
	assert.True(t, errors.Is(err, integration.ErrNotFound))

	_, err = client.VoidTransaction(ctx, "missing")
	assert.True(t, errors.Is(err, integration.ErrNotFound))
}

func TestClient_ValidateAddress(t *testing.T) {
	client := newTestClient(taxjar.NewMockAPIClient())

	resp, err := client.ValidateAddress(context.Background(), integration.Address{
		Line1: "1335 e 103rd st", City: "los angeles", State: "ca", PostalCode: "90002", CountryCode: "us",
	})
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	require.NotNil(t, resp.Normalized)
	assert.Equal(t, "LOS ANGELES", resp.Normalized.City)
	assert.Equal(t, "1335 E 103RD ST", resp.Normalized.Line1)

	resp, err = client.ValidateAddress(context.Background(), integration.Address{
		Line1: "10 Downing St", City: "London", PostalCode: "SW1A 2AA", CountryCode: "GB",
	})
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.NotEmpty(t, resp.Messages)
}

func TestClient_TaxCodesAndNexus(t *testing.T) {
	client := newTestClient(taxjar.NewMockAPIClient())

	codes, err := client.TaxCodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20010", codes[0].Code)

	nexus, err := client.NexusLocations(context.Background())
	require.NoError(t, err)
	require.Len(t, nexus, 1)
	assert.Equal(t, "CA", nexus[0].Region)
}

func TestClient_TestConnection(t *testing.T) {
	result := newTestClient(taxjar.NewMockAPIClient()).TestConnection(context.Background())
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Details["nexusRegions"])

	failing := taxjar.NewMockAPIClient()
	failing.SimulateErrors = true
	result = newTestClient(failing).TestConnection(context.Background())
	assert.False(t, result.Success)

	result = taxjar.NewWithAPIClient(taxjar.Config{}, taxjar.NewMockAPIClient(), nil, nil).TestConnection(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "apiToken")
}

func TestHTTPAPIClient_BearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "Unauthorized", "detail": "Not authorized for route"})
			return
		}
		assert.Equal(t, "2022-01-24", r.Header.Get("x-api-version"))
		assert.Equal(t, "/v2/taxes", r.URL.Path)

		var body taxjar.TaxRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "90002", body.ToZip)

		_ = json.NewEncoder(w).Encode(map[string]any{"tax": map[string]any{
			"order_total_amount": 16.5,
			"amount_to_collect":  1.35,
			"has_nexus":          true,
		}})
	}))
	defer server.Close()

	api := taxjar.NewHTTPAPIClient(taxjar.HTTPAPIClientConfig{BaseURL: server.URL, APIToken: "token"})
	resp, err := api.TaxForOrder(context.Background(), &taxjar.TaxRequest{ToCountry: "US", ToZip: "90002", Amount: 15, Shipping: 1.5})
	require.NoError(t, err)
	assert.Equal(t, 1.35, resp.Tax.AmountToCollect)

	bad := taxjar.NewHTTPAPIClient(taxjar.HTTPAPIClientConfig{BaseURL: server.URL, APIToken: "wrong"})
	_, err = bad.TaxForOrder(context.Background(), &taxjar.TaxRequest{})
	assert.True(t, errors.Is(err, integration.ErrAuthentication))
	assert.Contains(t, err.Error(), "Not authorized for route")
}
