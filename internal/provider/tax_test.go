package provider_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/integrations/internal/audit"
	"github.com/tournevent/integrations/internal/provider"
	"github.com/tournevent/integrations/internal/store"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/secret"
	"github.com/tournevent/integrations/pkg/tax"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
)

// stubCalculator is a tax engine with a fixed answer or failure.
type stubCalculator struct {
	name string
	rate decimal.Decimal
	err  error
}

func (s *stubCalculator) Name() string       { return s.name }
func (s *stubCalculator) IsConfigured() bool { return true }

func (s *stubCalculator) TestConnection(context.Context) integration.ConnectionResult {
	return integration.ConnectionResult{Success: s.err == nil}
}

func (s *stubCalculator) CalculateTax(_ context.Context, req *tax.CalculationRequest) (*tax.CalculationResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	subtotal := req.Subtotal()
	totalTax := subtotal.Mul(s.rate).Round(2)
	status := tax.StatusCalculated
	if req.Commit {
		status = tax.StatusCommitted
	}
	return &tax.CalculationResponse{
		Provider:      s.name,
		TransactionID: req.TransactionID,
		Status:        status,
		Subtotal:      subtotal,
		TotalTax:      totalTax,
		Total:         subtotal.Add(req.Shipping).Add(totalTax),
	}, nil
}

func (s *stubCalculator) CommitTransaction(_ context.Context, id string) (*tax.CalculationResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &tax.CalculationResponse{Provider: s.name, TransactionID: id, Status: tax.StatusCommitted}, nil
}

func (s *stubCalculator) VoidTransaction(_ context.Context, id string) (*tax.CalculationResponse, error) {
	return &tax.CalculationResponse{Provider: s.name, TransactionID: id, Status: tax.StatusVoided}, s.err
}

func (s *stubCalculator) RefundTransaction(_ context.Context, req *tax.RefundRequest) (*tax.CalculationResponse, error) {
	return &tax.CalculationResponse{Provider: s.name, TransactionID: req.TransactionID, Status: tax.StatusRefunded}, s.err
}

func (s *stubCalculator) ValidateAddress(_ context.Context, addr integration.Address) (*integration.AddressValidationResult, error) {
	return &integration.AddressValidationResult{Valid: true, Normalized: &addr}, s.err
}

func taxRegistry(calcs ...*stubCalculator) *tax.Registry {
	ctors := map[string]tax.Constructor{}
	for _, c := range calcs {
		ctors[c.name] = func(integration.ProviderConfig, *otelzap.Logger, trace.Tracer) tax.Calculator { return c }
	}
	return tax.NewRegistry(ctors)
}

func newTaxFactory(t *testing.T, rows staticSource, reg *tax.Registry, opts provider.Options) *provider.TaxFactory {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = nopLogger()
	}
	f := provider.NewTaxFactory(rows, newCipher(t), reg, opts)
	require.NoError(t, f.LoadProviders(context.Background()))
	return f
}

func taxReq() *tax.CalculationRequest {
	return &tax.CalculationRequest{
		TransactionID: "order-77",
		Currency:      "USD",
		Date:          time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		LineItems: []tax.LineItem{
			{ID: "1", Quantity: 2, UnitPrice: decimal.RequireFromString("20")},
			{ID: "2", Quantity: 1, UnitPrice: decimal.RequireFromString("10")},
		},
		Shipping: decimal.RequireFromString("5"),
	}
}

func TestTaxFactory_NoProviderNoFallbackReturnsZeroTemporary(t *testing.T) {
	f := newTaxFactory(t, nil, taxRegistry(), provider.Options{})

	_, ok := f.ActiveProvider()
	assert.False(t, ok)

	resp := f.CalculateTax(context.Background(), taxReq(), nil)
	require.NotNil(t, resp)
	assert.Equal(t, tax.StatusTemporary, resp.Status)
	assert.True(t, resp.TotalTax.IsZero())
	assert.Equal(t, "50", resp.Subtotal.String())
	assert.Equal(t, "55", resp.Total.String())
}

func TestTaxFactory_NoProviderUsesFallback(t *testing.T) {
	f := newTaxFactory(t, nil, taxRegistry(), provider.Options{})

	fallback := func(_ context.Context, req *tax.CalculationRequest) (*tax.CalculationResponse, error) {
		return &tax.CalculationResponse{TransactionID: req.TransactionID, Status: tax.StatusCalculated, TotalTax: decimal.RequireFromString("4")}, nil
	}
	resp := f.CalculateTax(context.Background(), taxReq(), fallback)
	assert.Equal(t, tax.StatusCalculated, resp.Status)
	assert.Equal(t, "4", resp.TotalTax.String())
}

func TestTaxFactory_ProviderFailureDegrades(t *testing.T) {
	c := newCipher(t)
	failing := &stubCalculator{name: "avalara", err: integration.NewError("avalara", integration.KindUpstream, "service unavailable")}
	f := newTaxFactory(t, staticSource{row(t, c, store.CategoryTax, "avalara", true, 1)}, taxRegistry(failing), provider.Options{})

	fallbackCalls := 0
	fallback := func(_ context.Context, req *tax.CalculationRequest) (*tax.CalculationResponse, error) {
		fallbackCalls++
		return &tax.CalculationResponse{Provider: "local", Status: tax.StatusCalculated}, nil
	}
	resp := f.CalculateTax(context.Background(), taxReq(), fallback)
	assert.Equal(t, "local", resp.Provider)
	assert.Equal(t, 1, fallbackCalls)

	resp = f.CalculateTax(context.Background(), taxReq(), func(context.Context, *tax.CalculationRequest) (*tax.CalculationResponse, error) {
		return nil, errors.New("no local table")
	})
	assert.Equal(t, tax.StatusTemporary, resp.Status)
}

func TestTaxFactory_ActiveProviderByPriority(t *testing.T) {
	c := newCipher(t)
	avalara := &stubCalculator{name: "avalara", rate: decimal.RequireFromString("0.0825")}
	taxjar := &stubCalculator{name: "taxjar", rate: decimal.RequireFromString("0.06")}
	rows := staticSource{
		row(t, c, store.CategoryTax, "taxjar", true, 1),
		row(t, c, store.CategoryTax, "avalara", true, 5),
	}
	f := newTaxFactory(t, rows, taxRegistry(avalara, taxjar), provider.Options{})

	active, ok := f.ActiveProvider()
	require.True(t, ok)
	assert.Equal(t, "avalara", active.Name())

	resp := f.CalculateTax(context.Background(), taxReq(), nil)
	assert.Equal(t, "avalara", resp.Provider)
	assert.Equal(t, "4.13", resp.TotalTax.String())
}

func TestTaxFactory_InactiveProviderIsIgnored(t *testing.T) {
	c := newCipher(t)
	avalara := &stubCalculator{name: "avalara", rate: decimal.RequireFromString("0.1")}
	f := newTaxFactory(t, staticSource{row(t, c, store.CategoryTax, "avalara", false, 1)}, taxRegistry(avalara), provider.Options{})

	assert.True(t, f.Loaded("avalara"))
	_, ok := f.Provider("avalara")
	assert.False(t, ok)
	assert.Empty(t, f.ActiveProviders())
	assert.Equal(t, tax.StatusTemporary, f.CalculateTax(context.Background(), taxReq(), nil).Status)

	_, err := f.CommitTransaction(context.Background(), "order-77")
	assert.ErrorIs(t, err, integration.ErrNotFound)
}

func TestTaxFactory_TransitionsAreAudited(t *testing.T) {
	c := newCipher(t)
	sink := &recordingSink{}
	auditLog := audit.NewLogger(sink, nopLogger())
	calc := &stubCalculator{name: "taxjar", rate: decimal.RequireFromString("0.05")}
	f := newTaxFactory(t, staticSource{row(t, c, store.CategoryTax, "taxjar", true, 1)}, taxRegistry(calc), provider.Options{Audit: auditLog})
	ctx := context.Background()

	req := taxReq()
	req.Commit = true
	assert.Equal(t, tax.StatusCommitted, f.CalculateTax(ctx, req, nil).Status)

	committed, err := f.CommitTransaction(ctx, "order-77")
	require.NoError(t, err)
	assert.Equal(t, tax.StatusCommitted, committed.Status)

	voided, err := f.VoidTransaction(ctx, "order-77")
	require.NoError(t, err)
	assert.Equal(t, tax.StatusVoided, voided.Status)

	refunded, err := f.RefundTransaction(ctx, &tax.RefundRequest{TransactionID: "order-77"})
	require.NoError(t, err)
	assert.Equal(t, tax.StatusRefunded, refunded.Status)

	_, err = f.ValidateAddress(ctx, integration.Address{PostalCode: "90002", CountryCode: "US"})
	require.NoError(t, err)

	auditLog.Close()
	assert.ElementsMatch(t, []string{
		"taxjar:calculate_and_commit_tax",
		"taxjar:commit_transaction",
		"taxjar:void_transaction",
		"taxjar:refund_transaction",
	}, sink.actions())
}

func TestTaxFactory_TransitionErrorsPropagate(t *testing.T) {
	c := newCipher(t)
	calc := &stubCalculator{name: "taxjar", err: integration.NewError("taxjar", integration.KindNotFound, "order not found")}
	f := newTaxFactory(t, staticSource{row(t, c, store.CategoryTax, "taxjar", true, 1)}, taxRegistry(calc), provider.Options{})

	_, err := f.CommitTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, integration.ErrNotFound)

	result, err := f.TestConnection(context.Background(), "taxjar")
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestTaxFactory_WithRealAdapters(t *testing.T) {
	c := newCipher(t)
	blob, err := c.EncryptJSON(map[string]any{"apiToken": "tj_live_123"})
	require.NoError(t, err)
	rows := staticSource{{
		ID:          "tj",
		Category:    store.CategoryTax,
		Provider:    "taxjar",
		IsActive:    true,
		Credentials: blob,
		Settings:    integration.Values{"useMock": true},
	}}
	f := newTaxFactory(t, rows, provider.TaxProviders(), provider.Options{})

	req := taxReq()
	req.Destination = integration.Address{Line1: "1 Main St", City: "Los Angeles", State: "CA", PostalCode: "90002", CountryCode: "US"}
	req.Origin = integration.Address{Line1: "9 Depot Rd", City: "Fresno", State: "CA", PostalCode: "93650", CountryCode: "US"}
	resp := f.CalculateTax(context.Background(), req, nil)
	assert.Equal(t, "taxjar", resp.Provider)
	assert.Equal(t, tax.StatusCalculated, resp.Status)
	assert.True(t, resp.TotalTax.IsPositive())

	codes, err := f.TaxCodes(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, codes)
}

func TestProviderConfig_DecryptsCredentials(t *testing.T) {
	c := newCipher(t)
	r := row(t, c, store.CategoryShipping, "fedex", true, 1)
	r.IsTestMode = true

	cfg, err := provider.ProviderConfig(c, r)
	require.NoError(t, err)
	assert.Equal(t, "fedex-key", cfg.Credentials.String("apiKey"))
	assert.True(t, cfg.TestMode)
	assert.NotNil(t, cfg.Settings)

	other, err := secret.NewCipher("", nil)
	require.NoError(t, err)
	_, err = provider.ProviderConfig(other, r)
	assert.ErrorIs(t, err, secret.ErrDecryption)
}
