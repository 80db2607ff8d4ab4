// Package taxjar provides integration with the TaxJar sales tax API.
package taxjar

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/shopspring/decimal"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/tax"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	providerName = "taxjar"

	productionURL = "https://api.taxjar.com"
	sandboxURL    = "https://api.sandbox.taxjar.com"

	dateLayout = "2006-01-02"

	// PendingTTL bounds how long a calculation can wait for its commit.
	PendingTTL = 24 * time.Hour
)

// Config holds TaxJar configuration.
type Config struct {
	APIToken string
	BaseURL  string
	Timeout  time.Duration
	UseMock  bool
}

// pendingOrder is a calculation waiting to be recorded as an order.
// TaxJar separates calculation from reporting, so the adapter keeps what
// it needs to commit later.
type pendingOrder struct {
	request tax.CalculationRequest
	tax     *Tax
}

// Client is the TaxJar tax client. It implements tax.Calculator.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
	pending   *ttlcache.Cache[string, pendingOrder]
}

// New creates a new TaxJar client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:  cfg.BaseURL,
			APIToken: cfg.APIToken,
			Timeout:  cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new TaxJar client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
		pending: ttlcache.New(
			ttlcache.WithTTL[string, pendingOrder](PendingTTL),
			ttlcache.WithDisableTouchOnHit[string, pendingOrder](),
		),
	}
}

// FromProviderConfig builds a client from decrypted integration settings.
func FromProviderConfig(cfg integration.ProviderConfig, logger *otelzap.Logger, tracer trace.Tracer) tax.Calculator {
	return New(Config{
		APIToken: cfg.Credentials.String("apiToken", "api_token", "apiKey"),
		BaseURL:  cfg.BaseURL(productionURL, sandboxURL),
		UseMock:  cfg.UseMock(),
	}, logger, tracer)
}

// Name returns the provider name.
func (c *Client) Name() string {
	return providerName
}

// IsConfigured reports whether the API token is present.
func (c *Client) IsConfigured() bool {
	if c.config.UseMock {
		return true
	}
	return strings.TrimSpace(c.config.APIToken) != ""
}

// TestConnection lists the account's nexus regions.
func (c *Client) TestConnection(ctx context.Context) integration.ConnectionResult {
	return integration.RunConnectionTest(ctx, providerName, func(ctx context.Context) (map[string]any, error) {
		if !c.IsConfigured() {
			return nil, integration.NotConfigured(providerName, "apiToken")
		}
		resp, err := c.apiClient.NexusRegions(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"nexusRegions": len(resp.Regions)}, nil
	})
}

// CalculateTax calculates tax for an order. Calculations carrying a
// transaction id are kept for a later commit; with req.Commit the order is
// recorded immediately.
func (c *Client) CalculateTax(ctx context.Context, req *tax.CalculationRequest) (resp *tax.CalculationResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, providerName, "CalculateTax")
	defer func() { integration.EndSpan(span, err) }()

	c.logger.Ctx(ctx).Info("Calculating TaxJar tax",
		zap.String("transaction_id", req.TransactionID),
		zap.String("to_zip", req.Destination.PostalCode),
		zap.Int("line_count", len(req.LineItems)),
	)

	if len(req.LineItems) == 0 {
		return nil, integration.Validation(providerName, "at least one line item is required")
	}
	if strings.TrimSpace(req.Destination.PostalCode) == "" || strings.TrimSpace(req.Destination.CountryCode) == "" {
		return nil, integration.Validation(providerName, "destination postal code and country are required")
	}

	apiResp, err := c.apiClient.TaxForOrder(ctx, taxRequest(req))
	if err != nil {
		c.logger.Ctx(ctx).Error("TaxJar API error", zap.Error(err))
		return nil, err
	}

	resp = toResponse(req, &apiResp.Tax)
	if req.TransactionID == "" {
		return resp, nil
	}

	c.pending.DeleteExpired()
	c.pending.Set(req.TransactionID, pendingOrder{request: *req, tax: &apiResp.Tax}, ttlcache.DefaultTTL)

	if req.Commit {
		if _, err := c.commit(ctx, req.TransactionID); err != nil {
			return nil, err
		}
		resp.Status = tax.StatusCommitted
	}
	return resp, nil
}

// CommitTransaction records a pending calculation as a TaxJar order.
func (c *Client) CommitTransaction(ctx context.Context, transactionID string) (resp *tax.CalculationResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, providerName, "CommitTransaction")
	defer func() { integration.EndSpan(span, err) }()

	if strings.TrimSpace(transactionID) == "" {
		return nil, integration.Validation(providerName, "transaction id is required")
	}
	c.logger.Ctx(ctx).Info("Committing TaxJar transaction", zap.String("transaction_id", transactionID))

	p, err := c.commit(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	resp = toResponse(&p.request, p.tax)
	resp.Status = tax.StatusCommitted
	return resp, nil
}

// VoidTransaction drops a pending calculation, or deletes the recorded
// order.
func (c *Client) VoidTransaction(ctx context.Context, transactionID string) (resp *tax.CalculationResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, providerName, "VoidTransaction")
	defer func() { integration.EndSpan(span, err) }()

	if strings.TrimSpace(transactionID) == "" {
		return nil, integration.Validation(providerName, "transaction id is required")
	}
	c.logger.Ctx(ctx).Info("Voiding TaxJar transaction", zap.String("transaction_id", transactionID))

	if item := c.pending.Get(transactionID); item != nil {
		c.pending.Delete(transactionID)
		p := item.Value()
		resp = toResponse(&p.request, p.tax)
		resp.Status = tax.StatusVoided
		return resp, nil
	}

	order, err := c.apiClient.DeleteOrder(ctx, transactionID)
	if err != nil {
		c.logger.Ctx(ctx).Error("TaxJar API error", zap.Error(err))
		return nil, err
	}
	resp = orderResponse(order)
	resp.Status = tax.StatusVoided
	return resp, nil
}

// RefundTransaction records a refund against a committed order. Partial
// refunds scale shipping and sales tax by the refunded share.
func (c *Client) RefundTransaction(ctx context.Context, req *tax.RefundRequest) (resp *tax.CalculationResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, providerName, "RefundTransaction")
	defer func() { integration.EndSpan(span, err) }()

	if strings.TrimSpace(req.TransactionID) == "" {
		return nil, integration.Validation(providerName, "transaction id is required")
	}
	c.logger.Ctx(ctx).Info("Refunding TaxJar transaction",
		zap.String("transaction_id", req.TransactionID),
		zap.Bool("partial", req.Amount != nil),
	)

	order, err := c.apiClient.ShowOrder(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}

	amount := decimal.NewFromFloat(order.Amount)
	share := decimal.NewFromInt(1)
	if req.Amount != nil {
		if req.Amount.GreaterThan(amount) {
			return nil, integration.Validation(providerName, "refund amount %s exceeds order amount %s", req.Amount.String(), amount.String())
		}
		if amount.IsPositive() {
			share = req.Amount.Div(amount)
		}
		amount = *req.Amount
	}
	shipping := decimal.NewFromFloat(order.Shipping).Mul(share).Round(2)
	salesTax := decimal.NewFromFloat(order.SalesTax).Mul(share).Round(2)

	refundID := req.RefundTransactionID
	if refundID == "" {
		refundID = req.TransactionID + "-refund"
	}
	date := req.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	refund, err := c.apiClient.CreateRefund(ctx, &RefundTransaction{
		TransactionID:          refundID,
		TransactionReferenceID: req.TransactionID,
		TransactionDate:        date.Format(dateLayout),
		ToCountry:              order.ToCountry,
		ToZip:                  order.ToZip,
		ToState:                order.ToState,
		ToCity:                 order.ToCity,
		ToStreet:               order.ToStreet,
		Amount:                 amount.Neg().InexactFloat64(),
		Shipping:               shipping.Neg().InexactFloat64(),
		SalesTax:               salesTax.Neg().InexactFloat64(),
	})
	if err != nil {
		c.logger.Ctx(ctx).Error("TaxJar API error", zap.Error(err))
		return nil, err
	}

	return &tax.CalculationResponse{
		Provider:      providerName,
		TransactionID: refund.TransactionID,
		Status:        tax.StatusRefunded,
		Currency:      "USD",
		Subtotal:      money(refund.Amount - refund.Shipping),
		ShippingTax:   decimal.Zero,
		TotalTax:      money(refund.SalesTax),
		Total:         money(refund.Amount + refund.SalesTax),
		CalculatedAt:  time.Now().UTC(),
	}, nil
}

// ValidateAddress looks the address up. TaxJar answers 404 when nothing
// matches, which is reported as an invalid address.
func (c *Client) ValidateAddress(ctx context.Context, addr integration.Address) (result *integration.AddressValidationResult, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, providerName, "ValidateAddress")
	defer func() { integration.EndSpan(span, err) }()

	resp, err := c.apiClient.ValidateAddress(ctx, &AddressRequest{
		Country: strings.ToUpper(addr.CountryCode),
		State:   addr.State,
		Zip:     addr.PostalCode,
		City:    addr.City,
		Street:  strings.TrimSpace(addr.Line1 + " " + addr.Line2),
	})
	if errors.Is(err, integration.ErrNotFound) {
		return &integration.AddressValidationResult{Valid: false, Messages: []string{"no matching address found"}}, nil
	}
	if err != nil {
		return nil, err
	}

	result = &integration.AddressValidationResult{Valid: len(resp.Addresses) > 0}
	for i, a := range resp.Addresses {
		normalized := addr
		normalized.Line1 = a.Street
		normalized.Line2 = ""
		normalized.City = a.City
		normalized.State = a.State
		normalized.PostalCode = a.Zip
		normalized.CountryCode = a.Country
		if i == 0 {
			result.Normalized = &normalized
			continue
		}
		result.Suggestions = append(result.Suggestions, normalized)
	}
	return result, nil
}

// TaxCodes lists TaxJar product categories.
func (c *Client) TaxCodes(ctx context.Context) ([]tax.TaxCode, error) {
	resp, err := c.apiClient.Categories(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]tax.TaxCode, 0, len(resp.Categories))
	for _, cat := range resp.Categories {
		codes = append(codes, tax.TaxCode{Code: cat.ProductTaxCode, Description: cat.Name})
	}
	return codes, nil
}

// NexusLocations lists the account's nexus regions.
func (c *Client) NexusLocations(ctx context.Context) ([]tax.NexusLocation, error) {
	resp, err := c.apiClient.NexusRegions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]tax.NexusLocation, 0, len(resp.Regions))
	for _, r := range resp.Regions {
		out = append(out, tax.NexusLocation{Country: r.CountryCode, Region: r.RegionCode, Name: r.Region})
	}
	return out, nil
}

func (c *Client) commit(ctx context.Context, transactionID string) (pendingOrder, error) {
	item := c.pending.Get(transactionID)
	if item == nil {
		return pendingOrder{}, integration.NewError(providerName, integration.KindNotFound,
			"no pending calculation for transaction "+transactionID)
	}
	p := item.Value()

	if _, err := c.apiClient.CreateOrder(ctx, orderTransaction(&p.request, p.tax)); err != nil {
		c.logger.Ctx(ctx).Error("TaxJar API error", zap.Error(err))
		return pendingOrder{}, err
	}
	c.pending.Delete(transactionID)
	return p, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func taxRequest(req *tax.CalculationRequest) *TaxRequest {
	out := &TaxRequest{
		FromCountry: strings.ToUpper(req.Origin.CountryCode),
		FromZip:     req.Origin.PostalCode,
		FromState:   req.Origin.State,
		FromCity:    req.Origin.City,
		FromStreet:  req.Origin.Line1,
		ToCountry:   strings.ToUpper(req.Destination.CountryCode),
		ToZip:       req.Destination.PostalCode,
		ToState:     req.Destination.State,
		ToCity:      req.Destination.City,
		ToStreet:    req.Destination.Line1,
		Amount:      req.Subtotal().InexactFloat64(),
		Shipping:    req.Shipping.InexactFloat64(),
		CustomerID:  req.CustomerID,
	}
	if req.ExemptionNumber != "" {
		out.ExemptionType = "other"
	}
	for _, l := range req.LineItems {
		out.LineItems = append(out.LineItems, TaxLineItem{
			ID:             l.ID,
			Quantity:       max(l.Quantity, 1),
			ProductTaxCode: l.TaxCode,
			UnitPrice:      l.UnitPrice.InexactFloat64(),
			Discount:       l.Discount.InexactFloat64(),
		})
	}
	return out
}

func orderTransaction(req *tax.CalculationRequest, t *Tax) *OrderTransaction {
	tr := taxRequest(req)
	date := req.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	order := &OrderTransaction{
		TransactionID:   req.TransactionID,
		TransactionDate: date.Format(dateLayout),
		FromCountry:     tr.FromCountry,
		FromZip:         tr.FromZip,
		FromState:       tr.FromState,
		FromCity:        tr.FromCity,
		FromStreet:      tr.FromStreet,
		ToCountry:       tr.ToCountry,
		ToZip:           tr.ToZip,
		ToState:         tr.ToState,
		ToCity:          tr.ToCity,
		ToStreet:        tr.ToStreet,
		Amount:          tr.Amount + tr.Shipping,
		Shipping:        tr.Shipping,
		SalesTax:        t.AmountToCollect,
		CustomerID:      tr.CustomerID,
		ExemptionType:   tr.ExemptionType,
	}
	lineTax := map[string]float64{}
	if t.Breakdown != nil {
		for _, l := range t.Breakdown.LineItems {
			lineTax[l.ID] = l.TaxCollectable
		}
	}
	for i, l := range req.LineItems {
		order.LineItems = append(order.LineItems, OrderLineItem{
			ID:                l.ID,
			Quantity:          tr.LineItems[i].Quantity,
			ProductIdentifier: l.SKU,
			Description:       l.Description,
			ProductTaxCode:    l.TaxCode,
			UnitPrice:         tr.LineItems[i].UnitPrice,
			Discount:          tr.LineItems[i].Discount,
			SalesTax:          lineTax[l.ID],
		})
	}
	return order
}

func toResponse(req *tax.CalculationRequest, t *Tax) *tax.CalculationResponse {
	subtotal := req.Subtotal()
	resp := &tax.CalculationResponse{
		Provider:      providerName,
		TransactionID: req.TransactionID,
		Status:        tax.StatusCalculated,
		Currency:      req.Currency,
		Subtotal:      subtotal,
		ShippingTax:   decimal.Zero,
		TotalTax:      money(t.AmountToCollect),
		Total:         subtotal.Add(req.Shipping).Add(money(t.AmountToCollect)),
		CalculatedAt:  time.Now().UTC(),
	}
	if resp.Currency == "" {
		resp.Currency = "USD"
	}

	b := t.Breakdown
	if b == nil {
		return resp
	}
	if b.Shipping != nil {
		resp.ShippingTax = money(b.Shipping.TaxCollectable)
	}
	for _, l := range b.LineItems {
		resp.Lines = append(resp.Lines, tax.LineTax{
			LineID:  l.ID,
			Taxable: money(l.TaxableAmount),
			Tax:     money(l.TaxCollectable),
			Rate:    decimal.NewFromFloat(l.CombinedTaxRate),
		})
	}

	var names Jurisdictions
	if t.Jurisdictions != nil {
		names = *t.Jurisdictions
	}
	for _, j := range []struct {
		name, kind string
		rate, tax  float64
	}{
		{names.State, "STATE", b.StateTaxRate, b.StateTaxCollectable},
		{names.County, "COUNTY", b.CountyTaxRate, b.CountyTaxCollectable},
		{names.City, "CITY", b.CityTaxRate, b.CityTaxCollectable},
		{"", "SPECIAL", b.SpecialTaxRate, b.SpecialDistrictTaxCollectable},
	} {
		if j.rate == 0 && j.tax == 0 {
			continue
		}
		resp.Jurisdictions = append(resp.Jurisdictions, tax.Jurisdiction{
			Name: j.name,
			Type: j.kind,
			Rate: decimal.NewFromFloat(j.rate),
			Tax:  money(j.tax),
		})
	}
	return resp
}

func orderResponse(o *OrderTransaction) *tax.CalculationResponse {
	return &tax.CalculationResponse{
		Provider:      providerName,
		TransactionID: o.TransactionID,
		Currency:      "USD",
		Subtotal:      money(o.Amount - o.Shipping),
		ShippingTax:   decimal.Zero,
		TotalTax:      money(o.SalesTax),
		Total:         money(o.Amount + o.SalesTax),
		CalculatedAt:  time.Now().UTC(),
	}
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
