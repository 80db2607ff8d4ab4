// Package avalara provides integration with the Avalara AvaTax REST v2 API.
package avalara

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/tax"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	providerName = "avalara"

	productionURL = "https://rest.avatax.com"
	sandboxURL    = "https://sandbox-rest.avatax.com"

	defaultCompanyCode = "DEFAULT"
	shippingLine       = "shipping"
	shippingTaxCode    = "FR020100"
	dateLayout         = "2006-01-02"
)

var jurisdictionTypes = map[string]string{
	"STA": "STATE",
	"CTY": "COUNTY",
	"CIT": "CITY",
	"STJ": "SPECIAL",
	"CNT": "COUNTRY",
}

// Config holds AvaTax configuration.
type Config struct {
	AccountID   string
	LicenseKey  string
	CompanyCode string
	CompanyID   int // required for nexus lookups only
	BaseURL     string
	Timeout     time.Duration
	UseMock     bool
}

// Client is the AvaTax tax client. It implements tax.Calculator.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new AvaTax client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:    cfg.BaseURL,
			AccountID:  cfg.AccountID,
			LicenseKey: cfg.LicenseKey,
			Timeout:    cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new AvaTax client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if cfg.CompanyCode == "" {
		cfg.CompanyCode = defaultCompanyCode
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// FromProviderConfig builds a client from decrypted integration settings.
func FromProviderConfig(cfg integration.ProviderConfig, logger *otelzap.Logger, tracer trace.Tracer) tax.Calculator {
	companyID, _ := strconv.Atoi(cfg.Settings.String("companyId", "company_id"))
	return New(Config{
		AccountID:   cfg.Credentials.String("accountId", "account_id"),
		LicenseKey:  cfg.Credentials.String("licenseKey", "license_key"),
		CompanyCode: cfg.Settings.String("companyCode", "company_code"),
		CompanyID:   companyID,
		BaseURL:     cfg.BaseURL(productionURL, sandboxURL),
		UseMock:     cfg.UseMock(),
	}, logger, tracer)
}

// Name returns the provider name.
func (c *Client) Name() string {
	return providerName
}

// IsConfigured reports whether the account id and license key are present.
func (c *Client) IsConfigured() bool {
	if c.config.UseMock {
		return true
	}
	return strings.TrimSpace(c.config.AccountID) != "" && strings.TrimSpace(c.config.LicenseKey) != ""
}

// TestConnection pings AvaTax. A ping answered with authenticated=false
// counts as a failure.
func (c *Client) TestConnection(ctx context.Context) integration.ConnectionResult {
	return integration.RunConnectionTest(ctx, providerName, func(ctx context.Context) (map[string]any, error) {
		if !c.IsConfigured() {
			return nil, integration.NotConfigured(providerName, "accountId", "licenseKey")
		}
		resp, err := c.apiClient.Ping(ctx)
		if err != nil {
			return nil, err
		}
		details := map[string]any{"version": resp.Version}
		if !resp.Authenticated {
			return details, integration.NewError(providerName, integration.KindAuthentication, "credentials were not accepted")
		}
		return details, nil
	})
}

// CalculateTax creates a SalesInvoice when the request names a
// transaction, and an unrecorded SalesOrder quote otherwise.
func (c *Client) CalculateTax(ctx context.Context, req *tax.CalculationRequest) (resp *tax.CalculationResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, providerName, "CalculateTax")
	defer func() { integration.EndSpan(span, err) }()

	c.logger.Ctx(ctx).Info("Calculating AvaTax tax",
		zap.String("transaction_id", req.TransactionID),
		zap.String("to_postal_code", req.Destination.PostalCode),
		zap.Int("line_count", len(req.LineItems)),
	)

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	model := c.transactionModel(req)
	tx, err := c.apiClient.CreateTransaction(ctx, model)
	if err != nil {
		c.logger.Ctx(ctx).Error("AvaTax API error", zap.Error(err))
		return nil, err
	}
	return toResponse(tx), nil
}

// CommitTransaction commits a SalesInvoice.
func (c *Client) CommitTransaction(ctx context.Context, transactionID string) (resp *tax.CalculationResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, providerName, "CommitTransaction")
	defer func() { integration.EndSpan(span, err) }()

	if strings.TrimSpace(transactionID) == "" {
		return nil, integration.Validation(providerName, "transaction id is required")
	}
	c.logger.Ctx(ctx).Info("Committing AvaTax transaction", zap.String("transaction_id", transactionID))

	tx, err := c.apiClient.CommitTransaction(ctx, c.config.CompanyCode, transactionID)
	if err != nil {
		c.logger.Ctx(ctx).Error("AvaTax API error", zap.Error(err))
		return nil, err
	}
	return toResponse(tx), nil
}

// VoidTransaction voids a transaction with reason DocVoided.
func (c *Client) VoidTransaction(ctx context.Context, transactionID string) (resp *tax.CalculationResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, providerName, "VoidTransaction")
	defer func() { integration.EndSpan(span, err) }()

	if strings.TrimSpace(transactionID) == "" {
		return nil, integration.Validation(providerName, "transaction id is required")
	}
	c.logger.Ctx(ctx).Info("Voiding AvaTax transaction", zap.String("transaction_id", transactionID))

	tx, err := c.apiClient.VoidTransaction(ctx, c.config.CompanyCode, transactionID)
	if err != nil {
		c.logger.Ctx(ctx).Error("AvaTax API error", zap.Error(err))
		return nil, err
	}
	return toResponse(tx), nil
}

// RefundTransaction refunds a committed transaction. A partial amount is
// sent as a percentage of the original total.
func (c *Client) RefundTransaction(ctx context.Context, req *tax.RefundRequest) (resp *tax.CalculationResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, providerName, "RefundTransaction")
	defer func() { integration.EndSpan(span, err) }()

	if strings.TrimSpace(req.TransactionID) == "" {
		return nil, integration.Validation(providerName, "transaction id is required")
	}
	c.logger.Ctx(ctx).Info("Refunding AvaTax transaction",
		zap.String("transaction_id", req.TransactionID),
		zap.Bool("partial", req.Amount != nil),
	)

	date := req.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	model := &RefundTransactionModel{
		RefundTransactionCode: req.RefundTransactionID,
		RefundDate:            date.Format(dateLayout),
		RefundType:            "Full",
		ReferenceCode:         req.Reason,
	}

	if req.Amount != nil {
		orig, err := c.apiClient.GetTransaction(ctx, c.config.CompanyCode, req.TransactionID)
		if err != nil {
			return nil, err
		}
		total := decimal.NewFromFloat(orig.TotalAmount)
		if !total.IsPositive() {
			return nil, integration.Validation(providerName, "transaction %s has no refundable amount", req.TransactionID)
		}
		if req.Amount.GreaterThan(total) {
			return nil, integration.Validation(providerName, "refund amount %s exceeds transaction total %s", req.Amount.String(), total.String())
		}
		if req.Amount.LessThan(total) {
			pct := req.Amount.Div(total).Mul(decimal.NewFromInt(100)).Round(4).InexactFloat64()
			model.RefundType = "Percentage"
			model.RefundPercentage = &pct
		}
	}

	tx, err := c.apiClient.RefundTransaction(ctx, c.config.CompanyCode, req.TransactionID, model)
	if err != nil {
		c.logger.Ctx(ctx).Error("AvaTax API error", zap.Error(err))
		return nil, err
	}
	resp = toResponse(tx)
	resp.Status = tax.StatusRefunded
	return resp, nil
}

// ValidateAddress resolves an address with the AvaTax address service.
func (c *Client) ValidateAddress(ctx context.Context, addr integration.Address) (result *integration.AddressValidationResult, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, providerName, "ValidateAddress")
	defer func() { integration.EndSpan(span, err) }()

	resp, err := c.apiClient.ResolveAddress(ctx, addressToAPI(addr))
	if err != nil {
		return nil, err
	}

	result = &integration.AddressValidationResult{Valid: len(resp.ValidatedAddresses) > 0}
	for _, m := range resp.Messages {
		result.Messages = append(result.Messages, m.Summary)
		if m.Severity == "Error" || m.Severity == "Exception" {
			result.Valid = false
		}
	}
	if result.Valid {
		normalized := addressFromAPI(resp.ValidatedAddresses[0], addr)
		result.Normalized = &normalized
	}
	for _, v := range resp.ValidatedAddresses[min(1, len(resp.ValidatedAddresses)):] {
		result.Suggestions = append(result.Suggestions, addressFromAPI(v, addr))
	}
	return result, nil
}

// TaxCodes lists the active AvaTax system tax codes.
func (c *Client) TaxCodes(ctx context.Context) ([]tax.TaxCode, error) {
	resp, err := c.apiClient.ListTaxCodes(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]tax.TaxCode, 0, len(resp.Value))
	for _, r := range resp.Value {
		if !r.IsActive {
			continue
		}
		codes = append(codes, tax.TaxCode{Code: r.TaxCode, Description: r.Description})
	}
	return codes, nil
}

// NexusLocations lists the company's declared nexus. It needs the
// numeric company id setting.
func (c *Client) NexusLocations(ctx context.Context) ([]tax.NexusLocation, error) {
	if c.config.CompanyID == 0 {
		return nil, integration.NotConfigured(providerName, "companyId")
	}
	resp, err := c.apiClient.ListNexus(ctx, c.config.CompanyID)
	if err != nil {
		return nil, err
	}
	out := make([]tax.NexusLocation, 0, len(resp.Value))
	for _, n := range resp.Value {
		out = append(out, tax.NexusLocation{Country: n.Country, Region: n.Region, Name: n.JurisName})
	}
	return out, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func validateRequest(req *tax.CalculationRequest) error {
	if len(req.LineItems) == 0 {
		return integration.Validation(providerName, "at least one line item is required")
	}
	if strings.TrimSpace(req.Destination.PostalCode) == "" || strings.TrimSpace(req.Destination.CountryCode) == "" {
		return integration.Validation(providerName, "destination postal code and country are required")
	}
	return nil
}

func (c *Client) transactionModel(req *tax.CalculationRequest) *CreateTransactionModel {
	date := req.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	docType := "SalesOrder"
	if req.TransactionID != "" {
		docType = "SalesInvoice"
	}
	customer := req.CustomerID
	if customer == "" {
		customer = "guest"
	}

	model := &CreateTransactionModel{
		Type:         docType,
		Code:         req.TransactionID,
		CompanyCode:  c.config.CompanyCode,
		Date:         date.Format(dateLayout),
		CustomerCode: customer,
		CurrencyCode: req.Currency,
		ExemptionNo:  req.ExemptionNumber,
		Commit:       req.Commit && docType == "SalesInvoice",
		Addresses: Addresses{
			ShipFrom: addressToAPI(req.Origin),
			ShipTo:   addressToAPI(req.Destination),
		},
	}
	for i, l := range req.LineItems {
		number := l.ID
		if number == "" {
			number = strconv.Itoa(i + 1)
		}
		qty := l.Quantity
		if qty < 1 {
			qty = 1
		}
		model.Lines = append(model.Lines, LineItemModel{
			Number:      number,
			Quantity:    float64(qty),
			Amount:      l.Amount().InexactFloat64(),
			TaxCode:     l.TaxCode,
			ItemCode:    l.SKU,
			Description: l.Description,
		})
	}
	if req.Shipping.IsPositive() {
		model.Lines = append(model.Lines, LineItemModel{
			Number:   shippingLine,
			Quantity: 1,
			Amount:   req.Shipping.InexactFloat64(),
			TaxCode:  shippingTaxCode,
		})
	}
	return model
}

func toResponse(tx *TransactionModel) *tax.CalculationResponse {
	resp := &tax.CalculationResponse{
		Provider:      providerName,
		TransactionID: tx.Code,
		Status:        mapStatus(tx.Status),
		Currency:      tx.CurrencyCode,
		Subtotal:      decimal.Zero,
		ShippingTax:   decimal.Zero,
		TotalTax:      money(tx.TotalTax),
		Total:         money(tx.TotalAmount + tx.TotalTax),
		CalculatedAt:  time.Now().UTC(),
	}
	for _, l := range tx.Lines {
		if l.LineNumber == shippingLine {
			resp.ShippingTax = money(l.Tax)
			continue
		}
		resp.Subtotal = resp.Subtotal.Add(money(l.LineAmount))
		line := tax.LineTax{LineID: l.LineNumber, Taxable: money(l.TaxableAmount), Tax: money(l.Tax), Rate: decimal.Zero}
		if l.TaxableAmount != 0 {
			line.Rate = decimal.NewFromFloat(l.Tax).Div(decimal.NewFromFloat(l.TaxableAmount)).Round(6)
		}
		resp.Lines = append(resp.Lines, line)
	}
	if len(tx.Lines) == 0 {
		resp.Subtotal = money(tx.TotalAmount)
	}
	for _, s := range tx.Summary {
		jt, ok := jurisdictionTypes[s.JurisType]
		if !ok {
			jt = s.JurisType
		}
		resp.Jurisdictions = append(resp.Jurisdictions, tax.Jurisdiction{
			Name: s.JurisName,
			Type: jt,
			Rate: decimal.NewFromFloat(s.Rate),
			Tax:  money(s.Tax),
		})
	}
	return resp
}

func mapStatus(status string) tax.TransactionStatus {
	switch strings.ToLower(status) {
	case "committed", "posted":
		return tax.StatusCommitted
	case "cancelled":
		return tax.StatusVoided
	case "temporary":
		return tax.StatusTemporary
	default:
		return tax.StatusCalculated
	}
}

func addressToAPI(a integration.Address) *AddressInfo {
	return &AddressInfo{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.State,
		PostalCode: a.PostalCode,
		Country:    strings.ToUpper(a.CountryCode),
	}
}

func addressFromAPI(a AddressInfo, orig integration.Address) integration.Address {
	out := orig
	out.Line1 = a.Line1
	out.Line2 = a.Line2
	out.City = a.City
	out.State = a.Region
	out.PostalCode = a.PostalCode
	out.CountryCode = a.Country
	return out
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
