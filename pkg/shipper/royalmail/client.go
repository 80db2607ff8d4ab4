// Package royalmail provides integration with the Royal Mail shipping API.
package royalmail

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	carrierName = "royalmail"

	productionURL = "https://api.royalmail.net"
	sandboxURL    = "https://api.sandbox.royalmail.net"
)

var statusMapper = shipper.NewStatusMapper(
	shipper.StatusRule{Match: "cancel", Status: shipper.StatusCancelled},
	shipper.StatusRule{Match: "return", Status: shipper.StatusReturnToSender},
	shipper.StatusRule{Match: "undelivered", Status: shipper.StatusFailedAttempt},
	shipper.StatusRule{Match: "attempted", Status: shipper.StatusFailedAttempt},
	shipper.StatusRule{Match: "something_for_you", Status: shipper.StatusFailedAttempt},
	shipper.StatusRule{Match: "out_for_delivery", Status: shipper.StatusOutForDelivery},
	shipper.StatusRule{Match: "delivered", Status: shipper.StatusDelivered},
	shipper.StatusRule{Match: "held", Status: shipper.StatusException},
	shipper.StatusRule{Match: "exception", Status: shipper.StatusException},
	shipper.StatusRule{Match: "pre_advice", Status: shipper.StatusPreTransit},
	shipper.StatusRule{Match: "label_created", Status: shipper.StatusPreTransit},
	shipper.StatusRule{Match: "accepted", Status: shipper.StatusInTransit},
	shipper.StatusRule{Match: "in_transit", Status: shipper.StatusInTransit},
)

// Config holds Royal Mail configuration.
type Config struct {
	ClientID      string
	ClientSecret  string
	AccountNumber string // optional, selects contract pricing
	BaseURL       string
	Timeout       time.Duration
	UseMock       bool // When true, uses mock API client
}

// Client is the Royal Mail carrier client.
// It implements the shipper.Carrier interface and delegates
// API calls to the underlying APIClient (mock or HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new Royal Mail client.
// If cfg.UseMock is true, it uses a mock API client for testing.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:      cfg.BaseURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Timeout:      cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new Royal Mail client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// FromProviderConfig builds a client from decrypted integration settings.
func FromProviderConfig(cfg integration.ProviderConfig, logger *otelzap.Logger, tracer trace.Tracer) shipper.Carrier {
	return New(Config{
		ClientID:      cfg.Credentials.String("clientId", "client_id"),
		ClientSecret:  cfg.Credentials.String("clientSecret", "client_secret"),
		AccountNumber: cfg.Credentials.String("accountNumber", "account_number"),
		BaseURL:       cfg.BaseURL(productionURL, sandboxURL),
		UseMock:       cfg.UseMock(),
	}, logger, tracer)
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// IsConfigured reports whether the OAuth client credentials are present.
func (c *Client) IsConfigured() bool {
	if c.config.UseMock {
		return true
	}
	return strings.TrimSpace(c.config.ClientID) != "" && strings.TrimSpace(c.config.ClientSecret) != ""
}

// TestConnection lists the account's services, which requires a token.
func (c *Client) TestConnection(ctx context.Context) integration.ConnectionResult {
	return integration.RunConnectionTest(ctx, carrierName, func(ctx context.Context) (map[string]any, error) {
		if !c.IsConfigured() {
			return nil, integration.NotConfigured(carrierName, "clientId", "clientSecret")
		}
		resp, err := c.apiClient.GetServices(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"services": len(resp.Services)}, nil
	})
}

// GetRates returns shipping rates from Royal Mail.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest) (rates []shipper.Rate, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, carrierName, "GetRates")
	defer func() { integration.EndSpan(span, err) }()

	c.logger.Ctx(ctx).Info("Getting Royal Mail rates",
		zap.String("from_postcode", req.Origin.PostalCode),
		zap.String("to_postcode", req.Destination.PostalCode),
		zap.Int("package_count", len(req.Packages)),
	)

	if len(req.Packages) == 0 {
		return nil, integration.Validation(carrierName, "at least one package is required")
	}

	apiResp, err := c.apiClient.GetRates(ctx, &RatesRequest{
		AccountNumber: c.config.AccountNumber,
		FromPostcode:  req.Origin.PostalCode,
		FromCountry:   countryOrGB(req.Origin.CountryCode),
		ToPostcode:    req.Destination.PostalCode,
		ToCountry:     countryOrGB(req.Destination.CountryCode),
		Parcels:       packagesToAPI(req.Packages),
		ServiceCodes:  req.ServiceCodes,
	})
	if err != nil {
		c.logger.Ctx(ctx).Error("Royal Mail API error", zap.Error(err))
		return nil, err
	}

	return ratesToShipper(apiResp), nil
}

// CreateShipment books a shipment with Royal Mail.
func (c *Client) CreateShipment(ctx context.Context, req *shipper.ShipmentRequest) (resp *shipper.ShipmentResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, carrierName, "CreateShipment")
	defer func() { integration.EndSpan(span, err) }()

	c.logger.Ctx(ctx).Info("Creating Royal Mail shipment",
		zap.String("order_id", req.OrderID),
		zap.String("service_code", req.ServiceCode),
	)

	if err := integration.ValidateShippingParties(carrierName, req.Sender, req.Recipient); err != nil {
		return nil, err
	}
	if req.ServiceCode == "" {
		return nil, integration.Validation(carrierName, "service code is required")
	}

	format := req.LabelFormat
	if format == "" {
		format = shipper.LabelPDF
	}

	apiReq := &ShipmentRequest{
		AccountNumber:  c.config.AccountNumber,
		OrderReference: firstNonEmpty(req.Reference, req.OrderID),
		ServiceCode:    req.ServiceCode,
		Sender:         addressToParty(req.Sender),
		Recipient:      addressToParty(req.Recipient),
		Parcels:        packagesToAPI(req.Packages),
		LabelFormat:    string(format),
	}
	if req.ShipDate != nil {
		apiReq.ShippingDate = req.ShipDate.Format("2006-01-02")
	}

	apiResp, err := c.apiClient.CreateShipment(ctx, apiReq)
	if err != nil {
		c.logger.Ctx(ctx).Error("Royal Mail API error", zap.Error(err))
		return nil, err
	}

	return &shipper.ShipmentResponse{
		Provider:          carrierName,
		ShipmentID:        apiResp.ShipmentID,
		TrackingNumber:    apiResp.TrackingNumber,
		TrackingURL:       "https://www.royalmail.com/track-your-item#/tracking-results/" + apiResp.TrackingNumber,
		ServiceCode:       apiResp.ServiceCode,
		TotalCharged:      shipper.NewMoney(apiResp.TotalPrice, currencyOrGBP(apiResp.Currency)),
		LabelFormat:       shipper.LabelFormat(strings.ToUpper(apiResp.LabelFormat)),
		LabelData:         apiResp.Label,
		EstimatedDelivery: parseDate(apiResp.DeliveryDate),
	}, nil
}

// TrackShipment returns the tracking state of a mailpiece.
func (c *Client) TrackShipment(ctx context.Context, trackingNumber string) (resp *shipper.TrackingResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, carrierName, "TrackShipment")
	defer func() { integration.EndSpan(span, err) }()

	if strings.TrimSpace(trackingNumber) == "" {
		return nil, integration.Validation(carrierName, "tracking number is required")
	}

	apiResp, err := c.apiClient.GetTracking(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}

	status, mapped := statusMapper.Map(apiResp.Summary.StatusCode)
	resp = &shipper.TrackingResponse{
		Provider:          carrierName,
		TrackingNumber:    trackingNumber,
		Status:            status,
		StatusDescription: apiResp.Summary.StatusDescription,
		VendorStatus:      apiResp.Summary.StatusCode,
		Unmapped:          !mapped,
		EstimatedDelivery: parseDate(apiResp.Summary.EstimatedDelivery),
		Events:            make([]shipper.TrackingEvent, 0, len(apiResp.Events)),
	}
	for _, e := range apiResp.Events {
		ts, _ := time.Parse(time.RFC3339, e.EventDateTime)
		eventStatus, _ := statusMapper.Map(e.EventCode)
		resp.Events = append(resp.Events, shipper.TrackingEvent{
			Timestamp:   ts,
			Status:      eventStatus,
			Code:        e.EventCode,
			Description: e.EventName,
			Location:    e.LocationName,
		})
	}
	return resp, nil
}

// CancelShipment cancels a shipment with Royal Mail.
func (c *Client) CancelShipment(ctx context.Context, shipmentID string) (resp *shipper.CancelResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, carrierName, "CancelShipment")
	defer func() { integration.EndSpan(span, err) }()

	c.logger.Ctx(ctx).Info("Cancelling Royal Mail shipment", zap.String("shipment_id", shipmentID))

	apiResp, err := c.apiClient.CancelShipment(ctx, shipmentID)
	if err != nil {
		c.logger.Ctx(ctx).Error("Royal Mail API error", zap.Error(err))
		return nil, err
	}

	status, _ := statusMapper.Map(apiResp.Status)
	return &shipper.CancelResponse{
		Provider:   carrierName,
		ShipmentID: shipmentID,
		Cancelled:  status == shipper.StatusCancelled,
		Message:    apiResp.Message,
	}, nil
}

// ValidateAddress checks an address against Royal Mail's address service.
func (c *Client) ValidateAddress(ctx context.Context, addr integration.Address) (result *integration.AddressValidationResult, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, carrierName, "ValidateAddress")
	defer func() { integration.EndSpan(span, err) }()

	apiResp, err := c.apiClient.ValidateAddress(ctx, &AddressRequest{Address: addressToParty(addr)})
	if err != nil {
		return nil, err
	}

	result = &integration.AddressValidationResult{
		Valid:    apiResp.Valid,
		Messages: apiResp.Messages,
	}
	if apiResp.Address != nil {
		normalized := partyToAddress(*apiResp.Address, addr)
		result.Normalized = &normalized
	}
	for _, s := range apiResp.Suggestions {
		result.Suggestions = append(result.Suggestions, partyToAddress(s, addr))
	}
	return result, nil
}

// AvailableServices lists the services enabled on the account.
func (c *Client) AvailableServices(ctx context.Context) ([]shipper.Service, error) {
	apiResp, err := c.apiClient.GetServices(ctx)
	if err != nil {
		return nil, err
	}
	services := make([]shipper.Service, len(apiResp.Services))
	for i, s := range apiResp.Services {
		services[i] = shipper.Service{
			Code:          s.Code,
			Name:          s.Name,
			Type:          mapServiceType(s.Code),
			Domestic:      !s.International,
			International: s.International,
		}
	}
	return services, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func addressToParty(a integration.Address) Party {
	return Party{
		FullName:     a.Name,
		CompanyName:  a.Company,
		AddressLine1: a.Line1,
		AddressLine2: a.Line2,
		City:         a.City,
		County:       a.State,
		Postcode:     a.PostalCode,
		CountryCode:  countryOrGB(a.CountryCode),
		PhoneNumber:  integration.DigitsOnly(a.Phone),
		EmailAddress: a.Email,
	}
}

func partyToAddress(p Party, original integration.Address) integration.Address {
	return integration.Address{
		Name:          firstNonEmpty(p.FullName, original.Name),
		Company:       firstNonEmpty(p.CompanyName, original.Company),
		Line1:         p.AddressLine1,
		Line2:         p.AddressLine2,
		City:          p.City,
		State:         p.County,
		PostalCode:    p.Postcode,
		CountryCode:   p.CountryCode,
		Phone:         original.Phone,
		Email:         original.Email,
		IsResidential: original.IsResidential,
	}
}

func packagesToAPI(pkgs []shipper.Package) []Parcel {
	result := make([]Parcel, len(pkgs))
	for i, p := range pkgs {
		result[i] = Parcel{
			WeightKg: p.Weight,
			LengthCm: p.Length,
			WidthCm:  p.Width,
			HeightCm: p.Height,
			Contents: p.Description,
		}
	}
	return result
}

func ratesToShipper(resp *RatesResponse) []shipper.Rate {
	rates := make([]shipper.Rate, 0, len(resp.Rates))
	for _, r := range resp.Rates {
		currency := currencyOrGBP(r.Currency)
		total := decimal.NewFromFloat(r.TotalPrice)
		if total.IsZero() {
			total = decimal.NewFromFloat(r.NetPrice).Add(decimal.NewFromFloat(r.VAT))
		}
		rates = append(rates, shipper.Rate{
			Provider:          carrierName,
			RateID:            carrierName + ":" + r.ServiceCode,
			ServiceCode:       r.ServiceCode,
			ServiceName:       r.ServiceName,
			ServiceType:       mapServiceType(r.ServiceCode),
			BaseRate:          shipper.NewMoney(r.NetPrice, currency),
			Surcharges:        shipper.NewMoney(r.VAT, currency),
			TotalPrice:        shipper.Money{Amount: total, Currency: currency},
			TransitDays:       r.TransitDays,
			EstimatedDelivery: parseDate(r.DeliveryDate),
			Guaranteed:        r.Guaranteed,
		})
	}
	return rates
}

func mapServiceType(code string) shipper.ServiceType {
	switch strings.ToUpper(code) {
	case "SD1", "SD4":
		return shipper.ServiceOvernight
	case "TRN", "TRM":
		return shipper.ServiceExpress
	case "TPS", "TPL":
		return shipper.ServiceStandard
	case "CRL", "STL":
		return shipper.ServiceEconomy
	case "MTI", "MTE":
		return shipper.ServicePriority
	default:
		return shipper.ServiceStandard
	}
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func countryOrGB(code string) string {
	if code == "" {
		return "GB"
	}
	return strings.ToUpper(code)
}

func currencyOrGBP(code string) string {
	if code == "" {
		return "GBP"
	}
	return code
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
