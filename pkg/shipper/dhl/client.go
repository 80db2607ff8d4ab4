// Package dhl provides integration with the DHL eCommerce Americas API.
package dhl

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	carrierName = "dhl"

	productionURL = "https://api.dhlecs.com"
	sandboxURL    = "https://api-sandbox.dhlecs.com"

	maxPackageIDLength = 30
)

var statusMapper = shipper.NewStatusMapper(
	shipper.StatusRule{Match: "electronic notification", Status: shipper.StatusPreTransit},
	shipper.StatusRule{Match: "label created", Status: shipper.StatusPreTransit},
	shipper.StatusRule{Match: "cancel", Status: shipper.StatusCancelled},
	shipper.StatusRule{Match: "return", Status: shipper.StatusReturnToSender},
	shipper.StatusRule{Match: "attempt", Status: shipper.StatusFailedAttempt},
	shipper.StatusRule{Match: "out for delivery", Status: shipper.StatusOutForDelivery},
	shipper.StatusRule{Match: "delivered", Status: shipper.StatusDelivered},
	shipper.StatusRule{Match: "exception", Status: shipper.StatusException},
	shipper.StatusRule{Match: "held", Status: shipper.StatusException},
	shipper.StatusRule{Match: "damaged", Status: shipper.StatusException},
	shipper.StatusRule{Match: "arriv", Status: shipper.StatusInTransit},
	shipper.StatusRule{Match: "depart", Status: shipper.StatusInTransit},
	shipper.StatusRule{Match: "processed", Status: shipper.StatusInTransit},
	shipper.StatusRule{Match: "tendered", Status: shipper.StatusInTransit},
)

var services = []shipper.Service{
	{Code: "GND", Name: "DHL Parcel Ground", Type: shipper.ServiceStandard, Domestic: true},
	{Code: "EXP", Name: "DHL Parcel Expedited", Type: shipper.ServiceExpress, Domestic: true},
	{Code: "MAX", Name: "DHL Parcel Expedited Max", Type: shipper.ServicePriority, Domestic: true},
	{Code: "PLT", Name: "DHL Parcel International Direct", Type: shipper.ServicePriority, International: true},
	{Code: "PLY", Name: "DHL Parcel International Standard", Type: shipper.ServiceEconomy, International: true},
}

// Config holds DHL eCommerce configuration.
type Config struct {
	ClientID           string
	ClientSecret       string
	PickupAccount      string
	DistributionCenter string
	BaseURL            string
	Timeout            time.Duration
	UseMock            bool
}

// Client is the DHL eCommerce carrier client.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new DHL client.
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

// NewWithAPIClient creates a new DHL client with a custom API client.
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
		ClientID:           cfg.Credentials.String("clientId", "client_id"),
		ClientSecret:       cfg.Credentials.String("clientSecret", "client_secret"),
		PickupAccount:      cfg.Credentials.String("pickupAccount", "pickup_account"),
		DistributionCenter: cfg.Settings.String("distributionCenter"),
		BaseURL:            cfg.BaseURL(productionURL, sandboxURL),
		UseMock:            cfg.UseMock(),
	}, logger, tracer)
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// IsConfigured reports whether credentials and the pickup account are present.
func (c *Client) IsConfigured() bool {
	if c.config.UseMock {
		return true
	}
	return c.config.ClientID != "" && c.config.ClientSecret != "" && c.config.PickupAccount != ""
}

// TestConnection acquires an access token.
func (c *Client) TestConnection(ctx context.Context) integration.ConnectionResult {
	return integration.RunConnectionTest(ctx, carrierName, func(ctx context.Context) (map[string]any, error) {
		if !c.IsConfigured() {
			return nil, integration.NotConfigured(carrierName, "clientId", "clientSecret", "pickupAccount")
		}
		if err := c.apiClient.Authenticate(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"pickupAccount": c.config.PickupAccount}, nil
	})
}

// GetRates prices the shipment as one consolidated package.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest) (rates []shipper.Rate, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, carrierName, "GetRates")
	defer func() { integration.EndSpan(span, err) }()

	c.logger.Info("Getting DHL rates",
		zap.String("destination_postal_code", req.Destination.PostalCode),
		zap.Int("package_count", len(req.Packages)),
	)

	if len(req.Packages) == 0 {
		return nil, integration.Validation(carrierName, "at least one package is required")
	}

	apiReq := &ProductsRequest{
		PickupAccount:      c.config.PickupAccount,
		DistributionCenter: c.config.DistributionCenter,
		ConsigneeAddress:   addressToAPI(req.Destination),
		ReturnAddress:      addressToAPI(req.Origin),
		PackageDetail:      consolidate(req.Packages),
		Rate:               RateOptions{Calculate: true, Currency: "USD"},
	}
	apiReq.EstimatedDeliveryDate.Calculate = true

	apiResp, err := c.apiClient.GetProducts(ctx, apiReq)
	if err != nil {
		c.logger.Error("DHL API error", zap.Error(err))
		return nil, err
	}

	wanted := make(map[string]bool, len(req.ServiceCodes))
	for _, code := range req.ServiceCodes {
		wanted[code] = true
	}

	rates = make([]shipper.Rate, 0, len(apiResp.Products))
	for _, p := range apiResp.Products {
		if p.Rate == nil {
			continue
		}
		if len(wanted) > 0 && !wanted[p.OrderedProductID] {
			continue
		}
		currency := p.Rate.Currency
		if currency == "" {
			currency = "USD"
		}
		rate := shipper.Rate{
			Provider:    carrierName,
			RateID:      carrierName + ":" + p.OrderedProductID,
			ServiceCode: p.OrderedProductID,
			ServiceName: p.ProductName,
			ServiceType: mapServiceType(p.OrderedProductID),
			BaseRate:    shipper.NewMoney(p.Rate.Amount, currency),
			Surcharges:  shipper.NewMoney(0, currency),
			TotalPrice:  shipper.NewMoney(p.Rate.Amount, currency),
		}
		if p.Estimate != nil {
			rate.TransitDays = p.Estimate.DeliveryDaysMax
			if t, err := time.Parse("2006-01-02", p.Estimate.EstimatedDeliveryMax); err == nil {
				rate.EstimatedDelivery = &t
			}
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

// CreateShipment books one package. DHL eCommerce labels a single
// package per request.
func (c *Client) CreateShipment(ctx context.Context, req *shipper.ShipmentRequest) (resp *shipper.ShipmentResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, carrierName, "CreateShipment")
	defer func() { integration.EndSpan(span, err) }()

	c.logger.Info("Creating DHL shipment",
		zap.String("order_id", req.OrderID),
		zap.String("product", req.ServiceCode),
	)

	if err := integration.ValidateShippingParties(carrierName, req.Sender, req.Recipient); err != nil {
		return nil, err
	}
	if req.ServiceCode == "" {
		return nil, integration.Validation(carrierName, "service code is required")
	}
	if len(req.Packages) != 1 {
		return nil, integration.Validation(carrierName, "exactly one package per shipment is supported, got %d", len(req.Packages))
	}

	detail := consolidate(req.Packages)
	detail.PackageID = packageID(firstNonEmpty(req.Reference, req.OrderID))

	format := "PNG"
	if req.LabelFormat == shipper.LabelZPL {
		format = "ZPL"
	}

	apiResp, err := c.apiClient.CreateLabel(ctx, &LabelRequest{
		PickupAccount:      c.config.PickupAccount,
		DistributionCenter: c.config.DistributionCenter,
		OrderedProductID:   req.ServiceCode,
		ConsigneeAddress:   addressToAPI(req.Recipient),
		ReturnAddress:      addressToAPI(req.Sender),
		PackageDetail:      detail,
	}, format)
	if err != nil {
		c.logger.Error("DHL API error", zap.Error(err))
		return nil, err
	}
	if len(apiResp.Labels) == 0 {
		return nil, integration.NewError(carrierName, integration.KindUpstream, "label response contained no labels")
	}

	label := apiResp.Labels[0]
	return &shipper.ShipmentResponse{
		Provider:       carrierName,
		ShipmentID:     firstNonEmpty(label.PackageID, detail.PackageID),
		TrackingNumber: firstNonEmpty(label.TrackingID, label.DHLPackageID),
		TrackingURL:    "https://webtrack.dhlecs.com/?trackingnumber=" + firstNonEmpty(label.TrackingID, label.DHLPackageID),
		ServiceCode:    req.ServiceCode,
		TotalCharged:   shipper.NewMoney(0, "USD"),
		LabelFormat:    shipper.LabelFormat(strings.ToUpper(firstNonEmpty(label.Format, format))),
		LabelData:      label.LabelData,
	}, nil
}

// TrackShipment returns the tracking state of a package.
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
	if len(apiResp.Packages) == 0 {
		return nil, integration.NewError(carrierName, integration.KindNotFound, "no tracking results for "+trackingNumber)
	}

	pkg := apiResp.Packages[0]
	resp = &shipper.TrackingResponse{
		Provider:       carrierName,
		TrackingNumber: trackingNumber,
		Status:         shipper.StatusUnknown,
	}
	if t, err := time.Parse("2006-01-02", pkg.Package.ExpectedDeliveryDate); err == nil {
		resp.EstimatedDelivery = &t
	}
	for i, e := range pkg.Events {
		status, mapped := statusMapper.Map(e.PrimaryEventDescription)
		if i == 0 {
			resp.Status = status
			resp.StatusDescription = e.PrimaryEventDescription
			resp.VendorStatus = e.PrimaryEventDescription
			resp.Unmapped = !mapped
		}
		resp.Events = append(resp.Events, shipper.TrackingEvent{
			Timestamp:   eventTime(e),
			Status:      status,
			Code:        itoa(e.PrimaryEventID),
			Description: e.PrimaryEventDescription,
			Location:    e.Location,
		})
	}
	return resp, nil
}

// CancelShipment voids an unmanifested label by package id.
func (c *Client) CancelShipment(ctx context.Context, shipmentID string) (resp *shipper.CancelResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, carrierName, "CancelShipment")
	defer func() { integration.EndSpan(span, err) }()

	c.logger.Info("Cancelling DHL shipment", zap.String("package_id", shipmentID))

	if err := c.apiClient.DeleteLabel(ctx, c.config.PickupAccount, shipmentID); err != nil {
		c.logger.Error("DHL API error", zap.Error(err))
		return nil, err
	}
	return &shipper.CancelResponse{Provider: carrierName, ShipmentID: shipmentID, Cancelled: true}, nil
}

// ValidateAddress performs structural checks. DHL eCommerce offers no
// address validation endpoint.
func (c *Client) ValidateAddress(ctx context.Context, addr integration.Address) (*integration.AddressValidationResult, error) {
	var messages []string
	if strings.TrimSpace(addr.Line1) == "" {
		messages = append(messages, "address line 1 is required")
	}
	if strings.TrimSpace(addr.City) == "" {
		messages = append(messages, "city is required")
	}
	if strings.TrimSpace(addr.PostalCode) == "" {
		messages = append(messages, "postal code is required")
	}
	country := strings.ToUpper(strings.TrimSpace(addr.CountryCode))
	if len(country) != 2 {
		messages = append(messages, "country must be an ISO 3166-1 alpha-2 code")
	}
	if country == "US" && strings.TrimSpace(addr.State) == "" {
		messages = append(messages, "state is required for US addresses")
	}

	result := &integration.AddressValidationResult{Valid: len(messages) == 0, Messages: messages}
	if result.Valid {
		normalized := addr
		normalized.CountryCode = country
		normalized.State = strings.ToUpper(strings.TrimSpace(addr.State))
		normalized.PostalCode = strings.ToUpper(strings.TrimSpace(addr.PostalCode))
		result.Normalized = &normalized
	}
	return result, nil
}

// AvailableServices returns the DHL eCommerce product catalogue.
func (c *Client) AvailableServices(ctx context.Context) ([]shipper.Service, error) {
	out := make([]shipper.Service, len(services))
	copy(out, services)
	return out, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func addressToAPI(a integration.Address) Address {
	return Address{
		Name:        firstNonEmpty(a.Name, a.Company),
		CompanyName: a.Company,
		Address1:    a.Line1,
		Address2:    a.Line2,
		City:        a.City,
		State:       a.State,
		PostalCode:  a.PostalCode,
		Country:     strings.ToUpper(a.CountryCode),
		Phone:       integration.DigitsOnly(a.Phone),
		Email:       a.Email,
	}
}

// consolidate merges packages into one: weights add up (in grams), the
// largest dimensions win.
func consolidate(pkgs []shipper.Package) PackageDetail {
	var grams, length, width, height float64
	var descriptions []string
	for _, p := range pkgs {
		grams += p.Weight * 1000
		length = math.Max(length, p.Length)
		width = math.Max(width, p.Width)
		height = math.Max(height, p.Height)
		if p.Description != "" {
			descriptions = append(descriptions, p.Description)
		}
	}

	detail := PackageDetail{
		PackageDescription: strings.Join(descriptions, ", "),
		Weight:             Measure{Value: math.Max(1, math.Round(grams)), UnitOfMeasure: "G"},
	}
	if length > 0 && width > 0 && height > 0 {
		detail.Dimension = &Dimension{Length: length, Width: width, Height: height, UnitOfMeasure: "CM"}
	}
	return detail
}

func packageID(reference string) string {
	id := reference
	if id == "" {
		id = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	if len(id) > maxPackageIDLength {
		id = id[:maxPackageIDLength]
	}
	return id
}

func eventTime(e Event) time.Time {
	loc := time.UTC
	if e.Timezone != "" {
		if l, err := time.LoadLocation(e.Timezone); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", e.Date+" "+e.Time, loc)
	if err != nil {
		t, _ = time.ParseInLocation("2006-01-02", e.Date, loc)
	}
	return t
}

func mapServiceType(code string) shipper.ServiceType {
	for _, s := range services {
		if s.Code == code {
			return s.Type
		}
	}
	return shipper.ServiceStandard
}

func itoa(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
