// Package fedex provides integration with the FedEx REST APIs.
package fedex

import (
	"context"
	"math"
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
	carrierName = "fedex"

	productionURL = "https://apis.fedex.com"
	sandboxURL    = "https://apis-sandbox.fedex.com"

	kgToLb = 2.20462
	cmToIn = 2.54
)

var statusMapper = shipper.NewStatusMapper(
	shipper.StatusRule{Match: "shipment information sent", Status: shipper.StatusPreTransit},
	shipper.StatusRule{Match: "label created", Status: shipper.StatusPreTransit},
	shipper.StatusRule{Match: "cancel", Status: shipper.StatusCancelled},
	shipper.StatusRule{Match: "return", Status: shipper.StatusReturnToSender},
	shipper.StatusRule{Match: "delivery attempted", Status: shipper.StatusFailedAttempt},
	shipper.StatusRule{Match: "exception", Status: shipper.StatusException},
	shipper.StatusRule{Match: "on fedex vehicle for delivery", Status: shipper.StatusOutForDelivery},
	shipper.StatusRule{Match: "out for delivery", Status: shipper.StatusOutForDelivery},
	shipper.StatusRule{Match: "delivered", Status: shipper.StatusDelivered},
	shipper.StatusRule{Match: "picked up", Status: shipper.StatusInTransit},
	shipper.StatusRule{Match: "in transit", Status: shipper.StatusInTransit},
	shipper.StatusRule{Match: "fedex facility", Status: shipper.StatusInTransit},
)

var transitDays = map[string]int{
	"ONE_DAY": 1, "TWO_DAYS": 2, "THREE_DAYS": 3, "FOUR_DAYS": 4, "FIVE_DAYS": 5,
	"SIX_DAYS": 6, "SEVEN_DAYS": 7, "EIGHT_DAYS": 8, "NINE_DAYS": 9, "TEN_DAYS": 10,
}

var services = []shipper.Service{
	{Code: "FEDEX_GROUND", Name: "FedEx Ground", Type: shipper.ServiceStandard, Domestic: true},
	{Code: "GROUND_HOME_DELIVERY", Name: "FedEx Home Delivery", Type: shipper.ServiceStandard, Domestic: true},
	{Code: "FEDEX_EXPRESS_SAVER", Name: "FedEx Express Saver", Type: shipper.ServiceEconomy, Domestic: true},
	{Code: "FEDEX_2_DAY", Name: "FedEx 2Day", Type: shipper.ServiceExpress, Domestic: true},
	{Code: "STANDARD_OVERNIGHT", Name: "FedEx Standard Overnight", Type: shipper.ServiceOvernight, Domestic: true},
	{Code: "PRIORITY_OVERNIGHT", Name: "FedEx Priority Overnight", Type: shipper.ServicePriority, Domestic: true},
	{Code: "INTERNATIONAL_ECONOMY", Name: "FedEx International Economy", Type: shipper.ServiceEconomy, International: true},
	{Code: "INTERNATIONAL_PRIORITY", Name: "FedEx International Priority", Type: shipper.ServicePriority, International: true},
}

// Config holds FedEx configuration.
type Config struct {
	ClientID          string
	ClientSecret      string
	AccountNumber     string
	PickupCarrierCode string // FDXE (express) or FDXG (ground)
	BaseURL           string
	Timeout           time.Duration
	UseMock           bool
}

// Client is the FedEx carrier client.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new FedEx client.
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

// NewWithAPIClient creates a new FedEx client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if cfg.PickupCarrierCode == "" {
		cfg.PickupCarrierCode = "FDXE"
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
		ClientID:          cfg.Credentials.String("clientId", "apiKey", "client_id"),
		ClientSecret:      cfg.Credentials.String("clientSecret", "secretKey", "client_secret"),
		AccountNumber:     cfg.Credentials.String("accountNumber", "account_number"),
		PickupCarrierCode: cfg.Settings.String("pickupCarrierCode"),
		BaseURL:           cfg.BaseURL(productionURL, sandboxURL),
		UseMock:           cfg.UseMock(),
	}, logger, tracer)
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// IsConfigured reports whether OAuth credentials and the account number are present.
func (c *Client) IsConfigured() bool {
	if c.config.UseMock {
		return true
	}
	return c.config.ClientID != "" && c.config.ClientSecret != "" && c.config.AccountNumber != ""
}

// TestConnection acquires an OAuth token.
func (c *Client) TestConnection(ctx context.Context) integration.ConnectionResult {
	return integration.RunConnectionTest(ctx, carrierName, func(ctx context.Context) (map[string]any, error) {
		if !c.IsConfigured() {
			return nil, integration.NotConfigured(carrierName, "clientId", "clientSecret", "accountNumber")
		}
		if err := c.apiClient.Authenticate(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"accountNumber": c.config.AccountNumber}, nil
	})
}

// GetRates returns shipping rates from FedEx.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest) (rates []shipper.Rate, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, carrierName, "GetRates")
	defer func() { integration.EndSpan(span, err) }()

	c.logger.Info("Getting FedEx rates",
		zap.String("origin_postal_code", req.Origin.PostalCode),
		zap.String("destination_postal_code", req.Destination.PostalCode),
		zap.Int("package_count", len(req.Packages)),
	)

	if len(req.Packages) == 0 {
		return nil, integration.Validation(carrierName, "at least one package is required")
	}

	apiReq := &RateRequest{
		AccountNumber: AccountNumber{Value: c.config.AccountNumber},
		RequestedShipment: RateShipmentRequest{
			Shipper:                   Party{Address: addressToAPI(req.Origin)},
			Recipient:                 Party{Address: addressToAPI(req.Destination)},
			PickupType:                "DROPOFF_AT_FEDEX_LOCATION",
			RateRequestType:           []string{"ACCOUNT", "LIST"},
			RequestedPackageLineItems: packagesToAPI(req.Packages),
		},
	}
	if len(req.ServiceCodes) == 1 {
		apiReq.RequestedShipment.ServiceType = req.ServiceCodes[0]
	}
	if req.ShipDate != nil {
		apiReq.RequestedShipment.ShipDateStamp = req.ShipDate.Format("2006-01-02")
	}

	apiResp, err := c.apiClient.GetRates(ctx, apiReq)
	if err != nil {
		c.logger.Error("FedEx API error", zap.Error(err))
		return nil, err
	}

	return ratesToShipper(apiResp, req.ServiceCodes), nil
}

// CreateShipment books a shipment with FedEx.
func (c *Client) CreateShipment(ctx context.Context, req *shipper.ShipmentRequest) (resp *shipper.ShipmentResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, carrierName, "CreateShipment")
	defer func() { integration.EndSpan(span, err) }()

	c.logger.Info("Creating FedEx shipment",
		zap.String("order_id", req.OrderID),
		zap.String("service_code", req.ServiceCode),
	)

	if err := integration.ValidateShippingParties(carrierName, req.Sender, req.Recipient); err != nil {
		return nil, err
	}
	if req.ServiceCode == "" {
		return nil, integration.Validation(carrierName, "service code is required")
	}
	if len(req.Packages) == 0 {
		return nil, integration.Validation(carrierName, "at least one package is required")
	}

	format := req.LabelFormat
	if format == "" {
		format = shipper.LabelPDF
	}

	apiReq := &ShipRequest{
		AccountNumber:        AccountNumber{Value: c.config.AccountNumber},
		LabelResponseOptions: "LABEL",
		RequestedShipment: ShipShipmentRequest{
			Shipper:                   partyToAPI(req.Sender),
			Recipients:                []Party{partyToAPI(req.Recipient)},
			ServiceType:               req.ServiceCode,
			PackagingType:             "YOUR_PACKAGING",
			PickupType:                "DROPOFF_AT_FEDEX_LOCATION",
			ShippingChargesPayment:    ShippingChargesPayment{PaymentType: "SENDER"},
			LabelSpecification:        LabelSpecification{ImageType: labelImageType(format), LabelStockType: "PAPER_4X6"},
			RequestedPackageLineItems: packagesToAPI(req.Packages),
			CustomerReference:         firstNonEmpty(req.Reference, req.OrderID),
		},
	}
	if req.ShipDate != nil {
		apiReq.RequestedShipment.ShipDateStamp = req.ShipDate.Format("2006-01-02")
	}

	apiResp, err := c.apiClient.CreateShipment(ctx, apiReq)
	if err != nil {
		c.logger.Error("FedEx API error", zap.Error(err))
		return nil, err
	}
	if len(apiResp.Output.TransactionShipments) == 0 {
		return nil, integration.NewError(carrierName, integration.KindUpstream, "ship response contained no shipments")
	}

	shipment := apiResp.Output.TransactionShipments[0]
	resp = &shipper.ShipmentResponse{
		Provider:       carrierName,
		ShipmentID:     shipment.MasterTrackingNumber,
		TrackingNumber: shipment.MasterTrackingNumber,
		TrackingURL:    "https://www.fedex.com/fedextrack/?trknbr=" + shipment.MasterTrackingNumber,
		ServiceCode:    shipment.ServiceType,
		LabelFormat:    format,
	}

	total := decimal.Zero
	currency := "USD"
	for _, piece := range shipment.PieceResponses {
		total = total.Add(decimal.NewFromFloat(piece.NetChargeAmount))
		if piece.Currency != "" {
			currency = piece.Currency
		}
		if resp.LabelData == "" && resp.LabelURL == "" && len(piece.PackageDocuments) > 0 {
			resp.LabelData = piece.PackageDocuments[0].EncodedLabel
			resp.LabelURL = piece.PackageDocuments[0].URL
		}
	}
	resp.TotalCharged = shipper.Money{Amount: total, Currency: currency}
	return resp, nil
}

// TrackShipment returns the tracking state of a package.
func (c *Client) TrackShipment(ctx context.Context, trackingNumber string) (resp *shipper.TrackingResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, carrierName, "TrackShipment")
	defer func() { integration.EndSpan(span, err) }()

	if strings.TrimSpace(trackingNumber) == "" {
		return nil, integration.Validation(carrierName, "tracking number is required")
	}

	apiReq := &TrackRequest{
		IncludeDetailedScans: true,
		TrackingInfo:         []TrackingInfo{{TrackingNumberInfo: TrackingNumberInfo{TrackingNumber: trackingNumber}}},
	}
	apiResp, err := c.apiClient.Track(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	if len(apiResp.Output.CompleteTrackResults) == 0 || len(apiResp.Output.CompleteTrackResults[0].TrackResults) == 0 {
		return nil, integration.NewError(carrierName, integration.KindNotFound, "no tracking results for "+trackingNumber)
	}
	result := apiResp.Output.CompleteTrackResults[0].TrackResults[0]
	if result.Error != nil {
		return nil, integration.NewError(carrierName, integration.KindNotFound, result.Error.Message).
			WithCode(result.Error.Code)
	}

	vendorStatus := firstNonEmpty(result.LatestStatusDetail.Description, result.LatestStatusDetail.Code)
	status, mapped := statusMapper.Map(vendorStatus)
	resp = &shipper.TrackingResponse{
		Provider:          carrierName,
		TrackingNumber:    trackingNumber,
		Status:            status,
		StatusDescription: result.LatestStatusDetail.Description,
		VendorStatus:      vendorStatus,
		Unmapped:          !mapped,
	}
	for _, dt := range result.DateAndTimes {
		if dt.Type == "ESTIMATED_DELIVERY" {
			if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
				resp.EstimatedDelivery = &t
			}
		}
	}
	for _, e := range result.ScanEvents {
		ts, _ := time.Parse(time.RFC3339, e.Date)
		eventStatus, _ := statusMapper.Map(e.EventDescription)
		location := e.ScanLocation.City
		if e.ScanLocation.CountryCode != "" {
			location = strings.TrimPrefix(location+", "+e.ScanLocation.CountryCode, ", ")
		}
		resp.Events = append(resp.Events, shipper.TrackingEvent{
			Timestamp:   ts,
			Status:      eventStatus,
			Code:        e.EventType,
			Description: e.EventDescription,
			Location:    location,
		})
	}
	return resp, nil
}

// CancelShipment deletes a shipment. FedEx identifies shipments by their
// master tracking number.
func (c *Client) CancelShipment(ctx context.Context, shipmentID string) (resp *shipper.CancelResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, carrierName, "CancelShipment")
	defer func() { integration.EndSpan(span, err) }()

	c.logger.Info("Cancelling FedEx shipment", zap.String("tracking_number", shipmentID))

	apiResp, err := c.apiClient.CancelShipment(ctx, &CancelRequest{
		AccountNumber:   AccountNumber{Value: c.config.AccountNumber},
		TrackingNumber:  shipmentID,
		DeletionControl: "DELETE_ALL_PACKAGES",
	})
	if err != nil {
		c.logger.Error("FedEx API error", zap.Error(err))
		return nil, err
	}

	return &shipper.CancelResponse{
		Provider:   carrierName,
		ShipmentID: shipmentID,
		Cancelled:  apiResp.Output.CancelledShipment,
		Message:    apiResp.Output.Message,
	}, nil
}

// ValidateAddress resolves an address with FedEx address validation.
func (c *Client) ValidateAddress(ctx context.Context, addr integration.Address) (result *integration.AddressValidationResult, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, carrierName, "ValidateAddress")
	defer func() { integration.EndSpan(span, err) }()

	apiResp, err := c.apiClient.ResolveAddress(ctx, &AddressRequest{
		AddressesToValidate: []AddressToValidate{{Address: addressToAPI(addr)}},
	})
	if err != nil {
		return nil, err
	}

	result = &integration.AddressValidationResult{}
	if len(apiResp.Output.ResolvedAddresses) == 0 {
		result.Messages = []string{"address could not be resolved"}
		return result, nil
	}

	resolved := apiResp.Output.ResolvedAddresses[0]
	result.Valid = strings.EqualFold(resolved.Attributes.Resolved, "true")
	for _, m := range resolved.CustomerMessages {
		result.Messages = append(result.Messages, firstNonEmpty(m.Message, m.Code))
	}

	normalized := addr
	if len(resolved.StreetLinesToken) > 0 {
		normalized.Line1 = resolved.StreetLinesToken[0]
		normalized.Line2 = ""
		if len(resolved.StreetLinesToken) > 1 {
			normalized.Line2 = strings.Join(resolved.StreetLinesToken[1:], " ")
		}
	}
	normalized.City = firstNonEmpty(resolved.City, addr.City)
	normalized.State = firstNonEmpty(resolved.StateOrProvinceCode, addr.State)
	normalized.PostalCode = firstNonEmpty(resolved.PostalCode, addr.PostalCode)
	normalized.CountryCode = firstNonEmpty(resolved.CountryCode, addr.CountryCode)
	normalized.IsResidential = resolved.Classification == "RESIDENTIAL"
	result.Normalized = &normalized
	return result, nil
}

// SchedulePickup books a FedEx collection.
func (c *Client) SchedulePickup(ctx context.Context, req *shipper.PickupRequest) (resp *shipper.PickupResponse, err error) {
	ctx, span := integration.StartSpan(ctx, c.tracer, carrierName, "SchedulePickup")
	defer func() { integration.EndSpan(span, err) }()

	if err := integration.ValidatePhone(carrierName, "pickup", req.Address.Phone); err != nil {
		return nil, err
	}
	if req.ReadyTime.IsZero() {
		return nil, integration.Validation(carrierName, "pickup ready time is required")
	}

	closeTime := req.CloseTime
	if closeTime.IsZero() {
		closeTime = time.Date(req.ReadyTime.Year(), req.ReadyTime.Month(), req.ReadyTime.Day(), 17, 0, 0, 0, req.ReadyTime.Location())
	}
	packageCount := req.PackageCount
	if packageCount < 1 {
		packageCount = 1
	}

	apiResp, err := c.apiClient.CreatePickup(ctx, &PickupRequest{
		AssociatedAccountNumber: AccountNumber{Value: c.config.AccountNumber},
		OriginDetail: OriginDetail{
			PickupLocation:     partyToAPI(req.Address),
			ReadyDateTimestamp: req.ReadyTime.UTC().Format("2006-01-02T15:04:05Z"),
			CustomerCloseTime:  closeTime.Format("15:04:05"),
		},
		PackageCount: packageCount,
		TotalWeight:  Weight{Units: "LB", Value: toPounds(req.TotalWeight)},
		CarrierCode:  c.config.PickupCarrierCode,
		Remarks:      req.Instructions,
	})
	if err != nil {
		c.logger.Error("FedEx API error", zap.Error(err))
		return nil, err
	}

	return &shipper.PickupResponse{
		Provider:           carrierName,
		ConfirmationNumber: apiResp.Output.PickupConfirmationCode,
		PickupDate:         req.ReadyTime,
		Location:           apiResp.Output.Location,
	}, nil
}

// AvailableServices returns the FedEx service catalogue.
func (c *Client) AvailableServices(ctx context.Context) ([]shipper.Service, error) {
	out := make([]shipper.Service, len(services))
	copy(out, services)
	return out, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func addressToAPI(a integration.Address) Address {
	var lines []string
	for _, l := range []string{a.Line1, a.Line2} {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return Address{
		StreetLines:         lines,
		City:                a.City,
		StateOrProvinceCode: a.State,
		PostalCode:          a.PostalCode,
		CountryCode:         strings.ToUpper(a.CountryCode),
		Residential:         a.IsResidential,
	}
}

func partyToAPI(a integration.Address) Party {
	return Party{
		Address: addressToAPI(a),
		Contact: &Contact{
			PersonName:   a.Name,
			CompanyName:  a.Company,
			PhoneNumber:  integration.DigitsOnly(a.Phone),
			EmailAddress: a.Email,
		},
	}
}

func packagesToAPI(pkgs []shipper.Package) []PackageLineItem {
	items := make([]PackageLineItem, len(pkgs))
	for i, p := range pkgs {
		items[i] = PackageLineItem{Weight: Weight{Units: "LB", Value: toPounds(p.Weight)}}
		if p.Length > 0 && p.Width > 0 && p.Height > 0 {
			items[i].Dimensions = &Dimensions{
				Length: toInches(p.Length),
				Width:  toInches(p.Width),
				Height: toInches(p.Height),
				Units:  "IN",
			}
		}
	}
	return items
}

// toPounds converts kilograms to pounds rounded to one decimal, never below 0.1.
func toPounds(kg float64) float64 {
	lb := math.Round(kg*kgToLb*10) / 10
	if lb < 0.1 {
		return 0.1
	}
	return lb
}

// toInches converts centimetres to whole inches, rounding up.
func toInches(cm float64) int {
	return int(math.Ceil(cm / cmToIn))
}

func ratesToShipper(resp *RateResponse, serviceCodes []string) []shipper.Rate {
	wanted := make(map[string]bool, len(serviceCodes))
	for _, code := range serviceCodes {
		wanted[code] = true
	}

	rates := make([]shipper.Rate, 0, len(resp.Output.RateReplyDetails))
	for _, d := range resp.Output.RateReplyDetails {
		if len(wanted) > 0 && !wanted[d.ServiceType] {
			continue
		}
		detail, ok := preferredRate(d.RatedShipmentDetails)
		if !ok {
			continue
		}
		currency := detail.Currency
		if currency == "" {
			currency = "USD"
		}

		var estimated *time.Time
		if d.OperationalDetail.DeliveryDate != "" {
			if t, err := time.Parse("2006-01-02T15:04:05", d.OperationalDetail.DeliveryDate); err == nil {
				estimated = &t
			}
		}

		rates = append(rates, shipper.Rate{
			Provider:          carrierName,
			RateID:            carrierName + ":" + d.ServiceType,
			ServiceCode:       d.ServiceType,
			ServiceName:       d.ServiceName,
			ServiceType:       mapServiceType(d.ServiceType),
			BaseRate:          shipper.NewMoney(detail.TotalBaseCharge, currency),
			Surcharges:        shipper.NewMoney(detail.TotalSurcharges, currency),
			TotalPrice:        shipper.NewMoney(detail.TotalNetCharge, currency),
			TransitDays:       transitDays[d.OperationalDetail.TransitTime],
			EstimatedDelivery: estimated,
			Guaranteed:        d.Commit.Guaranteed,
		})
	}
	return rates
}

// preferredRate picks the negotiated ACCOUNT rate over the LIST rate.
func preferredRate(details []RatedShipmentDetail) (RatedShipmentDetail, bool) {
	if len(details) == 0 {
		return RatedShipmentDetail{}, false
	}
	for _, d := range details {
		if d.RateType == "ACCOUNT" {
			return d, true
		}
	}
	return details[0], true
}

func mapServiceType(code string) shipper.ServiceType {
	for _, s := range services {
		if s.Code == code {
			return s.Type
		}
	}
	switch {
	case strings.Contains(code, "OVERNIGHT"):
		return shipper.ServiceOvernight
	case strings.Contains(code, "PRIORITY"):
		return shipper.ServicePriority
	case strings.Contains(code, "ECONOMY"), strings.Contains(code, "SAVER"):
		return shipper.ServiceEconomy
	default:
		return shipper.ServiceStandard
	}
}

func labelImageType(format shipper.LabelFormat) string {
	switch format {
	case shipper.LabelPNG:
		return "PNG"
	case shipper.LabelZPL:
		return "ZPLII"
	default:
		return "PDF"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
