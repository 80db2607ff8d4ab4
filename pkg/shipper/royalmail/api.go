package royalmail

import (
	"context"
)

// APIClient defines the interface for Royal Mail API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// GetRates prices the requested parcels for every eligible service
	GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error)

	// CreateShipment books a shipment and returns its label
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)

	// GetTracking retrieves the mailpiece summary and events
	GetTracking(ctx context.Context, trackingNumber string) (*TrackingResponse, error)

	// CancelShipment voids a booked shipment
	CancelShipment(ctx context.Context, shipmentID string) (*CancelResponse, error)

	// ValidateAddress checks an address against the Postcode Address File
	ValidateAddress(ctx context.Context, req *AddressRequest) (*AddressResponse, error)

	// GetServices lists the services enabled on the account
	GetServices(ctx context.Context) (*ServicesResponse, error)
}

// ============================================================================
// API Request/Response Types (Royal Mail Shipping API v3 shapes)
// ============================================================================

// Parcel is one piece. Royal Mail works in kilograms and centimetres.
type Parcel struct {
	WeightKg float64 `json:"weightInKg"`
	LengthCm float64 `json:"lengthInCm,omitempty"`
	WidthCm  float64 `json:"widthInCm,omitempty"`
	HeightCm float64 `json:"heightInCm,omitempty"`
	Contents string  `json:"contents,omitempty"`
}

// Party is a sender or recipient.
type Party struct {
	FullName     string `json:"fullName"`
	CompanyName  string `json:"companyName,omitempty"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	County       string `json:"county,omitempty"`
	Postcode     string `json:"postcode"`
	CountryCode  string `json:"countryCode"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// RatesRequest is the body of POST /shipping/v3/rates.
type RatesRequest struct {
	AccountNumber string   `json:"accountNumber,omitempty"`
	FromPostcode  string   `json:"fromPostcode"`
	FromCountry   string   `json:"fromCountryCode"`
	ToPostcode    string   `json:"toPostcode"`
	ToCountry     string   `json:"toCountryCode"`
	Parcels       []Parcel `json:"parcels"`
	ServiceCodes  []string `json:"serviceCodes,omitempty"`
}

// RatesResponse lists priced services.
type RatesResponse struct {
	Rates []Rate `json:"rates"`
}

// Rate is a priced service.
type Rate struct {
	ServiceCode  string  `json:"serviceCode"`
	ServiceName  string  `json:"serviceName"`
	NetPrice     float64 `json:"netPrice"`
	VAT          float64 `json:"vat"`
	TotalPrice   float64 `json:"totalPrice"`
	Currency     string  `json:"currency"`
	TransitDays  int     `json:"transitDays"`
	Guaranteed   bool    `json:"guaranteed"`
	DeliveryDate string  `json:"expectedDeliveryDate,omitempty"` // YYYY-MM-DD
}

// ShipmentRequest is the body of POST /shipping/v3/shipments.
type ShipmentRequest struct {
	AccountNumber  string   `json:"accountNumber,omitempty"`
	OrderReference string   `json:"orderReference,omitempty"`
	ServiceCode    string   `json:"serviceCode"`
	Sender         Party    `json:"sender"`
	Recipient      Party    `json:"recipient"`
	Parcels        []Parcel `json:"parcels"`
	LabelFormat    string   `json:"labelFormat"`
	ShippingDate   string   `json:"shippingDate,omitempty"`
}

// ShipmentResponse is a booked shipment.
type ShipmentResponse struct {
	ShipmentID     string  `json:"shipmentId"`
	TrackingNumber string  `json:"trackingNumber"`
	ServiceCode    string  `json:"serviceCode"`
	TotalPrice     float64 `json:"totalPrice"`
	Currency       string  `json:"currency"`
	Label          string  `json:"label"` // base64
	LabelFormat    string  `json:"labelFormat"`
	DeliveryDate   string  `json:"expectedDeliveryDate,omitempty"`
}

// TrackingResponse is the body of GET /tracking/v2/mailpieces/{id}/events.
type TrackingResponse struct {
	MailPieceID string          `json:"mailPieceId"`
	Summary     TrackingSummary `json:"summary"`
	Events      []TrackingEvent `json:"events"`
}

// TrackingSummary holds the latest status.
type TrackingSummary struct {
	StatusCode        string `json:"statusCode"`
	StatusDescription string `json:"statusDescription"`
	EstimatedDelivery string `json:"estimatedDeliveryDate,omitempty"`
}

// TrackingEvent is one scan.
type TrackingEvent struct {
	EventCode     string `json:"eventCode"`
	EventName     string `json:"eventName"`
	EventDateTime string `json:"eventDateTime"` // RFC3339
	LocationName  string `json:"locationName,omitempty"`
}

// CancelResponse is the result of DELETE /shipping/v3/shipments/{id}.
type CancelResponse struct {
	ShipmentID string `json:"shipmentId"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

// AddressRequest is the body of POST /addresses/v1/validate.
type AddressRequest struct {
	Address Party `json:"address"`
}

// AddressResponse is the validation verdict.
type AddressResponse struct {
	Valid       bool     `json:"valid"`
	Address     *Party   `json:"address,omitempty"`
	Suggestions []Party  `json:"suggestions,omitempty"`
	Messages    []string `json:"messages,omitempty"`
}

// ServicesResponse lists enabled services.
type ServicesResponse struct {
	Services []ServiceInfo `json:"services"`
}

// ServiceInfo describes one service.
type ServiceInfo struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	International bool   `json:"international"`
}
