package shipper

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/integrations/pkg/integration"
)

// TrackingStatus is the normalized shipment status every carrier maps onto.
type TrackingStatus string

const (
	StatusUnknown        TrackingStatus = "UNKNOWN"
	StatusPreTransit     TrackingStatus = "PRE_TRANSIT"
	StatusInTransit      TrackingStatus = "IN_TRANSIT"
	StatusOutForDelivery TrackingStatus = "OUT_FOR_DELIVERY"
	StatusDelivered      TrackingStatus = "DELIVERED"
	StatusFailedAttempt  TrackingStatus = "FAILED_ATTEMPT"
	StatusException      TrackingStatus = "EXCEPTION"
	StatusReturnToSender TrackingStatus = "RETURN_TO_SENDER"
	StatusCancelled      TrackingStatus = "CANCELLED"
)

// ServiceType represents the shipping service type.
type ServiceType string

const (
	ServiceStandard  ServiceType = "standard"
	ServiceExpress   ServiceType = "express"
	ServicePriority  ServiceType = "priority"
	ServiceOvernight ServiceType = "overnight"
	ServiceEconomy   ServiceType = "economy"
)

// LabelFormat represents the format of shipping labels.
type LabelFormat string

const (
	LabelPDF LabelFormat = "PDF"
	LabelPNG LabelFormat = "PNG"
	LabelZPL LabelFormat = "ZPL"
)

// Money represents a monetary amount.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney builds a Money from a float amount.
func NewMoney(amount float64, currency string) Money {
	return Money{Amount: decimal.NewFromFloat(amount), Currency: currency}
}

// Package represents a parcel. Weight is in kilograms, dimensions in
// centimetres; adapters convert to vendor units.
type Package struct {
	Weight      float64 `json:"weight"`
	Length      float64 `json:"length,omitempty"`
	Width       float64 `json:"width,omitempty"`
	Height      float64 `json:"height,omitempty"`
	Description string  `json:"description,omitempty"`
	Value       *Money  `json:"value,omitempty"`
}

// TotalWeight sums the weight of all packages.
func TotalWeight(pkgs []Package) float64 {
	var total float64
	for _, p := range pkgs {
		total += p.Weight
	}
	return total
}

// RateRequest is the request for getting shipping rates.
type RateRequest struct {
	Origin       integration.Address `json:"origin"`
	Destination  integration.Address `json:"destination"`
	Packages     []Package           `json:"packages"`
	ServiceCodes []string            `json:"serviceCodes,omitempty"` // empty = all services
	ShipDate     *time.Time          `json:"shipDate,omitempty"`
}

// Rate is one priced service option from a carrier.
type Rate struct {
	Provider          string      `json:"provider"`
	RateID            string      `json:"rateId,omitempty"`
	ServiceCode       string      `json:"serviceCode"`
	ServiceName       string      `json:"serviceName"`
	ServiceType       ServiceType `json:"serviceType"`
	BaseRate          Money       `json:"baseRate"`
	Surcharges        Money       `json:"surcharges"`
	TotalPrice        Money       `json:"totalPrice"`
	TransitDays       int         `json:"transitDays"`
	EstimatedDelivery *time.Time  `json:"estimatedDelivery,omitempty"`
	Guaranteed        bool        `json:"guaranteed"`
}

// ShipmentRequest is the request for booking a shipment.
type ShipmentRequest struct {
	OrderID     string              `json:"orderId,omitempty"`
	Reference   string              `json:"reference,omitempty"`
	ServiceCode string              `json:"serviceCode"`
	Sender      integration.Address `json:"sender"`
	Recipient   integration.Address `json:"recipient"`
	Packages    []Package           `json:"packages"`
	LabelFormat LabelFormat         `json:"labelFormat,omitempty"`
	ShipDate    *time.Time          `json:"shipDate,omitempty"`
}

// ShipmentResponse is the booked shipment.
type ShipmentResponse struct {
	Provider          string      `json:"provider"`
	ShipmentID        string      `json:"shipmentId"`
	TrackingNumber    string      `json:"trackingNumber"`
	TrackingURL       string      `json:"trackingUrl,omitempty"`
	ServiceCode       string      `json:"serviceCode"`
	TotalCharged      Money       `json:"totalCharged"`
	LabelFormat       LabelFormat `json:"labelFormat,omitempty"`
	LabelData         string      `json:"labelData,omitempty"` // base64 when inline
	LabelURL          string      `json:"labelUrl,omitempty"`
	EstimatedDelivery *time.Time  `json:"estimatedDelivery,omitempty"`
}

// TrackingEvent is one scan in a shipment's history.
type TrackingEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	Status      TrackingStatus `json:"status"`
	Code        string         `json:"code,omitempty"`
	Description string         `json:"description"`
	Location    string         `json:"location,omitempty"`
}

// TrackingResponse is the normalized tracking state.
type TrackingResponse struct {
	Provider          string          `json:"provider"`
	TrackingNumber    string          `json:"trackingNumber"`
	Status            TrackingStatus  `json:"status"`
	StatusDescription string          `json:"statusDescription,omitempty"`
	VendorStatus      string          `json:"vendorStatus,omitempty"`
	Unmapped          bool            `json:"unmapped,omitempty"` // vendor code fell through to the default
	EstimatedDelivery *time.Time      `json:"estimatedDelivery,omitempty"`
	Events            []TrackingEvent `json:"events,omitempty"`
}

// CancelResponse is the outcome of a cancellation.
type CancelResponse struct {
	Provider   string `json:"provider"`
	ShipmentID string `json:"shipmentId"`
	Cancelled  bool   `json:"cancelled"`
	Message    string `json:"message,omitempty"`
}

// PickupRequest is the request for booking a collection.
type PickupRequest struct {
	Address      integration.Address `json:"address"`
	ReadyTime    time.Time           `json:"readyTime"`
	CloseTime    time.Time           `json:"closeTime"`
	PackageCount int                 `json:"packageCount"`
	TotalWeight  float64             `json:"totalWeight"`
	Instructions string              `json:"instructions,omitempty"`
}

// PickupResponse is the booked collection.
type PickupResponse struct {
	Provider           string    `json:"provider"`
	ConfirmationNumber string    `json:"confirmationNumber"`
	PickupDate         time.Time `json:"pickupDate"`
	Location           string    `json:"location,omitempty"`
}

// Service describes one product in a carrier's catalogue.
type Service struct {
	Code          string      `json:"code"`
	Name          string      `json:"name"`
	Type          ServiceType `json:"type"`
	Domestic      bool        `json:"domestic"`
	International bool        `json:"international"`
}
