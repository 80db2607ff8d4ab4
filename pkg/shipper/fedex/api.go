package fedex

import (
	"context"
)

// APIClient defines the interface for FedEx API operations.
type APIClient interface {
	// Authenticate acquires (or reuses) an OAuth token
	Authenticate(ctx context.Context) error

	// GetRates fetches rate quotes
	GetRates(ctx context.Context, req *RateRequest) (*RateResponse, error)

	// CreateShipment books a shipment and returns labels
	CreateShipment(ctx context.Context, req *ShipRequest) (*ShipResponse, error)

	// Track retrieves tracking results
	Track(ctx context.Context, req *TrackRequest) (*TrackResponse, error)

	// CancelShipment deletes a shipment by tracking number
	CancelShipment(ctx context.Context, req *CancelRequest) (*CancelResponse, error)

	// ResolveAddress validates and standardizes an address
	ResolveAddress(ctx context.Context, req *AddressRequest) (*AddressResponse, error)

	// CreatePickup schedules a courier collection
	CreatePickup(ctx context.Context, req *PickupRequest) (*PickupResponse, error)
}

// ============================================================================
// API Request/Response Types (FedEx REST API shapes)
// ============================================================================

// AccountNumber wraps the shipper account.
type AccountNumber struct {
	Value string `json:"value"`
}

// Address is the FedEx postal address.
type Address struct {
	StreetLines         []string `json:"streetLines,omitempty"`
	City                string   `json:"city,omitempty"`
	StateOrProvinceCode string   `json:"stateOrProvinceCode,omitempty"`
	PostalCode          string   `json:"postalCode"`
	CountryCode         string   `json:"countryCode"`
	Residential         bool     `json:"residential,omitempty"`
}

// Contact is the person attached to an address.
type Contact struct {
	PersonName   string `json:"personName,omitempty"`
	CompanyName  string `json:"companyName,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// Party is a shipper or recipient.
type Party struct {
	Address Address  `json:"address"`
	Contact *Contact `json:"contact,omitempty"`
}

// Weight in pounds.
type Weight struct {
	Units string  `json:"units"`
	Value float64 `json:"value"`
}

// Dimensions in inches.
type Dimensions struct {
	Length int    `json:"length"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Units  string `json:"units"`
}

// PackageLineItem is one piece.
type PackageLineItem struct {
	Weight     Weight      `json:"weight"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
}

// RateRequest is the body of POST /rate/v1/rates/quotes.
type RateRequest struct {
	AccountNumber     AccountNumber       `json:"accountNumber"`
	RequestedShipment RateShipmentRequest `json:"requestedShipment"`
}

// RateShipmentRequest describes what to price.
type RateShipmentRequest struct {
	Shipper                   Party             `json:"shipper"`
	Recipient                 Party             `json:"recipient"`
	PickupType                string            `json:"pickupType"`
	ServiceType               string            `json:"serviceType,omitempty"`
	RateRequestType           []string          `json:"rateRequestType"`
	ShipDateStamp             string            `json:"shipDateStamp,omitempty"`
	RequestedPackageLineItems []PackageLineItem `json:"requestedPackageLineItems"`
}

// RateResponse wraps the rate reply.
type RateResponse struct {
	Output struct {
		RateReplyDetails []RateReplyDetail `json:"rateReplyDetails"`
	} `json:"output"`
}

// RateReplyDetail is one priced service.
type RateReplyDetail struct {
	ServiceType          string                `json:"serviceType"`
	ServiceName          string                `json:"serviceName"`
	RatedShipmentDetails []RatedShipmentDetail `json:"ratedShipmentDetails"`
	OperationalDetail    struct {
		TransitTime  string `json:"transitTime"`  // e.g. "TWO_DAYS"
		DeliveryDate string `json:"deliveryDate"` // RFC3339 without zone
	} `json:"operationalDetail"`
	Commit struct {
		Guaranteed bool `json:"guaranteedDelivery"`
	} `json:"commit"`
}

// RatedShipmentDetail is the price for one rate type.
type RatedShipmentDetail struct {
	RateType        string  `json:"rateType"` // ACCOUNT or LIST
	TotalBaseCharge float64 `json:"totalBaseCharge"`
	TotalNetCharge  float64 `json:"totalNetCharge"`
	TotalSurcharges float64 `json:"totalSurcharges"`
	Currency        string  `json:"currency"`
}

// ShipRequest is the body of POST /ship/v1/shipments.
type ShipRequest struct {
	AccountNumber        AccountNumber       `json:"accountNumber"`
	LabelResponseOptions string              `json:"labelResponseOptions"`
	RequestedShipment    ShipShipmentRequest `json:"requestedShipment"`
}

// ShipShipmentRequest describes the shipment.
type ShipShipmentRequest struct {
	Shipper                   Party                  `json:"shipper"`
	Recipients                []Party                `json:"recipients"`
	ShipDateStamp             string                 `json:"shipDateStamp,omitempty"`
	ServiceType               string                 `json:"serviceType"`
	PackagingType             string                 `json:"packagingType"`
	PickupType                string                 `json:"pickupType"`
	ShippingChargesPayment    ShippingChargesPayment `json:"shippingChargesPayment"`
	LabelSpecification        LabelSpecification     `json:"labelSpecification"`
	RequestedPackageLineItems []PackageLineItem      `json:"requestedPackageLineItems"`
	CustomerReference         string                 `json:"customerReference,omitempty"`
}

// ShippingChargesPayment selects who pays.
type ShippingChargesPayment struct {
	PaymentType string `json:"paymentType"`
}

// LabelSpecification selects the label output.
type LabelSpecification struct {
	ImageType      string `json:"imageType"`
	LabelStockType string `json:"labelStockType"`
}

// ShipResponse wraps the ship reply.
type ShipResponse struct {
	Output struct {
		TransactionShipments []TransactionShipment `json:"transactionShipments"`
	} `json:"output"`
}

// TransactionShipment is one booked shipment.
type TransactionShipment struct {
	MasterTrackingNumber string          `json:"masterTrackingNumber"`
	ServiceType          string          `json:"serviceType"`
	ShipDatestamp        string          `json:"shipDatestamp"`
	PieceResponses       []PieceResponse `json:"pieceResponses"`
}

// PieceResponse is one labelled piece.
type PieceResponse struct {
	TrackingNumber   string     `json:"trackingNumber"`
	NetChargeAmount  float64    `json:"netChargeAmount"`
	Currency         string     `json:"currency"`
	PackageDocuments []Document `json:"packageDocuments"`
}

// Document is a label.
type Document struct {
	ContentType  string `json:"contentType"`
	DocType      string `json:"docType"` // PDF, PNG, ZPLII
	EncodedLabel string `json:"encodedLabel,omitempty"`
	URL          string `json:"url,omitempty"`
}

// TrackRequest is the body of POST /track/v1/trackingnumbers.
type TrackRequest struct {
	IncludeDetailedScans bool           `json:"includeDetailedScans"`
	TrackingInfo         []TrackingInfo `json:"trackingInfo"`
}

// TrackingInfo names one tracking number.
type TrackingInfo struct {
	TrackingNumberInfo TrackingNumberInfo `json:"trackingNumberInfo"`
}

// TrackingNumberInfo holds the number itself.
type TrackingNumberInfo struct {
	TrackingNumber string `json:"trackingNumber"`
}

// TrackResponse wraps tracking results.
type TrackResponse struct {
	Output struct {
		CompleteTrackResults []CompleteTrackResult `json:"completeTrackResults"`
	} `json:"output"`
}

// CompleteTrackResult groups results per tracking number.
type CompleteTrackResult struct {
	TrackingNumber string        `json:"trackingNumber"`
	TrackResults   []TrackResult `json:"trackResults"`
}

// TrackResult is the state of one package.
type TrackResult struct {
	LatestStatusDetail StatusDetail `json:"latestStatusDetail"`
	ScanEvents         []ScanEvent  `json:"scanEvents"`
	DateAndTimes       []struct {
		Type     string `json:"type"` // ESTIMATED_DELIVERY, ACTUAL_DELIVERY, ...
		DateTime string `json:"dateTime"`
	} `json:"dateAndTimes"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// StatusDetail is the latest status.
type StatusDetail struct {
	Code        string `json:"code"`
	DerivedCode string `json:"derivedCode"`
	Description string `json:"description"`
}

// ScanEvent is one scan.
type ScanEvent struct {
	Date             string `json:"date"` // RFC3339
	EventType        string `json:"eventType"`
	EventDescription string `json:"eventDescription"`
	ScanLocation     struct {
		City        string `json:"city"`
		CountryCode string `json:"countryCode"`
	} `json:"scanLocation"`
}

// CancelRequest is the body of PUT /ship/v1/shipments/cancel.
type CancelRequest struct {
	AccountNumber   AccountNumber `json:"accountNumber"`
	TrackingNumber  string        `json:"trackingNumber"`
	DeletionControl string        `json:"deletionControl"`
}

// CancelResponse wraps the cancel reply.
type CancelResponse struct {
	Output struct {
		CancelledShipment bool   `json:"cancelledShipment"`
		Message           string `json:"message"`
	} `json:"output"`
}

// AddressRequest is the body of POST /address/v1/addresses/resolve.
type AddressRequest struct {
	AddressesToValidate []AddressToValidate `json:"addressesToValidate"`
}

// AddressToValidate wraps one address.
type AddressToValidate struct {
	Address Address `json:"address"`
}

// AddressResponse wraps resolved addresses.
type AddressResponse struct {
	Output struct {
		ResolvedAddresses []ResolvedAddress `json:"resolvedAddresses"`
	} `json:"output"`
}

// ResolvedAddress is a standardized address.
type ResolvedAddress struct {
	StreetLinesToken    []string `json:"streetLinesToken"`
	City                string   `json:"city"`
	StateOrProvinceCode string   `json:"stateOrProvinceCode"`
	PostalCode          string   `json:"postalCode"`
	CountryCode         string   `json:"countryCode"`
	Classification      string   `json:"classification"` // RESIDENTIAL, BUSINESS, MIXED, UNKNOWN
	Attributes          struct {
		Resolved           string `json:"Resolved"` // "true" / "false"
		InterpolatedStreet string `json:"InterpolatedStreetAddress"`
	} `json:"attributes"`
	CustomerMessages []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"customerMessages"`
}

// PickupRequest is the body of POST /pickup/v1/pickups.
type PickupRequest struct {
	AssociatedAccountNumber AccountNumber `json:"associatedAccountNumber"`
	OriginDetail            OriginDetail  `json:"originDetail"`
	PackageCount            int           `json:"packageCount"`
	TotalWeight             Weight        `json:"totalWeight"`
	CarrierCode             string        `json:"carrierCode"`
	Remarks                 string        `json:"remarks,omitempty"`
}

// OriginDetail is where and when to collect.
type OriginDetail struct {
	PickupLocation     Party  `json:"pickupLocation"`
	ReadyDateTimestamp string `json:"readyDateTimestamp"`
	CustomerCloseTime  string `json:"customerCloseTime"` // HH:MM:SS
}

// PickupResponse wraps the pickup reply.
type PickupResponse struct {
	Output struct {
		PickupConfirmationCode string `json:"pickupConfirmationCode"`
		Location               string `json:"location"`
	} `json:"output"`
}
