package dhl

import (
	"context"
)

// APIClient defines the interface for DHL eCommerce API operations.
type APIClient interface {
	// Authenticate acquires (or reuses) an access token
	Authenticate(ctx context.Context) error

	// GetProducts returns the products and prices available for a package
	GetProducts(ctx context.Context, req *ProductsRequest) (*ProductsResponse, error)

	// CreateLabel books a package and returns its label
	CreateLabel(ctx context.Context, req *LabelRequest, format string) (*LabelResponse, error)

	// GetTracking retrieves tracking events for a package
	GetTracking(ctx context.Context, trackingID string) (*TrackingResponse, error)

	// DeleteLabel voids an unmanifested label
	DeleteLabel(ctx context.Context, pickupAccount, packageID string) error
}

// ============================================================================
// API Request/Response Types (DHL eCommerce v4 shapes)
// ============================================================================

// Address is a DHL consignee or return address.
type Address struct {
	Name        string `json:"name"`
	CompanyName string `json:"companyName,omitempty"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postalCode"`
	Country     string `json:"country"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Measure is a value with a unit of measure.
type Measure struct {
	Value         float64 `json:"value"`
	UnitOfMeasure string  `json:"unitOfMeasure"`
}

// Dimension is a package size.
type Dimension struct {
	Length        float64 `json:"length"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	UnitOfMeasure string  `json:"unitOfMeasure"`
}

// PackageDetail describes the package.
type PackageDetail struct {
	PackageID          string     `json:"packageId,omitempty"`
	PackageDescription string     `json:"packageDescription,omitempty"`
	Weight             Measure    `json:"weight"`
	Dimension          *Dimension `json:"dimension,omitempty"`
}

// ProductsRequest is the body of POST /shipping/v4/products.
type ProductsRequest struct {
	PickupAccount         string        `json:"pickup"`
	DistributionCenter    string        `json:"distributionCenter"`
	ConsigneeAddress      Address       `json:"consigneeAddress"`
	ReturnAddress         Address       `json:"returnAddress"`
	PackageDetail         PackageDetail `json:"packageDetail"`
	Rate                  RateOptions   `json:"rate"`
	EstimatedDeliveryDate struct {
		Calculate bool `json:"calculate"`
	} `json:"estimatedDeliveryDate"`
}

// RateOptions asks DHL to price the products.
type RateOptions struct {
	Calculate bool   `json:"calculate"`
	Currency  string `json:"currency"`
}

// ProductsResponse lists eligible products.
type ProductsResponse struct {
	Products []Product `json:"products"`
}

// Product is one priced product.
type Product struct {
	OrderedProductID  string            `json:"orderedProductId"`
	ProductName       string            `json:"productName"`
	TrackingAvailable bool              `json:"trackingAvailable"`
	Rate              *ProductRate      `json:"rate,omitempty"`
	Estimate          *DeliveryEstimate `json:"estimatedDeliveryDate,omitempty"`
}

// ProductRate is the price of a product.
type ProductRate struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// DeliveryEstimate is the delivery window of a product.
type DeliveryEstimate struct {
	DeliveryDaysMin      int    `json:"deliveryDaysMin"`
	DeliveryDaysMax      int    `json:"deliveryDaysMax"`
	EstimatedDeliveryMax string `json:"estimatedDeliveryMax,omitempty"` // YYYY-MM-DD
}

// LabelRequest is the body of POST /shipping/v4/label.
type LabelRequest struct {
	PickupAccount      string        `json:"pickup"`
	DistributionCenter string        `json:"distributionCenter"`
	OrderedProductID   string        `json:"orderedProductId"`
	ConsigneeAddress   Address       `json:"consigneeAddress"`
	ReturnAddress      Address       `json:"returnAddress"`
	PackageDetail      PackageDetail `json:"packageDetail"`
}

// LabelResponse wraps booked labels.
type LabelResponse struct {
	Labels []Label `json:"labels"`
}

// Label is one booked package.
type Label struct {
	PackageID    string `json:"packageId"`
	DHLPackageID string `json:"dhlPackageId"`
	TrackingID   string `json:"trackingId"`
	LabelData    string `json:"labelData"` // base64
	Format       string `json:"format"`
}

// TrackingResponse is the body of GET /tracking/v4/package/open.
type TrackingResponse struct {
	Packages []TrackedPackage `json:"packages"`
}

// TrackedPackage is one package's history.
type TrackedPackage struct {
	Package struct {
		TrackingID           string `json:"trackingId"`
		DHLPackageID         string `json:"dhlPackageId"`
		ExpectedDeliveryDate string `json:"expectedDelivery,omitempty"`
	} `json:"package"`
	Events []Event `json:"events"`
}

// Event is one scan, most recent first.
type Event struct {
	Date                    string `json:"date"` // YYYY-MM-DD
	Time                    string `json:"time"` // HH:MM:SS
	Timezone                string `json:"timeZone,omitempty"`
	PrimaryEventID          int    `json:"primaryEventId"`
	PrimaryEventDescription string `json:"primaryEventDescription"`
	Location                string `json:"location,omitempty"`
}
