package taxjar

import (
	"context"
)

// APIClient defines the interface for TaxJar API v2 operations.
type APIClient interface {
	// TaxForOrder calculates sales tax for an order
	TaxForOrder(ctx context.Context, req *TaxRequest) (*TaxResponse, error)

	// CreateOrder records a committed order transaction
	CreateOrder(ctx context.Context, order *OrderTransaction) (*OrderTransaction, error)

	// ShowOrder fetches an order transaction
	ShowOrder(ctx context.Context, transactionID string) (*OrderTransaction, error)

	// DeleteOrder removes an order transaction
	DeleteOrder(ctx context.Context, transactionID string) (*OrderTransaction, error)

	// CreateRefund records a refund transaction
	CreateRefund(ctx context.Context, refund *RefundTransaction) (*RefundTransaction, error)

	// ValidateAddress looks up an address (US only)
	ValidateAddress(ctx context.Context, req *AddressRequest) (*AddressResponse, error)

	// Categories lists product tax codes
	Categories(ctx context.Context) (*CategoriesResponse, error)

	// NexusRegions lists the account's nexus
	NexusRegions(ctx context.Context) (*NexusRegionsResponse, error)
}

// ============================================================================
// API Request/Response Types (TaxJar v2 shapes)
// ============================================================================

// TaxLineItem is one line of a tax request.
type TaxLineItem struct {
	ID             string  `json:"id"`
	Quantity       int     `json:"quantity"`
	ProductTaxCode string  `json:"product_tax_code,omitempty"`
	UnitPrice      float64 `json:"unit_price"`
	Discount       float64 `json:"discount"`
}

// TaxRequest is the body of POST /v2/taxes.
type TaxRequest struct {
	FromCountry   string        `json:"from_country,omitempty"`
	FromZip       string        `json:"from_zip,omitempty"`
	FromState     string        `json:"from_state,omitempty"`
	FromCity      string        `json:"from_city,omitempty"`
	FromStreet    string        `json:"from_street,omitempty"`
	ToCountry     string        `json:"to_country"`
	ToZip         string        `json:"to_zip"`
	ToState       string        `json:"to_state,omitempty"`
	ToCity        string        `json:"to_city,omitempty"`
	ToStreet      string        `json:"to_street,omitempty"`
	Amount        float64       `json:"amount"`
	Shipping      float64       `json:"shipping"`
	CustomerID    string        `json:"customer_id,omitempty"`
	ExemptionType string        `json:"exemption_type,omitempty"`
	LineItems     []TaxLineItem `json:"line_items"`
}

// TaxResponse wraps the calculated tax.
type TaxResponse struct {
	Tax Tax `json:"tax"`
}

// Tax is the calculated tax for an order.
type Tax struct {
	OrderTotalAmount float64        `json:"order_total_amount"`
	Shipping         float64        `json:"shipping"`
	TaxableAmount    float64        `json:"taxable_amount"`
	AmountToCollect  float64        `json:"amount_to_collect"`
	Rate             float64        `json:"rate"`
	HasNexus         bool           `json:"has_nexus"`
	FreightTaxable   bool           `json:"freight_taxable"`
	TaxSource        string         `json:"tax_source,omitempty"`
	Jurisdictions    *Jurisdictions `json:"jurisdictions,omitempty"`
	Breakdown        *Breakdown     `json:"breakdown,omitempty"`
}

// Jurisdictions names the authorities the tax is owed to.
type Jurisdictions struct {
	Country string `json:"country"`
	State   string `json:"state,omitempty"`
	County  string `json:"county,omitempty"`
	City    string `json:"city,omitempty"`
}

// Breakdown splits the tax by authority and line.
type Breakdown struct {
	TaxableAmount                 float64             `json:"taxable_amount"`
	TaxCollectable                float64             `json:"tax_collectable"`
	CombinedTaxRate               float64             `json:"combined_tax_rate"`
	StateTaxCollectable           float64             `json:"state_tax_collectable"`
	StateTaxRate                  float64             `json:"state_tax_rate"`
	CountyTaxCollectable          float64             `json:"county_tax_collectable"`
	CountyTaxRate                 float64             `json:"county_tax_rate"`
	CityTaxCollectable            float64             `json:"city_tax_collectable"`
	CityTaxRate                   float64             `json:"city_tax_rate"`
	SpecialDistrictTaxCollectable float64             `json:"special_district_tax_collectable"`
	SpecialTaxRate                float64             `json:"special_tax_rate"`
	Shipping                      *ShippingBreakdown  `json:"shipping,omitempty"`
	LineItems                     []LineItemBreakdown `json:"line_items,omitempty"`
}

// ShippingBreakdown is the tax on shipping.
type ShippingBreakdown struct {
	TaxableAmount   float64 `json:"taxable_amount"`
	TaxCollectable  float64 `json:"tax_collectable"`
	CombinedTaxRate float64 `json:"combined_tax_rate"`
}

// LineItemBreakdown is the tax of one line.
type LineItemBreakdown struct {
	ID              string  `json:"id"`
	TaxableAmount   float64 `json:"taxable_amount"`
	TaxCollectable  float64 `json:"tax_collectable"`
	CombinedTaxRate float64 `json:"combined_tax_rate"`
}

// OrderLineItem is one line of a recorded transaction.
type OrderLineItem struct {
	ID                string  `json:"id,omitempty"`
	Quantity          int     `json:"quantity"`
	ProductIdentifier string  `json:"product_identifier,omitempty"`
	Description       string  `json:"description,omitempty"`
	ProductTaxCode    string  `json:"product_tax_code,omitempty"`
	UnitPrice         float64 `json:"unit_price"`
	Discount          float64 `json:"discount"`
	SalesTax          float64 `json:"sales_tax"`
}

// OrderTransaction is the body of /v2/transactions/orders.
type OrderTransaction struct {
	TransactionID   string          `json:"transaction_id"`
	TransactionDate string          `json:"transaction_date"`
	FromCountry     string          `json:"from_country,omitempty"`
	FromZip         string          `json:"from_zip,omitempty"`
	FromState       string          `json:"from_state,omitempty"`
	FromCity        string          `json:"from_city,omitempty"`
	FromStreet      string          `json:"from_street,omitempty"`
	ToCountry       string          `json:"to_country"`
	ToZip           string          `json:"to_zip"`
	ToState         string          `json:"to_state,omitempty"`
	ToCity          string          `json:"to_city,omitempty"`
	ToStreet        string          `json:"to_street,omitempty"`
	Amount          float64         `json:"amount"`
	Shipping        float64         `json:"shipping"`
	SalesTax        float64         `json:"sales_tax"`
	CustomerID      string          `json:"customer_id,omitempty"`
	ExemptionType   string          `json:"exemption_type,omitempty"`
	LineItems       []OrderLineItem `json:"line_items,omitempty"`
}

// OrderResponse wraps an order transaction.
type OrderResponse struct {
	Order OrderTransaction `json:"order"`
}

// RefundTransaction is the body of POST /v2/transactions/refunds. Amounts
// are negative.
type RefundTransaction struct {
	TransactionID          string  `json:"transaction_id"`
	TransactionReferenceID string  `json:"transaction_reference_id"`
	TransactionDate        string  `json:"transaction_date"`
	ToCountry              string  `json:"to_country"`
	ToZip                  string  `json:"to_zip"`
	ToState                string  `json:"to_state,omitempty"`
	ToCity                 string  `json:"to_city,omitempty"`
	ToStreet               string  `json:"to_street,omitempty"`
	Amount                 float64 `json:"amount"`
	Shipping               float64 `json:"shipping"`
	SalesTax               float64 `json:"sales_tax"`
}

// RefundResponse wraps a refund transaction.
type RefundResponse struct {
	Refund RefundTransaction `json:"refund"`
}

// AddressRequest is the body of POST /v2/addresses/validate.
type AddressRequest struct {
	Country string `json:"country"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip"`
	City    string `json:"city,omitempty"`
	Street  string `json:"street"`
}

// AddressResponse lists matching addresses.
type AddressResponse struct {
	Addresses []AddressRequest `json:"addresses"`
}

// CategoriesResponse is the body of GET /v2/categories.
type CategoriesResponse struct {
	Categories []Category `json:"categories"`
}

// Category is one product tax code.
type Category struct {
	Name           string `json:"name"`
	ProductTaxCode string `json:"product_tax_code"`
	Description    string `json:"description"`
}

// NexusRegionsResponse is the body of GET /v2/nexus/regions.
type NexusRegionsResponse struct {
	Regions []NexusRegion `json:"regions"`
}

// NexusRegion is one region where the account has nexus.
type NexusRegion struct {
	CountryCode string `json:"country_code"`
	Country     string `json:"country"`
	RegionCode  string `json:"region_code"`
	Region      string `json:"region"`
}
