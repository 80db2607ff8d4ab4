package avalara

import (
	"context"
)

// APIClient defines the interface for AvaTax REST v2 operations.
type APIClient interface {
	// Ping checks credentials against /utilities/ping
	Ping(ctx context.Context) (*PingResponse, error)

	// CreateTransaction calculates (and optionally commits) a transaction
	CreateTransaction(ctx context.Context, req *CreateTransactionModel) (*TransactionModel, error)

	// CommitTransaction records a saved transaction
	CommitTransaction(ctx context.Context, companyCode, code string) (*TransactionModel, error)

	// VoidTransaction cancels a transaction
	VoidTransaction(ctx context.Context, companyCode, code string) (*TransactionModel, error)

	// GetTransaction fetches a transaction by code
	GetTransaction(ctx context.Context, companyCode, code string) (*TransactionModel, error)

	// RefundTransaction refunds all or a percentage of a committed transaction
	RefundTransaction(ctx context.Context, companyCode, code string, req *RefundTransactionModel) (*TransactionModel, error)

	// ResolveAddress validates and normalizes an address
	ResolveAddress(ctx context.Context, req *AddressInfo) (*AddressResolutionModel, error)

	// ListTaxCodes returns the AvaTax system tax codes
	ListTaxCodes(ctx context.Context) (*TaxCodeList, error)

	// ListNexus returns the nexus declared by a company
	ListNexus(ctx context.Context, companyID int) (*NexusList, error)
}

// ============================================================================
// API Request/Response Types (AvaTax REST v2 shapes)
// ============================================================================

// PingResponse is the body of GET /api/v2/utilities/ping.
type PingResponse struct {
	Version           string `json:"version"`
	Authenticated     bool   `json:"authenticated"`
	AuthenticatedUser string `json:"authenticatedUserName,omitempty"`
	AuthenticatedAcct int    `json:"authenticatedAccountId,omitempty"`
}

// AddressInfo is an AvaTax address.
type AddressInfo struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Addresses holds the ship-from and ship-to locations of a transaction.
type Addresses struct {
	ShipFrom *AddressInfo `json:"shipFrom,omitempty"`
	ShipTo   *AddressInfo `json:"shipTo,omitempty"`
}

// LineItemModel is one transaction line.
type LineItemModel struct {
	Number      string  `json:"number"`
	Quantity    float64 `json:"quantity"`
	Amount      float64 `json:"amount"`
	TaxCode     string  `json:"taxCode,omitempty"`
	ItemCode    string  `json:"itemCode,omitempty"`
	Description string  `json:"description,omitempty"`
}

// CreateTransactionModel is the body of POST /api/v2/transactions/create.
type CreateTransactionModel struct {
	Type            string          `json:"type"` // SalesOrder, SalesInvoice, ReturnInvoice
	Code            string          `json:"code,omitempty"`
	CompanyCode     string          `json:"companyCode"`
	Date            string          `json:"date"` // YYYY-MM-DD
	CustomerCode    string          `json:"customerCode"`
	CurrencyCode    string          `json:"currencyCode,omitempty"`
	ExemptionNo     string          `json:"exemptionNo,omitempty"`
	ReferenceCode   string          `json:"referenceCode,omitempty"`
	Commit          bool            `json:"commit"`
	Addresses       Addresses       `json:"addresses"`
	Lines           []LineItemModel `json:"lines"`
	Description     string          `json:"description,omitempty"`
}

// TransactionModel is an AvaTax transaction.
type TransactionModel struct {
	ID           int64                    `json:"id"`
	Code         string                   `json:"code"`
	CompanyID    int                      `json:"companyId"`
	Date         string                   `json:"date"`
	Status       string                   `json:"status"` // Saved, Committed, Cancelled, Temporary, Adjusted
	Type         string                   `json:"type"`
	CurrencyCode string                   `json:"currencyCode"`
	TotalAmount  float64                  `json:"totalAmount"`
	TotalTax     float64                  `json:"totalTax"`
	TotalTaxable float64                  `json:"totalTaxable"`
	Lines        []TransactionLineModel   `json:"lines"`
	Summary      []TransactionSummaryLine `json:"summary"`
}

// TransactionLineModel is the tax of one line.
type TransactionLineModel struct {
	LineNumber    string                   `json:"lineNumber"`
	LineAmount    float64                  `json:"lineAmount"`
	TaxableAmount float64                  `json:"taxableAmount"`
	Tax           float64                  `json:"tax"`
	TaxCode       string                   `json:"taxCode,omitempty"`
	Details       []TransactionSummaryLine `json:"details,omitempty"`
}

// TransactionSummaryLine is one jurisdiction's tax.
type TransactionSummaryLine struct {
	JurisName string  `json:"jurisName"`
	JurisType string  `json:"jurisType"` // STA, CTY, CIT, STJ, CNT
	Rate      float64 `json:"rate"`
	Tax       float64 `json:"tax"`
	Taxable   float64 `json:"taxable,omitempty"`
}

// CommitTransactionModel is the body of the commit endpoint.
type CommitTransactionModel struct {
	Commit bool `json:"commit"`
}

// VoidTransactionModel is the body of the void endpoint.
type VoidTransactionModel struct {
	Code string `json:"code"` // DocVoided
}

// RefundTransactionModel is the body of the refund endpoint.
type RefundTransactionModel struct {
	RefundTransactionCode string   `json:"refundTransactionCode,omitempty"`
	RefundDate            string   `json:"refundDate"`
	RefundType            string   `json:"refundType"` // Full, Percentage
	RefundPercentage      *float64 `json:"refundPercentage,omitempty"`
	ReferenceCode         string   `json:"referenceCode,omitempty"`
}

// AddressResolutionModel is the body returned by POST /api/v2/addresses/resolve.
type AddressResolutionModel struct {
	Address            AddressInfo   `json:"address"`
	ValidatedAddresses []AddressInfo `json:"validatedAddresses"`
	Messages           []Message     `json:"messages,omitempty"`
}

// Message is an AvaTax informational or error message.
type Message struct {
	Summary  string `json:"summary"`
	Details  string `json:"details,omitempty"`
	Severity string `json:"severity"` // Success, Warning, Error, Exception
}

// TaxCodeList is the body of GET /api/v2/definitions/taxcodes.
type TaxCodeList struct {
	Count int             `json:"@recordsetCount"`
	Value []TaxCodeRecord `json:"value"`
}

// TaxCodeRecord is one system tax code.
type TaxCodeRecord struct {
	TaxCode     string `json:"taxCode"`
	Description string `json:"description"`
	IsActive    bool   `json:"isActive"`
}

// NexusList is the body of GET /api/v2/companies/{id}/nexus.
type NexusList struct {
	Count int           `json:"@recordsetCount"`
	Value []NexusRecord `json:"value"`
}

// NexusRecord is one declared nexus.
type NexusRecord struct {
	Country   string `json:"country"`
	Region    string `json:"region"`
	JurisName string `json:"jurisName"`
	JurisType string `json:"jurisTypeId"`
}
