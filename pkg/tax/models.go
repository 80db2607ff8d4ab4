package tax

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/integrations/pkg/integration"
)

// TransactionStatus is the lifecycle state of a tax transaction.
type TransactionStatus string

const (
	StatusCalculated TransactionStatus = "CALCULATED"
	StatusCommitted  TransactionStatus = "COMMITTED"
	StatusVoided     TransactionStatus = "VOIDED"
	StatusRefunded   TransactionStatus = "REFUNDED"
	// StatusTemporary marks a result not backed by a tax engine.
	StatusTemporary TransactionStatus = "TEMPORARY"
)

// LineItem is one taxable order line.
type LineItem struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku,omitempty"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Discount    decimal.Decimal `json:"discount"`
	TaxCode     string          `json:"taxCode,omitempty"`
}

// Amount is the extended line amount after discount.
func (l LineItem) Amount() decimal.Decimal {
	qty := l.Quantity
	if qty < 1 {
		qty = 1
	}
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(qty))).Sub(l.Discount)
}

// CalculationRequest is the request for a tax calculation.
type CalculationRequest struct {
	TransactionID   string              `json:"transactionId"` // order or document code
	CustomerID      string              `json:"customerId,omitempty"`
	Date            time.Time           `json:"date"`
	Currency        string              `json:"currency"`
	Origin          integration.Address `json:"origin"`
	Destination     integration.Address `json:"destination"`
	LineItems       []LineItem          `json:"lineItems"`
	Shipping        decimal.Decimal     `json:"shipping"`
	ExemptionNumber string              `json:"exemptionNumber,omitempty"`
	Commit          bool                `json:"commit,omitempty"`
}

// Subtotal sums the line amounts, shipping excluded.
func (r *CalculationRequest) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.LineItems {
		total = total.Add(l.Amount())
	}
	return total
}

// LineTax is the tax computed for one line.
type LineTax struct {
	LineID  string          `json:"lineId"`
	Taxable decimal.Decimal `json:"taxable"`
	Tax     decimal.Decimal `json:"tax"`
	Rate    decimal.Decimal `json:"rate"`
}

// Jurisdiction is one authority's share of the tax.
type Jurisdiction struct {
	Name string          `json:"name"`
	Type string          `json:"type"` // STATE, COUNTY, CITY, SPECIAL, COUNTRY
	Rate decimal.Decimal `json:"rate"`
	Tax  decimal.Decimal `json:"tax"`
}

// CalculationResponse is the normalized tax result.
type CalculationResponse struct {
	Provider      string            `json:"provider"`
	TransactionID string            `json:"transactionId"`
	Status        TransactionStatus `json:"status"`
	Currency      string            `json:"currency"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	ShippingTax   decimal.Decimal   `json:"shippingTax"`
	TotalTax      decimal.Decimal   `json:"totalTax"`
	Total         decimal.Decimal   `json:"total"`
	Lines         []LineTax         `json:"lines,omitempty"`
	Jurisdictions []Jurisdiction    `json:"jurisdictions,omitempty"`
	CalculatedAt  time.Time         `json:"calculatedAt"`
}

// ZeroTax is the deterministic result used when no engine can answer.
func ZeroTax(req *CalculationRequest) *CalculationResponse {
	resp := &CalculationResponse{
		Status:       StatusTemporary,
		Subtotal:     decimal.Zero,
		ShippingTax:  decimal.Zero,
		TotalTax:     decimal.Zero,
		Total:        decimal.Zero,
		CalculatedAt: time.Now().UTC(),
	}
	if req != nil {
		resp.TransactionID = req.TransactionID
		resp.Currency = req.Currency
		resp.Subtotal = req.Subtotal()
		resp.Total = resp.Subtotal.Add(req.Shipping)
		for _, l := range req.LineItems {
			resp.Lines = append(resp.Lines, LineTax{LineID: l.ID, Taxable: l.Amount(), Tax: decimal.Zero, Rate: decimal.Zero})
		}
	}
	return resp
}

// RefundRequest reverses a committed transaction. A nil Amount refunds
// the whole transaction.
type RefundRequest struct {
	TransactionID       string           `json:"transactionId"`
	RefundTransactionID string           `json:"refundTransactionId,omitempty"`
	Date                time.Time        `json:"date"`
	Amount              *decimal.Decimal `json:"amount,omitempty"`
	Reason              string           `json:"reason,omitempty"`
}

// TaxCode is a product taxability code.
type TaxCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// NexusLocation is a region where the seller collects tax.
type NexusLocation struct {
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
	Name    string `json:"name,omitempty"`
}
