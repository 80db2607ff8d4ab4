package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/tournevent/integrations/pkg/tax"
)

type lineItemDTO struct {
	ID          string          `json:"id" validate:"required"`
	SKU         string          `json:"sku"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Discount    decimal.Decimal `json:"discount"`
	TaxCode     string          `json:"taxCode"`
}

type taxRequest struct {
	TransactionID   string          `json:"transactionId" validate:"required"`
	CustomerID      string          `json:"customerId"`
	Date            *time.Time      `json:"date"`
	Currency        string          `json:"currency" validate:"omitempty,len=3"`
	Origin          *addressDTO     `json:"origin" validate:"omitempty"`
	Destination     addressDTO      `json:"destination"`
	LineItems       []lineItemDTO   `json:"lineItems" validate:"required,min=1,dive"`
	Shipping        decimal.Decimal `json:"shipping"`
	ExemptionNumber string          `json:"exemptionNumber"`
	Commit          bool            `json:"commit"`
}

func (t taxRequest) toCalculationRequest() *tax.CalculationRequest {
	req := &tax.CalculationRequest{
		TransactionID:   t.TransactionID,
		CustomerID:      t.CustomerID,
		Date:            time.Now().UTC(),
		Currency:        t.Currency,
		Destination:     t.Destination.address(),
		Shipping:        t.Shipping,
		ExemptionNumber: t.ExemptionNumber,
		Commit:          t.Commit,
	}
	if t.Date != nil {
		req.Date = *t.Date
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	if t.Origin != nil {
		req.Origin = t.Origin.address()
	}
	for _, l := range t.LineItems {
		req.LineItems = append(req.LineItems, tax.LineItem{
			ID:          l.ID,
			SKU:         l.SKU,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Discount:    l.Discount,
			TaxCode:     l.TaxCode,
		})
	}
	return req
}

type refundRequest struct {
	RefundTransactionID string           `json:"refundTransactionId"`
	Date                *time.Time       `json:"date"`
	Amount              *decimal.Decimal `json:"amount"`
	Reason              string           `json:"reason"`
}

// handleCalculateTax always answers 200: without a usable tax engine the
// result degrades to the fallback or a zero TEMPORARY calculation.
func (s *Server) handleCalculateTax(w http.ResponseWriter, r *http.Request) {
	var req taxRequest
	if !s.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.taxes.CalculateTax(r.Context(), req.toCalculationRequest(), s.fallback))
}

func (s *Server) handleCommitTax(w http.ResponseWriter, r *http.Request) {
	resp, err := s.taxes.CommitTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVoidTax(w http.ResponseWriter, r *http.Request) {
	resp, err := s.taxes.VoidTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefundTax(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if !s.decode(w, r, &req) {
		return
	}
	refund := &tax.RefundRequest{
		TransactionID:       chi.URLParam(r, "id"),
		RefundTransactionID: req.RefundTransactionID,
		Date:                time.Now().UTC(),
		Amount:              req.Amount,
		Reason:              req.Reason,
	}
	if req.Date != nil {
		refund.Date = *req.Date
	}
	resp, err := s.taxes.RefundTransaction(r.Context(), refund)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidateTaxAddress(w http.ResponseWriter, r *http.Request) {
	var req addressDTO
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.taxes.ValidateAddress(r.Context(), req.address())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTaxCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := s.taxes.TaxCodes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"taxCodes": nonNilSlice(codes)})
}

func (s *Server) handleNexus(w http.ResponseWriter, r *http.Request) {
	locations, err := s.taxes.NexusLocations(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nexus": nonNilSlice(locations)})
}
