package taxjar

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/tournevent/integrations/pkg/integration"
)

const (
	mockStateRate  = 0.0625
	mockCountyRate = 0.01
)

// MockAPIClient is a mock implementation of APIClient for testing.
// Shipping is never taxed; lines pay 6.25% state and 1% county tax.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnTaxForOrder     func(ctx context.Context, req *TaxRequest) (*TaxResponse, error)
	OnValidateAddress  func(ctx context.Context, req *AddressRequest) (*AddressResponse, error)

	mu      sync.Mutex
	orders  map[string]OrderTransaction
	refunds []RefundTransaction
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{orders: make(map[string]OrderTransaction)}
}

func (m *MockAPIClient) simulate() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return integration.NewError(providerName, integration.KindUpstream, "Simulated API error").
			WithCode("MOCK_ERROR").
			WithStatusCode(503).
			WithRetryable(true)
	}
	return nil
}

// TaxForOrder returns tax at the mock rates.
func (m *MockAPIClient) TaxForOrder(ctx context.Context, req *TaxRequest) (*TaxResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnTaxForOrder != nil {
		return m.OnTaxForOrder(ctx, req)
	}

	b := &Breakdown{
		CombinedTaxRate: mockStateRate + mockCountyRate,
		StateTaxRate:    mockStateRate,
		CountyTaxRate:   mockCountyRate,
		Shipping:        &ShippingBreakdown{},
	}
	for _, l := range req.LineItems {
		amount := l.UnitPrice*float64(l.Quantity) - l.Discount
		state := round2(amount * mockStateRate)
		county := round2(amount * mockCountyRate)
		b.StateTaxCollectable += state
		b.CountyTaxCollectable += county
		b.TaxableAmount += amount
		b.LineItems = append(b.LineItems, LineItemBreakdown{
			ID:              l.ID,
			TaxableAmount:   amount,
			TaxCollectable:  round2(state + county),
			CombinedTaxRate: mockStateRate + mockCountyRate,
		})
	}
	b.TaxCollectable = round2(b.StateTaxCollectable + b.CountyTaxCollectable)

	return &TaxResponse{Tax: Tax{
		OrderTotalAmount: req.Amount + req.Shipping,
		Shipping:         req.Shipping,
		TaxableAmount:    b.TaxableAmount,
		AmountToCollect:  b.TaxCollectable,
		Rate:             mockStateRate + mockCountyRate,
		HasNexus:         true,
		TaxSource:        "destination",
		Jurisdictions:    &Jurisdictions{Country: req.ToCountry, State: req.ToState, County: "MOCK COUNTY"},
		Breakdown:        b,
	}}, nil
}

// CreateOrder stores the order.
func (m *MockAPIClient) CreateOrder(ctx context.Context, order *OrderTransaction) (*OrderTransaction, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.orders[order.TransactionID]; exists {
		return nil, integration.NewError(providerName, integration.KindValidation, "Provided transaction_id is already in use").
			WithStatusCode(422)
	}
	m.orders[order.TransactionID] = *order
	out := *order
	return &out, nil
}

// ShowOrder returns a stored order.
func (m *MockAPIClient) ShowOrder(ctx context.Context, transactionID string) (*OrderTransaction, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[transactionID]
	if !ok {
		return nil, orderNotFound(transactionID)
	}
	return &order, nil
}

// DeleteOrder removes a stored order.
func (m *MockAPIClient) DeleteOrder(ctx context.Context, transactionID string) (*OrderTransaction, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[transactionID]
	if !ok {
		return nil, orderNotFound(transactionID)
	}
	delete(m.orders, transactionID)
	return &order, nil
}

// CreateRefund records a refund.
func (m *MockAPIClient) CreateRefund(ctx context.Context, refund *RefundTransaction) (*RefundTransaction, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refunds = append(m.refunds, *refund)
	out := *refund
	return &out, nil
}

// Refunds returns the refunds recorded so far.
func (m *MockAPIClient) Refunds() []RefundTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RefundTransaction(nil), m.refunds...)
}

// ValidateAddress echoes US addresses upper-cased and rejects others.
func (m *MockAPIClient) ValidateAddress(ctx context.Context, req *AddressRequest) (*AddressResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnValidateAddress != nil {
		return m.OnValidateAddress(ctx, req)
	}
	if !strings.EqualFold(req.Country, "US") {
		return nil, integration.NewError(providerName, integration.KindNotFound, "Resource can not be found").WithStatusCode(404)
	}
	out := AddressRequest{
		Country: "US",
		State:   strings.ToUpper(req.State),
		Zip:     req.Zip,
		City:    strings.ToUpper(req.City),
		Street:  strings.ToUpper(req.Street),
	}
	return &AddressResponse{Addresses: []AddressRequest{out}}, nil
}

// Categories returns a few product tax codes.
func (m *MockAPIClient) Categories(ctx context.Context) (*CategoriesResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	return &CategoriesResponse{Categories: []Category{
		{Name: "Clothing", ProductTaxCode: "20010", Description: "All human wearing apparel suitable for general use"},
		{Name: "Digital Goods", ProductTaxCode: "31000", Description: "Digital products transferred electronically"},
	}}, nil
}

// NexusRegions returns nexus in California.
func (m *MockAPIClient) NexusRegions(ctx context.Context) (*NexusRegionsResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	return &NexusRegionsResponse{Regions: []NexusRegion{
		{CountryCode: "US", Country: "United States", RegionCode: "CA", Region: "California"},
	}}, nil
}

func orderNotFound(id string) error {
	return integration.NewError(providerName, integration.KindNotFound, "Resource can not be found: order "+id).WithStatusCode(404)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
