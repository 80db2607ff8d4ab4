package avalara

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/tournevent/integrations/pkg/integration"
)

const (
	mockStateRate = 0.0625
	mockCityRate  = 0.02
)

// MockAPIClient is a mock implementation of APIClient for testing. It
// keeps the transactions it created so commit, void and refund behave
// like the real service.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateTransaction func(ctx context.Context, req *CreateTransactionModel) (*TransactionModel, error)
	OnResolveAddress    func(ctx context.Context, req *AddressInfo) (*AddressResolutionModel, error)

	mu           sync.Mutex
	nextID       int64
	transactions map[string]*TransactionModel
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{transactions: make(map[string]*TransactionModel)}
}

func (m *MockAPIClient) simulate() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return integration.NewError(providerName, integration.KindUpstream, "Simulated API error").
			WithCode("MOCK_ERROR").
			WithStatusCode(500).
			WithRetryable(true)
	}
	return nil
}

// Ping reports an authenticated session.
func (m *MockAPIClient) Ping(ctx context.Context) (*PingResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	return &PingResponse{Version: "24.1.0", Authenticated: true, AuthenticatedUser: "mock"}, nil
}

// CreateTransaction applies a flat 6.25% state and 2% city rate.
func (m *MockAPIClient) CreateTransaction(ctx context.Context, req *CreateTransactionModel) (*TransactionModel, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateTransaction != nil {
		return m.OnCreateTransaction(ctx, req)
	}

	tx := &TransactionModel{
		Code:         req.Code,
		Date:         req.Date,
		Type:         req.Type,
		Status:       "Saved",
		CurrencyCode: req.CurrencyCode,
	}
	if req.Commit {
		tx.Status = "Committed"
	}

	var stateTax, cityTax float64
	for _, l := range req.Lines {
		st := round2(l.Amount * mockStateRate)
		ct := round2(l.Amount * mockCityRate)
		stateTax += st
		cityTax += ct
		tx.Lines = append(tx.Lines, TransactionLineModel{
			LineNumber:    l.Number,
			LineAmount:    l.Amount,
			TaxableAmount: l.Amount,
			Tax:           round2(st + ct),
			TaxCode:       l.TaxCode,
		})
		tx.TotalAmount += l.Amount
		tx.TotalTaxable += l.Amount
	}
	tx.TotalTax = round2(stateTax + cityTax)
	tx.Summary = []TransactionSummaryLine{
		{JurisName: "STATE", JurisType: "STA", Rate: mockStateRate, Tax: round2(stateTax), Taxable: tx.TotalTaxable},
		{JurisName: "CITY", JurisType: "CIT", Rate: mockCityRate, Tax: round2(cityTax), Taxable: tx.TotalTaxable},
	}

	m.mu.Lock()
	m.nextID++
	tx.ID = m.nextID
	if tx.Code != "" && req.Type != "SalesOrder" {
		stored := *tx
		m.transactions[tx.Code] = &stored
	}
	m.mu.Unlock()

	return tx, nil
}

// CommitTransaction commits a stored transaction.
func (m *MockAPIClient) CommitTransaction(ctx context.Context, companyCode, code string) (*TransactionModel, error) {
	return m.transition(code, "Committed")
}

// VoidTransaction cancels a stored transaction.
func (m *MockAPIClient) VoidTransaction(ctx context.Context, companyCode, code string) (*TransactionModel, error) {
	return m.transition(code, "Cancelled")
}

// GetTransaction returns a stored transaction.
func (m *MockAPIClient) GetTransaction(ctx context.Context, companyCode, code string) (*TransactionModel, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[code]
	if !ok {
		return nil, notFound(code)
	}
	out := *tx
	return &out, nil
}

// RefundTransaction returns a ReturnInvoice negating all or a percentage
// of the stored transaction.
func (m *MockAPIClient) RefundTransaction(ctx context.Context, companyCode, code string, req *RefundTransactionModel) (*TransactionModel, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	orig, ok := m.transactions[code]
	if !ok {
		return nil, notFound(code)
	}
	if orig.Status != "Committed" {
		return nil, integration.NewError(providerName, integration.KindValidation, "only committed transactions can be refunded").
			WithCode("CannotRefundUncommitted").
			WithStatusCode(400)
	}

	share := 1.0
	if req.RefundType == "Percentage" && req.RefundPercentage != nil {
		share = *req.RefundPercentage / 100
	}

	m.nextID++
	refund := &TransactionModel{
		ID:           m.nextID,
		Code:         req.RefundTransactionCode,
		Date:         req.RefundDate,
		Type:         "ReturnInvoice",
		Status:       "Committed",
		CurrencyCode: orig.CurrencyCode,
		TotalAmount:  -round2(orig.TotalAmount * share),
		TotalTax:     -round2(orig.TotalTax * share),
		TotalTaxable: -round2(orig.TotalTaxable * share),
	}
	return refund, nil
}

// ResolveAddress echoes the address upper-cased as its validated form.
func (m *MockAPIClient) ResolveAddress(ctx context.Context, req *AddressInfo) (*AddressResolutionModel, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnResolveAddress != nil {
		return m.OnResolveAddress(ctx, req)
	}
	resolved := *req
	return &AddressResolutionModel{Address: *req, ValidatedAddresses: []AddressInfo{resolved}}, nil
}

// ListTaxCodes returns a few common system tax codes.
func (m *MockAPIClient) ListTaxCodes(ctx context.Context) (*TaxCodeList, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	return &TaxCodeList{Count: 3, Value: []TaxCodeRecord{
		{TaxCode: "P0000000", Description: "Tangible personal property", IsActive: true},
		{TaxCode: "PC040100", Description: "Clothing and related products", IsActive: true},
		{TaxCode: "FR020100", Description: "Shipping only, common carrier", IsActive: true},
	}}, nil
}

// ListNexus returns nexus in California and Texas.
func (m *MockAPIClient) ListNexus(ctx context.Context, companyID int) (*NexusList, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	return &NexusList{Count: 2, Value: []NexusRecord{
		{Country: "US", Region: "CA", JurisName: "CALIFORNIA", JurisType: "STA"},
		{Country: "US", Region: "TX", JurisName: "TEXAS", JurisType: "STA"},
	}}, nil
}

func (m *MockAPIClient) transition(code, status string) (*TransactionModel, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[code]
	if !ok {
		return nil, notFound(code)
	}
	tx.Status = status
	out := *tx
	return &out, nil
}

func notFound(code string) error {
	return integration.NewError(providerName, integration.KindNotFound, "transaction "+code+" not found").
		WithCode("EntityNotFoundError").
		WithStatusCode(404)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
