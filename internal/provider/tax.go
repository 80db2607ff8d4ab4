package provider

import (
	"context"

	"github.com/tournevent/integrations/internal/store"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/tax"
	"go.uber.org/zap"
)

// Fallback computes tax locally when no engine can.
type Fallback func(ctx context.Context, req *tax.CalculationRequest) (*tax.CalculationResponse, error)

// TaxFactory routes tax operations to the single active tax engine.
type TaxFactory struct {
	cache *cache[tax.Calculator]
}

// NewTaxFactory creates a tax factory.
func NewTaxFactory(source ConfigSource, cipher Decrypter, registry *tax.Registry, opts Options) *TaxFactory {
	return &TaxFactory{
		cache: newCache(store.CategoryTax, source, cipher, registry, opts.withDefaults()),
	}
}

// LoadProviders rebuilds the engine cache from the stored configs.
func (f *TaxFactory) LoadProviders(ctx context.Context) error {
	return f.cache.load(ctx)
}

// Provider returns the named engine if its config is active.
func (f *TaxFactory) Provider(name string) (tax.Calculator, bool) {
	e, ok := f.cache.get(name)
	if !ok {
		return nil, false
	}
	return e.adapter, true
}

// Loaded reports whether name is cached, active or not.
func (f *TaxFactory) Loaded(name string) bool {
	return f.cache.loaded(name)
}

// ActiveProviders returns the active engines by descending priority.
func (f *TaxFactory) ActiveProviders() []tax.Calculator {
	return f.cache.adapters()
}

// ActiveProvider returns the engine of record: the highest-priority
// active one.
func (f *TaxFactory) ActiveProvider() (tax.Calculator, bool) {
	e, ok := f.active()
	if !ok {
		return nil, false
	}
	return e.adapter, true
}

func (f *TaxFactory) active() (*cached[tax.Calculator], bool) {
	active := f.cache.active()
	if len(active) == 0 {
		return nil, false
	}
	return active[0], true
}

func (f *TaxFactory) engine() (*cached[tax.Calculator], error) {
	e, ok := f.active()
	if !ok {
		return nil, integration.NewError("", integration.KindNotFound, "no active tax provider")
	}
	return e, nil
}

// CalculateTax never fails. Without a working engine it returns
// fallback's result, or a zero-tax TEMPORARY result when fallback is nil
// or fails too.
func (f *TaxFactory) CalculateTax(ctx context.Context, req *tax.CalculationRequest, fallback Fallback) *tax.CalculationResponse {
	if req == nil {
		return tax.ZeroTax(nil)
	}
	logger := f.cache.opts.Logger.Ctx(ctx)

	if e, ok := f.active(); ok {
		var resp *tax.CalculationResponse
		action := "calculate_tax"
		if req.Commit {
			action = "calculate_and_commit_tax"
		}
		call := func(ctx context.Context) error {
			var err error
			resp, err = e.adapter.CalculateTax(ctx, req)
			return err
		}
		var err error
		if req.Commit {
			err = f.cache.audited(ctx, e, action, map[string]any{"transactionId": req.TransactionID}, call)
		} else {
			err = f.cache.call(ctx, action, e.config.Provider, call)
		}
		if err == nil {
			return resp
		}
		logger.Warn("tax provider failed, degrading",
			zap.String("provider", e.config.Provider),
			zap.String("transaction_id", req.TransactionID),
			zap.Error(err))
	}

	if fallback != nil {
		resp, err := fallback(ctx, req)
		if err == nil && resp != nil {
			return resp
		}
		logger.Warn("tax fallback failed, returning zero tax", zap.Error(err))
	}
	return tax.ZeroTax(req)
}

// CommitTransaction records a calculated transaction with the engine.
func (f *TaxFactory) CommitTransaction(ctx context.Context, transactionID string) (*tax.CalculationResponse, error) {
	return f.transition(ctx, "commit_transaction", transactionID, func(ctx context.Context, c tax.Calculator) (*tax.CalculationResponse, error) {
		return c.CommitTransaction(ctx, transactionID)
	})
}

// VoidTransaction cancels a transaction with the engine.
func (f *TaxFactory) VoidTransaction(ctx context.Context, transactionID string) (*tax.CalculationResponse, error) {
	return f.transition(ctx, "void_transaction", transactionID, func(ctx context.Context, c tax.Calculator) (*tax.CalculationResponse, error) {
		return c.VoidTransaction(ctx, transactionID)
	})
}

// RefundTransaction reverses all or part of a committed transaction.
func (f *TaxFactory) RefundTransaction(ctx context.Context, req *tax.RefundRequest) (*tax.CalculationResponse, error) {
	return f.transition(ctx, "refund_transaction", req.TransactionID, func(ctx context.Context, c tax.Calculator) (*tax.CalculationResponse, error) {
		return c.RefundTransaction(ctx, req)
	})
}

func (f *TaxFactory) transition(ctx context.Context, action, transactionID string, fn func(context.Context, tax.Calculator) (*tax.CalculationResponse, error)) (*tax.CalculationResponse, error) {
	e, err := f.engine()
	if err != nil {
		return nil, err
	}
	var resp *tax.CalculationResponse
	err = f.cache.audited(ctx, e, action, map[string]any{"transactionId": transactionID}, func(ctx context.Context) error {
		var err error
		resp, err = fn(ctx, e.adapter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ValidateAddress checks addr with the engine of record.
func (f *TaxFactory) ValidateAddress(ctx context.Context, addr integration.Address) (*integration.AddressValidationResult, error) {
	e, err := f.engine()
	if err != nil {
		return nil, err
	}
	var result *integration.AddressValidationResult
	err = f.cache.call(ctx, "validate_address", e.config.Provider, func(ctx context.Context) error {
		var err error
		result, err = e.adapter.ValidateAddress(ctx, addr)
		return err
	})
	return result, err
}

// TaxCodes lists the product tax codes of the engine of record.
func (f *TaxFactory) TaxCodes(ctx context.Context) ([]tax.TaxCode, error) {
	e, err := f.engine()
	if err != nil {
		return nil, err
	}
	lister, ok := e.adapter.(tax.TaxCodeLister)
	if !ok {
		return nil, integration.Validation(e.config.Provider, "tax provider does not publish tax codes")
	}
	var codes []tax.TaxCode
	err = f.cache.call(ctx, "tax_codes", e.config.Provider, func(ctx context.Context) error {
		var err error
		codes, err = lister.TaxCodes(ctx)
		return err
	})
	return codes, err
}

// NexusLocations lists where the seller has nexus according to the
// engine of record.
func (f *TaxFactory) NexusLocations(ctx context.Context) ([]tax.NexusLocation, error) {
	e, err := f.engine()
	if err != nil {
		return nil, err
	}
	lister, ok := e.adapter.(tax.NexusLister)
	if !ok {
		return nil, integration.Validation(e.config.Provider, "tax provider does not publish nexus locations")
	}
	var locations []tax.NexusLocation
	err = f.cache.call(ctx, "nexus_locations", e.config.Provider, func(ctx context.Context) error {
		var err error
		locations, err = lister.NexusLocations(ctx)
		return err
	})
	return locations, err
}

// TestConnection probes the named engine. A failed probe is reported in
// the result, not as an error.
func (f *TaxFactory) TestConnection(ctx context.Context, provider string) (integration.ConnectionResult, error) {
	return f.cache.testConnection(ctx, provider)
}
