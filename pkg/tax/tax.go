// Package tax provides an abstraction layer for tax calculation engines.
package tax

import (
	"context"

	"github.com/tournevent/integrations/pkg/integration"
)

// Calculator defines the interface that all tax adapters must implement.
// Every error returned crosses the boundary as an *integration.Error.
type Calculator interface {
	// Name returns the provider identifier (e.g., "avalara", "taxjar").
	Name() string

	// IsConfigured reports whether all required credentials are present.
	IsConfigured() bool

	// TestConnection performs one minimal live call. It never fails.
	TestConnection(ctx context.Context) integration.ConnectionResult

	// CalculateTax prices the tax of an order. With req.Commit the
	// transaction is recorded by the engine in the same call.
	CalculateTax(ctx context.Context, req *CalculationRequest) (*CalculationResponse, error)

	// CommitTransaction records a previously calculated transaction.
	CommitTransaction(ctx context.Context, transactionID string) (*CalculationResponse, error)

	// VoidTransaction cancels a transaction.
	VoidTransaction(ctx context.Context, transactionID string) (*CalculationResponse, error)

	// RefundTransaction reverses all or part of a committed transaction.
	RefundTransaction(ctx context.Context, req *RefundRequest) (*CalculationResponse, error)

	// ValidateAddress checks an address against the engine's address service.
	ValidateAddress(ctx context.Context, addr integration.Address) (*integration.AddressValidationResult, error)
}

// TaxCodeLister is implemented by engines that publish product tax codes.
type TaxCodeLister interface {
	TaxCodes(ctx context.Context) ([]TaxCode, error)
}

// NexusLister is implemented by engines that know where the seller has
// nexus.
type NexusLister interface {
	NexusLocations(ctx context.Context) ([]NexusLocation, error)
}

// Constructor builds a tax adapter from decrypted configuration.
type Constructor = integration.Constructor[Calculator]

// Registry maps tax provider ids to adapter constructors.
type Registry = integration.Registry[Calculator]

// NewRegistry creates a tax registry seeded with constructors.
func NewRegistry(constructors map[string]Constructor) *Registry {
	return integration.NewRegistry("tax provider", constructors)
}
