package provider

import (
	"github.com/tournevent/integrations/pkg/shipper"
	"github.com/tournevent/integrations/pkg/shipper/dhl"
	"github.com/tournevent/integrations/pkg/shipper/fedex"
	"github.com/tournevent/integrations/pkg/shipper/mock"
	"github.com/tournevent/integrations/pkg/shipper/royalmail"
	"github.com/tournevent/integrations/pkg/tax"
	"github.com/tournevent/integrations/pkg/tax/avalara"
	"github.com/tournevent/integrations/pkg/tax/taxjar"
)

// Carriers returns the registry of every supported carrier.
func Carriers() *shipper.Registry {
	return shipper.NewRegistry(map[string]shipper.Constructor{
		"royalmail": royalmail.FromProviderConfig,
		"fedex":     fedex.FromProviderConfig,
		"dhl":       dhl.FromProviderConfig,
		"mock":      mock.FromProviderConfig,
	})
}

// TaxProviders returns the registry of every supported tax engine.
func TaxProviders() *tax.Registry {
	return tax.NewRegistry(map[string]tax.Constructor{
		"avalara": avalara.FromProviderConfig,
		"taxjar":  taxjar.FromProviderConfig,
	})
}
