package shipper

import "github.com/tournevent/integrations/pkg/integration"

// Constructor builds a carrier adapter from decrypted configuration.
type Constructor = integration.Constructor[Carrier]

// Registry maps carrier ids to adapter constructors.
type Registry = integration.Registry[Carrier]

// NewRegistry creates a carrier registry seeded with constructors.
func NewRegistry(constructors map[string]Constructor) *Registry {
	return integration.NewRegistry("carrier", constructors)
}
