package integration

import (
	"context"
	"fmt"
	"time"
)

// ConnectionResult is the outcome of a live connectivity probe.
type ConnectionResult struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Probe performs one minimal live call against a vendor.
type Probe func(ctx context.Context) (map[string]any, error)

// RunConnectionTest times probe and converts every outcome, panics
// included, into a ConnectionResult. It never fails.
func RunConnectionTest(ctx context.Context, provider string, probe Probe) (result ConnectionResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = ConnectionResult{
				Success: false,
				Message: fmt.Sprintf("%s connection test panicked: %v", provider, r),
			}
		}
		result.Duration = time.Since(start)
	}()

	details, err := probe(ctx)
	if err != nil {
		return ConnectionResult{Success: false, Message: err.Error(), Details: details}
	}
	return ConnectionResult{
		Success: true,
		Message: fmt.Sprintf("Successfully connected to %s", provider),
		Details: details,
	}
}
