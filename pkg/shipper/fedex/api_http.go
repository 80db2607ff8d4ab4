package fedex

import (
	"context"
	"net/http"
	"time"

	"github.com/tournevent/integrations/pkg/integration"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	rest   *integration.RESTClient
	tokens *integration.TokenCache
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	auth := integration.NewRESTClient(integration.RESTConfig{
		Provider:   carrierName,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	})
	tokens := integration.NewTokenCache(func(ctx context.Context) (integration.Token, error) {
		return auth.ClientCredentials(ctx, "/oauth/token", cfg.ClientID, cfg.ClientSecret, false, nil)
	})

	return &HTTPAPIClient{
		tokens: tokens,
		rest: integration.NewRESTClient(integration.RESTConfig{
			Provider:       carrierName,
			BaseURL:        cfg.BaseURL,
			Timeout:        cfg.Timeout,
			HTTPClient:     cfg.HTTPClient,
			Headers:        map[string]string{"X-locale": "en_US"},
			Authorize:      integration.BearerAuthorizer(tokens),
			OnUnauthorized: tokens.Invalidate,
		}),
	}
}

// Authenticate acquires a token, reusing a cached one when still valid.
func (c *HTTPAPIClient) Authenticate(ctx context.Context) error {
	_, err := c.tokens.Token(ctx)
	return err
}

// GetRates calls POST /rate/v1/rates/quotes.
func (c *HTTPAPIClient) GetRates(ctx context.Context, req *RateRequest) (*RateResponse, error) {
	var resp RateResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/rate/v1/rates/quotes", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateShipment calls POST /ship/v1/shipments.
func (c *HTTPAPIClient) CreateShipment(ctx context.Context, req *ShipRequest) (*ShipResponse, error) {
	var resp ShipResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/ship/v1/shipments", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Track calls POST /track/v1/trackingnumbers.
func (c *HTTPAPIClient) Track(ctx context.Context, req *TrackRequest) (*TrackResponse, error) {
	var resp TrackResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/track/v1/trackingnumbers", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelShipment calls PUT /ship/v1/shipments/cancel.
func (c *HTTPAPIClient) CancelShipment(ctx context.Context, req *CancelRequest) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.rest.Do(ctx, http.MethodPut, "/ship/v1/shipments/cancel", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveAddress calls POST /address/v1/addresses/resolve.
func (c *HTTPAPIClient) ResolveAddress(ctx context.Context, req *AddressRequest) (*AddressResponse, error) {
	var resp AddressResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/address/v1/addresses/resolve", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreatePickup calls POST /pickup/v1/pickups.
func (c *HTTPAPIClient) CreatePickup(ctx context.Context, req *PickupRequest) (*PickupResponse, error) {
	var resp PickupResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/pickup/v1/pickups", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
