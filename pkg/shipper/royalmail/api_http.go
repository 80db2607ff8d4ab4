package royalmail

import (
	"context"
	"net/http"
	"net/url"
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
// Tokens come from the OAuth2 client credentials grant and are cached for
// the lifetime of the client.
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
			Authorize:      integration.BearerAuthorizer(tokens),
			OnUnauthorized: tokens.Invalidate,
		}),
	}
}

// GetRates fetches rates via POST /shipping/v3/rates.
func (c *HTTPAPIClient) GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error) {
	var resp RatesResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/shipping/v3/rates", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateShipment books a shipment via POST /shipping/v3/shipments.
func (c *HTTPAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error) {
	var resp ShipmentResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/shipping/v3/shipments", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTracking fetches GET /tracking/v2/mailpieces/{id}/events.
func (c *HTTPAPIClient) GetTracking(ctx context.Context, trackingNumber string) (*TrackingResponse, error) {
	var resp TrackingResponse
	path := "/tracking/v2/mailpieces/" + url.PathEscape(trackingNumber) + "/events"
	if err := c.rest.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelShipment voids a shipment via DELETE /shipping/v3/shipments/{id}.
func (c *HTTPAPIClient) CancelShipment(ctx context.Context, shipmentID string) (*CancelResponse, error) {
	resp := CancelResponse{ShipmentID: shipmentID, Status: "cancelled"}
	path := "/shipping/v3/shipments/" + url.PathEscape(shipmentID)
	if err := c.rest.Do(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValidateAddress checks an address via POST /addresses/v1/validate.
func (c *HTTPAPIClient) ValidateAddress(ctx context.Context, req *AddressRequest) (*AddressResponse, error) {
	var resp AddressResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/addresses/v1/validate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetServices lists services via GET /shipping/v3/services.
func (c *HTTPAPIClient) GetServices(ctx context.Context) (*ServicesResponse, error) {
	var resp ServicesResponse
	if err := c.rest.Do(ctx, http.MethodGet, "/shipping/v3/services", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
