package dhl

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
// DHL expects the client credentials in a Basic Authorization header.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	auth := integration.NewRESTClient(integration.RESTConfig{
		Provider:   carrierName,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	})
	tokens := integration.NewTokenCache(func(ctx context.Context) (integration.Token, error) {
		return auth.ClientCredentials(ctx, "/auth/v4/accesstoken", cfg.ClientID, cfg.ClientSecret, true, nil)
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

// Authenticate acquires a token, reusing a cached one when still valid.
func (c *HTTPAPIClient) Authenticate(ctx context.Context) error {
	_, err := c.tokens.Token(ctx)
	return err
}

// GetProducts calls POST /shipping/v4/products.
func (c *HTTPAPIClient) GetProducts(ctx context.Context, req *ProductsRequest) (*ProductsResponse, error) {
	var resp ProductsResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/shipping/v4/products", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateLabel calls POST /shipping/v4/label?format=.
func (c *HTTPAPIClient) CreateLabel(ctx context.Context, req *LabelRequest, format string) (*LabelResponse, error) {
	var resp LabelResponse
	path := "/shipping/v4/label?format=" + url.QueryEscape(format)
	if err := c.rest.Do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTracking calls GET /tracking/v4/package/open?trackingId=.
func (c *HTTPAPIClient) GetTracking(ctx context.Context, trackingID string) (*TrackingResponse, error) {
	var resp TrackingResponse
	path := "/tracking/v4/package/open?trackingId=" + url.QueryEscape(trackingID)
	if err := c.rest.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteLabel calls DELETE /shipping/v4/label/{pickup}?packageId=.
func (c *HTTPAPIClient) DeleteLabel(ctx context.Context, pickupAccount, packageID string) error {
	path := "/shipping/v4/label/" + url.PathEscape(pickupAccount) + "?packageId=" + url.QueryEscape(packageID)
	return c.rest.Do(ctx, http.MethodDelete, path, nil, nil)
}
