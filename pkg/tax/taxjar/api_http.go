package taxjar

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/tournevent/integrations/pkg/integration"
)

// apiVersion pins the response shapes, including negative refund amounts.
const apiVersion = "2022-01-24"

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	rest *integration.RESTClient
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL    string
	APIToken   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
// TaxJar tokens are static, so no refresh is needed.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	return &HTTPAPIClient{
		rest: integration.NewRESTClient(integration.RESTConfig{
			Provider:   providerName,
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
			Headers: map[string]string{
				"Authorization": "Bearer " + cfg.APIToken,
				"x-api-version": apiVersion,
			},
		}),
	}
}

// TaxForOrder calls POST /v2/taxes.
func (c *HTTPAPIClient) TaxForOrder(ctx context.Context, req *TaxRequest) (*TaxResponse, error) {
	var resp TaxResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/v2/taxes", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateOrder calls POST /v2/transactions/orders.
func (c *HTTPAPIClient) CreateOrder(ctx context.Context, order *OrderTransaction) (*OrderTransaction, error) {
	var resp OrderResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/v2/transactions/orders", order, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

// ShowOrder calls GET /v2/transactions/orders/{id}.
func (c *HTTPAPIClient) ShowOrder(ctx context.Context, transactionID string) (*OrderTransaction, error) {
	var resp OrderResponse
	if err := c.rest.Do(ctx, http.MethodGet, "/v2/transactions/orders/"+url.PathEscape(transactionID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

// DeleteOrder calls DELETE /v2/transactions/orders/{id}.
func (c *HTTPAPIClient) DeleteOrder(ctx context.Context, transactionID string) (*OrderTransaction, error) {
	var resp OrderResponse
	if err := c.rest.Do(ctx, http.MethodDelete, "/v2/transactions/orders/"+url.PathEscape(transactionID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

// CreateRefund calls POST /v2/transactions/refunds.
func (c *HTTPAPIClient) CreateRefund(ctx context.Context, refund *RefundTransaction) (*RefundTransaction, error) {
	var resp RefundResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/v2/transactions/refunds", refund, &resp); err != nil {
		return nil, err
	}
	return &resp.Refund, nil
}

// ValidateAddress calls POST /v2/addresses/validate.
func (c *HTTPAPIClient) ValidateAddress(ctx context.Context, req *AddressRequest) (*AddressResponse, error) {
	var resp AddressResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/v2/addresses/validate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Categories calls GET /v2/categories.
func (c *HTTPAPIClient) Categories(ctx context.Context) (*CategoriesResponse, error) {
	var resp CategoriesResponse
	if err := c.rest.Do(ctx, http.MethodGet, "/v2/categories", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NexusRegions calls GET /v2/nexus/regions.
func (c *HTTPAPIClient) NexusRegions(ctx context.Context) (*NexusRegionsResponse, error) {
	var resp NexusRegionsResponse
	if err := c.rest.Do(ctx, http.MethodGet, "/v2/nexus/regions", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
