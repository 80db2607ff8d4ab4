package avalara

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tournevent/integrations/pkg/integration"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	rest *integration.RESTClient
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL    string
	AccountID  string
	LicenseKey string
	AppName    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
// AvaTax authenticates every request with HTTP Basic account:license.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	app := cfg.AppName
	if app == "" {
		app = "tournevent-integrations"
	}
	return &HTTPAPIClient{
		rest: integration.NewRESTClient(integration.RESTConfig{
			Provider:   providerName,
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
			Headers: map[string]string{
				"X-Avalara-Client": fmt.Sprintf("%s; 1.0; Go; 1.0", app),
			},
			Authorize: func(ctx context.Context, req *http.Request) error {
				req.SetBasicAuth(cfg.AccountID, cfg.LicenseKey)
				return nil
			},
		}),
	}
}

// Ping calls GET /api/v2/utilities/ping.
func (c *HTTPAPIClient) Ping(ctx context.Context) (*PingResponse, error) {
	var resp PingResponse
	if err := c.rest.Do(ctx, http.MethodGet, "/api/v2/utilities/ping", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateTransaction calls POST /api/v2/transactions/create.
func (c *HTTPAPIClient) CreateTransaction(ctx context.Context, req *CreateTransactionModel) (*TransactionModel, error) {
	var resp TransactionModel
	if err := c.rest.Do(ctx, http.MethodPost, "/api/v2/transactions/create", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CommitTransaction calls POST /api/v2/companies/{company}/transactions/{code}/commit.
func (c *HTTPAPIClient) CommitTransaction(ctx context.Context, companyCode, code string) (*TransactionModel, error) {
	var resp TransactionModel
	if err := c.rest.Do(ctx, http.MethodPost, transactionPath(companyCode, code, "commit"), &CommitTransactionModel{Commit: true}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VoidTransaction calls POST /api/v2/companies/{company}/transactions/{code}/void.
func (c *HTTPAPIClient) VoidTransaction(ctx context.Context, companyCode, code string) (*TransactionModel, error) {
	var resp TransactionModel
	if err := c.rest.Do(ctx, http.MethodPost, transactionPath(companyCode, code, "void"), &VoidTransactionModel{Code: "DocVoided"}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTransaction calls GET /api/v2/companies/{company}/transactions/{code}.
func (c *HTTPAPIClient) GetTransaction(ctx context.Context, companyCode, code string) (*TransactionModel, error) {
	var resp TransactionModel
	path := fmt.Sprintf("/api/v2/companies/%s/transactions/%s", url.PathEscape(companyCode), url.PathEscape(code))
	if err := c.rest.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefundTransaction calls POST /api/v2/companies/{company}/transactions/{code}/refund.
func (c *HTTPAPIClient) RefundTransaction(ctx context.Context, companyCode, code string, req *RefundTransactionModel) (*TransactionModel, error) {
	var resp TransactionModel
	if err := c.rest.Do(ctx, http.MethodPost, transactionPath(companyCode, code, "refund"), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveAddress calls POST /api/v2/addresses/resolve.
func (c *HTTPAPIClient) ResolveAddress(ctx context.Context, req *AddressInfo) (*AddressResolutionModel, error) {
	var resp AddressResolutionModel
	if err := c.rest.Do(ctx, http.MethodPost, "/api/v2/addresses/resolve", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTaxCodes calls GET /api/v2/definitions/taxcodes.
func (c *HTTPAPIClient) ListTaxCodes(ctx context.Context) (*TaxCodeList, error) {
	var resp TaxCodeList
	if err := c.rest.Do(ctx, http.MethodGet, "/api/v2/definitions/taxcodes", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListNexus calls GET /api/v2/companies/{id}/nexus.
func (c *HTTPAPIClient) ListNexus(ctx context.Context, companyID int) (*NexusList, error) {
	var resp NexusList
	if err := c.rest.Do(ctx, http.MethodGet, fmt.Sprintf("/api/v2/companies/%d/nexus", companyID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func transactionPath(companyCode, code, action string) string {
	return fmt.Sprintf("/api/v2/companies/%s/transactions/%s/%s",
		url.PathEscape(companyCode), url.PathEscape(code), action)
}
