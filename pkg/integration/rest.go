package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Authorizer decorates an outgoing request with credentials.
type Authorizer func(ctx context.Context, req *http.Request) error

// RESTConfig holds configuration for a RESTClient.
type RESTConfig struct {
	Provider   string
	BaseURL    string
	Timeout    time.Duration
	Headers    map[string]string
	Authorize  Authorizer
	HTTPClient *http.Client

	// OnUnauthorized runs when the vendor answers 401, typically to drop a
	// cached token.
	OnUnauthorized func()
}

// RESTClient performs JSON requests against one vendor API and converts
// every failure into an *Error.
type RESTClient struct {
	provider       string
	baseURL        string
	headers        map[string]string
	authorize      Authorizer
	onUnauthorized func()
	httpClient     *http.Client
}

// NewRESTClient creates a new JSON REST client.
func NewRESTClient(cfg RESTConfig) *RESTClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &RESTClient{
		provider:       cfg.Provider,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		headers:        cfg.Headers,
		authorize:      cfg.Authorize,
		onUnauthorized: cfg.OnUnauthorized,
		httpClient:     httpClient,
	}
}

// Do sends body as JSON to path and decodes a successful response into out.
// out may be nil when the response body is irrelevant.
func (c *RESTClient) Do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return NewError(c.provider, KindValidation, "failed to marshal request body").WithCause(err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return NewError(c.provider, KindUpstream, "failed to create request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tournevent-integrations/1.0")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	if c.authorize != nil {
		if err := c.authorize(ctx, req); err != nil {
			return err
		}
	}

	return c.send(req, out)
}

// ClientCredentials performs an OAuth2 client_credentials grant against
// path. When basic is true the client id and secret travel in the
// Authorization header, otherwise in the form body.
func (c *RESTClient) ClientCredentials(ctx context.Context, path, clientID, clientSecret string, basic bool, extra url.Values) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if !basic {
		form.Set("client_id", clientID)
		form.Set("client_secret", clientSecret)
	}
	for k, vs := range extra {
		for _, v := range vs {
			form.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, NewError(c.provider, KindAuthentication, "failed to create token request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if basic {
		req.SetBasicAuth(clientID, clientSecret)
	}

	var payload struct {
		AccessToken string          `json:"access_token"`
		ExpiresIn   json.RawMessage `json:"expires_in"`
	}
	if err := c.send(req, &payload); err != nil {
		return Token{}, asAuthentication(c.provider, err)
	}
	if payload.AccessToken == "" {
		return Token{}, NewError(c.provider, KindAuthentication, "token response did not contain an access token")
	}

	return Token{
		AccessToken: payload.AccessToken,
		ExpiresIn:   parseExpiresIn(payload.ExpiresIn),
	}, nil
}

func (c *RESTClient) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewError(c.provider, KindUpstream, "request failed").
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return c.parseError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return NewError(c.provider, KindUpstream, "malformed response body").
			WithCause(err).
			WithStatusCode(resp.StatusCode)
	}
	return nil
}

// parseError extracts error information from an HTTP response.
func (c *RESTClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	kind := KindUpstream
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuthentication
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = KindValidation
	}

	code, msg := vendorMessage(body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if code == "" {
		code = fmt.Sprintf("HTTP_%d", resp.StatusCode)
	}

	return NewError(c.provider, kind, msg).
		WithCode(code).
		WithStatusCode(resp.StatusCode).
		WithRetryable(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500)
}

// vendorMessage understands the handful of error envelopes the supported
// vendors use.
func vendorMessage(body []byte) (code, message string) {
	var envelope struct {
		Code             string `json:"code"`
		Message          string `json:"message"`
		Error            any    `json:"error"`
		ErrorDescription string `json:"error_description"`
		Detail           string `json:"detail"`
		Errors           []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", strings.TrimSpace(string(body))
	}

	code = envelope.Code
	switch {
	case len(envelope.Errors) > 0:
		if code == "" {
			code = envelope.Errors[0].Code
		}
		message = envelope.Errors[0].Message
	case envelope.Message != "":
		message = envelope.Message
	case envelope.ErrorDescription != "":
		message = envelope.ErrorDescription
	case envelope.Detail != "":
		message = envelope.Detail
	}

	switch e := envelope.Error.(type) {
	case string:
		if message == "" {
			message = e
		} else if code == "" {
			code = e
		}
	case map[string]any:
		if m, ok := e["message"].(string); ok && message == "" {
			message = m
		}
		if c, ok := e["code"].(string); ok && code == "" {
			code = c
		}
	}
	return code, message
}

func asAuthentication(provider string, err error) error {
	if ie, ok := err.(*Error); ok {
		ie.Kind = KindAuthentication
		return ie
	}
	return NewError(provider, KindAuthentication, "token acquisition failed").WithCause(err)
}

func parseExpiresIn(raw json.RawMessage) time.Duration {
	var seconds float64
	if err := json.Unmarshal(raw, &seconds); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			fmt.Sscanf(s, "%g", &seconds)
		}
	}
	if seconds <= 0 {
		seconds = 3600
	}
	return time.Duration(seconds) * time.Second
}
