// Package integration holds the contract shared by every carrier and tax
// adapter: provider configuration, the uniform error type, address
// validation, bearer token caching and a JSON REST helper.
package integration

import (
	"fmt"
	"strconv"
	"strings"
)

// Values is a decrypted credential or settings document.
type Values map[string]any

// String returns the first non-empty string stored under one of keys.
// Numbers are formatted so that account numbers stored as JSON numbers
// still resolve.
func (v Values) String(keys ...string) string {
	for _, k := range keys {
		raw, ok := v[k]
		if !ok || raw == nil {
			continue
		}
		var s string
		switch val := raw.(type) {
		case string:
			s = val
		case float64:
			s = strconv.FormatFloat(val, 'f', -1, 64)
		case int:
			s = strconv.Itoa(val)
		case bool:
			s = strconv.FormatBool(val)
		default:
			s = fmt.Sprint(val)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Bool returns the boolean stored under key, accepting "true"/"false" strings.
func (v Values) Bool(key string) bool {
	switch val := v[key].(type) {
	case bool:
		return val
	case string:
		b, _ := strconv.ParseBool(val)
		return b
	default:
		return false
	}
}

// Missing returns the keys whose values are absent or blank.
func (v Values) Missing(keys ...string) []string {
	var missing []string
	for _, k := range keys {
		if v.String(k) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

// ProviderConfig is what a factory hands an adapter constructor after
// decrypting a stored integration row.
type ProviderConfig struct {
	Provider    string
	Credentials Values
	Settings    Values
	TestMode    bool
}

// BaseURL picks the settings override, or the sandbox/production default.
func (c ProviderConfig) BaseURL(production, sandbox string) string {
	if u := c.Settings.String("baseUrl", "base_url"); u != "" {
		return strings.TrimRight(u, "/")
	}
	if c.TestMode && sandbox != "" {
		return sandbox
	}
	return production
}

// UseMock reports whether the adapter should talk to its in-process mock API.
func (c ProviderConfig) UseMock() bool {
	return c.Settings.Bool("useMock")
}
