// Package provider turns stored integration configs into live adapters
// and routes carrier and tax operations to them.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tournevent/integrations/internal/audit"
	"github.com/tournevent/integrations/internal/store"
	"github.com/tournevent/integrations/internal/telemetry"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultTimeout bounds each adapter call when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// ConfigSource lists stored integration configs.
type ConfigSource interface {
	List(ctx context.Context, category store.Category) ([]store.IntegrationConfig, error)
}

// Decrypter opens encrypted credential blobs.
type Decrypter interface {
	DecryptJSON(blob string, v any) error
}

// Options carries the collaborators shared by both factories.
type Options struct {
	Logger  *otelzap.Logger
	Tracer  trace.Tracer
	Metrics *telemetry.Metrics
	Audit   *audit.Logger
	// Timeout bounds every adapter call.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = otelzap.New(zap.NewNop())
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// ProviderConfig decrypts row into the configuration an adapter
// constructor receives.
func ProviderConfig(cipher Decrypter, row store.IntegrationConfig) (integration.ProviderConfig, error) {
	creds := integration.Values{}
	if row.Credentials != "" {
		if err := cipher.DecryptJSON(row.Credentials, &creds); err != nil {
			return integration.ProviderConfig{}, err
		}
	}
	settings := row.Settings
	if settings == nil {
		settings = integration.Values{}
	}
	return integration.ProviderConfig{
		Provider:    row.Provider,
		Credentials: creds,
		Settings:    settings,
		TestMode:    row.IsTestMode,
	}, nil
}

type adapter interface {
	Name() string
	IsConfigured() bool
	TestConnection(ctx context.Context) integration.ConnectionResult
}

type cached[T adapter] struct {
	adapter T
	config  store.IntegrationConfig
	order   int
}

// cache holds the adapters of one category. load replaces it wholesale.
type cache[T adapter] struct {
	category store.Category
	source   ConfigSource
	cipher   Decrypter
	registry *integration.Registry[T]
	opts     Options

	mu      sync.RWMutex
	entries map[string]*cached[T]
}

func newCache[T adapter](category store.Category, source ConfigSource, cipher Decrypter, registry *integration.Registry[T], opts Options) *cache[T] {
	return &cache[T]{
		category: category,
		source:   source,
		cipher:   cipher,
		registry: registry,
		opts:     opts,
		entries:  map[string]*cached[T]{},
	}
}

func (c *cache[T]) load(ctx context.Context) error {
	rows, err := c.source.List(ctx, c.category)
	if err != nil {
		return fmt.Errorf("listing %s integrations: %w", c.category, err)
	}

	logger := c.opts.Logger.Ctx(ctx)
	next := make(map[string]*cached[T], len(rows))
	for i, row := range rows {
		fields := []zap.Field{
			zap.String("category", string(c.category)),
			zap.String("provider", row.Provider),
			zap.String("integration_id", row.ID),
		}
		if !c.registry.Supports(row.Provider) {
			logger.Warn("skipping unsupported provider", fields...)
			continue
		}
		cfg, err := ProviderConfig(c.cipher, row)
		if err != nil {
			logger.Error("skipping provider with unreadable credentials", append(fields, zap.Error(err))...)
			continue
		}
		a, err := c.registry.Build(cfg, c.opts.Logger, c.opts.Tracer)
		if err != nil {
			logger.Warn("skipping provider", append(fields, zap.Error(err))...)
			continue
		}
		if !a.IsConfigured() {
			logger.Warn("skipping provider with incomplete credentials", fields...)
			continue
		}
		next[row.Provider] = &cached[T]{adapter: a, config: row, order: i}
	}

	c.mu.Lock()
	c.entries = next
	c.mu.Unlock()

	c.opts.Metrics.SetLoaded(string(c.category), len(next))
	logger.Info("providers loaded",
		zap.String("category", string(c.category)),
		zap.Int("rows", len(rows)),
		zap.Int("loaded", len(next)))
	return nil
}

// get returns the adapter only when its config is active.
func (c *cache[T]) get(name string) (*cached[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok || !e.config.IsActive {
		return nil, false
	}
	return e, true
}

func (c *cache[T]) loaded(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[name]
	return ok
}

// active returns active entries, highest priority first, then load order.
func (c *cache[T]) active() []*cached[T] {
	c.mu.RLock()
	out := make([]*cached[T], 0, len(c.entries))
	for _, e := range c.entries {
		if e.config.IsActive {
			out = append(out, e)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].config.Priority != out[j].config.Priority {
			return out[i].config.Priority > out[j].config.Priority
		}
		return out[i].order < out[j].order
	})
	return out
}

func (c *cache[T]) adapters() []T {
	entries := c.active()
	out := make([]T, len(entries))
	for i, e := range entries {
		out[i] = e.adapter
	}
	return out
}

// call runs fn under the per-call timeout and records its metrics.
func (c *cache[T]) call(ctx context.Context, operation, provider string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	status := "success"
	if err != nil {
		status = "error"
		c.opts.Metrics.RecordError(provider, string(integration.KindOf(err)))
	}
	c.opts.Metrics.RecordRequest(operation, provider, status, time.Since(start).Seconds())
	return err
}

// audited is call plus one audit entry.
func (c *cache[T]) audited(ctx context.Context, e *cached[T], action string, metadata map[string]any, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := c.call(ctx, action, e.config.Provider, fn)
	c.opts.Audit.Observe(ctx, audit.Entry{
		IntegrationID: e.config.ID,
		Category:      string(c.category),
		Provider:      e.config.Provider,
		Action:        action,
		Metadata:      metadata,
	}, start, err)
	return err
}

func (c *cache[T]) testConnection(ctx context.Context, name string) (integration.ConnectionResult, error) {
	e, ok := c.get(name)
	if !ok {
		return integration.ConnectionResult{}, notActive(name)
	}
	var result integration.ConnectionResult
	start := time.Now()
	_ = c.call(ctx, "test_connection", name, func(ctx context.Context) error {
		result = e.adapter.TestConnection(ctx)
		return nil
	})
	var err error
	if !result.Success {
		err = errors.New(result.Message)
	}
	c.opts.Audit.Observe(ctx, audit.Entry{
		IntegrationID: e.config.ID,
		Category:      string(c.category),
		Provider:      name,
		Action:        "test_connection",
	}, start, err)
	return result, nil
}

func notActive(name string) error {
	return integration.NewError(name, integration.KindNotFound, fmt.Sprintf("provider %q is not configured or not active", name))
}
