package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tournevent/integrations/internal/audit"
	"github.com/tournevent/integrations/internal/store"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/secret"
	"github.com/tournevent/integrations/pkg/shipper"
	"github.com/tournevent/integrations/pkg/tax"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CreateInput describes a new integration. Credentials are plaintext and
// are encrypted before they are stored.
type CreateInput struct {
	Category    store.Category `json:"category" validate:"required"`
	Provider    string         `json:"provider" validate:"required"`
	DisplayName string         `json:"displayName"`
	IsActive    bool           `json:"isActive"`
	IsTestMode  bool           `json:"isTestMode"`
	Priority    int            `json:"priority"`
	Credentials map[string]any `json:"credentials"`
	Settings    map[string]any `json:"settings"`
}

// UpdateInput changes an integration. Nil fields are left alone; each
// non-empty credential replaces the stored one and other stored
// credentials are kept.
type UpdateInput struct {
	DisplayName *string        `json:"displayName,omitempty"`
	IsActive    *bool          `json:"isActive,omitempty"`
	IsTestMode  *bool          `json:"isTestMode,omitempty"`
	Priority    *int           `json:"priority,omitempty"`
	Credentials map[string]any `json:"credentials,omitempty"`
	Settings    map[string]any `json:"settings,omitempty"`
}

// View is an integration as shown to administrators. Credentials are
// always masked.
type View struct {
	ID               string             `json:"id"`
	Category         store.Category     `json:"category"`
	Provider         string             `json:"provider"`
	DisplayName      string             `json:"displayName"`
	IsActive         bool               `json:"isActive"`
	IsTestMode       bool               `json:"isTestMode"`
	Priority         int                `json:"priority"`
	Credentials      map[string]any     `json:"credentials,omitempty"`
	Settings         integration.Values `json:"settings,omitempty"`
	HasWebhookSecret bool               `json:"hasWebhookSecret"`
	TestStatus       string             `json:"testStatus,omitempty"`
	TestMessage      string             `json:"testMessage,omitempty"`
	LastTestedAt     *time.Time         `json:"lastTestedAt,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// Service administers stored integrations and keeps the factories in
// step with every write.
type Service struct {
	repo     *store.IntegrationRepository
	cipher   *secret.Cipher
	carriers *shipper.Registry
	taxes    *tax.Registry
	couriers *CourierFactory
	taxer    *TaxFactory
	audit    *audit.Logger
	logger   *otelzap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// ServiceConfig holds the collaborators of a Service.
type ServiceConfig struct {
	Repo     *store.IntegrationRepository
	Cipher   *secret.Cipher
	Carriers *shipper.Registry
	Taxes    *tax.Registry
	Couriers *CourierFactory
	Tax      *TaxFactory
	Audit    *audit.Logger
	Logger   *otelzap.Logger
	Tracer   trace.Tracer
}

// NewService creates an admin service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	return &Service{
		repo:     cfg.Repo,
		cipher:   cfg.Cipher,
		carriers: cfg.Carriers,
		taxes:    cfg.Taxes,
		couriers: cfg.Couriers,
		taxer:    cfg.Tax,
		audit:    cfg.Audit,
		logger:   logger,
		tracer:   cfg.Tracer,
		now:      time.Now,
	}
}

// Create stores a new integration.
func (s *Service) Create(ctx context.Context, in CreateInput) (_ *View, err error) {
	start := time.Now()
	defer func() {
		s.audit.Observe(ctx, audit.Entry{Category: string(in.Category), Provider: in.Provider, Action: "create_integration"}, start, err)
	}()

	in.Category = store.Category(strings.ToUpper(string(in.Category)))
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	if err := s.checkProvider(in.Category, in.Provider); err != nil {
		return nil, err
	}
	blob, err := s.cipher.EncryptJSON(nonNil(in.Credentials))
	if err != nil {
		return nil, err
	}

	row := &store.IntegrationConfig{
		Category:    in.Category,
		Provider:    in.Provider,
		DisplayName: in.DisplayName,
		IsActive:    in.IsActive,
		IsTestMode:  in.IsTestMode,
		Priority:    in.Priority,
		Credentials: blob,
		Settings:    integration.Values(in.Settings),
	}
	if row.DisplayName == "" {
		row.DisplayName = in.Provider
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, err
	}
	s.reload(ctx, row.Category)
	return s.view(ctx, row), nil
}

// Update changes an integration, merging credentials.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (_ *View, err error) {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		s.audit.Observe(ctx, audit.Entry{IntegrationID: id, Category: string(row.Category), Provider: row.Provider, Action: "update_integration"}, start, err)
	}()

	if in.DisplayName != nil {
		row.DisplayName = *in.DisplayName
	}
	if in.IsActive != nil {
		row.IsActive = *in.IsActive
	}
	if in.IsTestMode != nil {
		row.IsTestMode = *in.IsTestMode
	}
	if in.Priority != nil {
		row.Priority = *in.Priority
	}
	if in.Settings != nil {
		if row.Settings == nil {
			row.Settings = integration.Values{}
		}
		for k, v := range in.Settings {
			row.Settings[k] = v
		}
	}
	if len(in.Credentials) > 0 {
		creds := map[string]any{}
		if row.Credentials != "" {
			if err := s.cipher.DecryptJSON(row.Credentials, &creds); err != nil {
				return nil, fmt.Errorf("reading stored credentials: %w", err)
			}
		}
		MergeCredentials(creds, in.Credentials)
		blob, err := s.cipher.EncryptJSON(creds)
		if err != nil {
			return nil, err
		}
		row.Credentials = blob
	}

	if err := s.repo.Update(ctx, row); err != nil {
		return nil, err
	}
	s.reload(ctx, row.Category)
	return s.view(ctx, row), nil
}

// MergeCredentials overlays update onto stored in place, descending into
// nested objects. Empty values and values equal to the masked form of what
// is stored are ignored.
func MergeCredentials(stored, update map[string]any) {
	for k, v := range update {
		switch val := v.(type) {
		case nil:
			continue
		case map[string]any:
			if nested, ok := stored[k].(map[string]any); ok {
				MergeCredentials(nested, val)
				continue
			}
		case string:
			if val == "" || isMasked(val, stored[k]) {
				continue
			}
		}
		stored[k] = v
	}
}

func isMasked(v string, current any) bool {
	if s, ok := current.(string); ok && s != v && v == secret.MaskSecret(s, 0) {
		return true
	}
	return strings.Trim(v, "*") == ""
}

// Delete removes an integration.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	start := time.Now()
	defer func() {
		s.audit.Observe(ctx, audit.Entry{IntegrationID: id, Category: string(row.Category), Provider: row.Provider, Action: "delete_integration"}, start, err)
	}()

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.reload(ctx, row.Category)
	return nil
}

// Get returns one integration.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, row), nil
}

// List returns the integrations of category, or all when it is empty.
func (s *Service) List(ctx context.Context, category store.Category) ([]View, error) {
	rows, err := s.repo.List(ctx, category)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(rows))
	for i := range rows {
		views = append(views, *s.view(ctx, &rows[i]))
	}
	return views, nil
}

// SetActive activates or deactivates an integration.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (err error) {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	action := "deactivate_integration"
	if active {
		action = "activate_integration"
	}
	start := time.Now()
	defer func() {
		s.audit.Observe(ctx, audit.Entry{IntegrationID: id, Category: string(row.Category), Provider: row.Provider, Action: action}, start, err)
	}()

	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.reload(ctx, row.Category)
	return nil
}

// TestConnection builds a throwaway adapter from the stored row, probes
// it and records the outcome. Only lookup and store failures are errors.
func (s *Service) TestConnection(ctx context.Context, id string) (integration.ConnectionResult, error) {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		return integration.ConnectionResult{}, err
	}

	start := time.Now()
	result := s.probe(ctx, row)

	if err := s.repo.RecordTest(ctx, id, result.Success, result.Message, s.now()); err != nil {
		return result, err
	}
	var probeErr error
	if !result.Success {
		probeErr = errors.New(result.Message)
	}
	s.audit.Observe(ctx, audit.Entry{
		IntegrationID: id,
		Category:      string(row.Category),
		Provider:      row.Provider,
		Action:        "test_connection",
	}, start, probeErr)
	return result, nil
}

func (s *Service) probe(ctx context.Context, row *store.IntegrationConfig) integration.ConnectionResult {
	failed := func(msg string) integration.ConnectionResult {
		return integration.ConnectionResult{Success: false, Message: msg}
	}

	cfg, err := ProviderConfig(s.cipher, *row)
	if err != nil {
		s.logger.Ctx(ctx).Error("failed to decrypt credentials",
			zap.String("integration_id", row.ID), zap.Error(err))
		return failed("failed to decrypt credentials: " + err.Error())
	}

	var a adapter
	switch row.Category {
	case store.CategoryShipping:
		a, err = s.carriers.Build(cfg, s.logger, s.tracer)
	case store.CategoryTax:
		a, err = s.taxes.Build(cfg, s.logger, s.tracer)
	default:
		return failed(fmt.Sprintf("no adapter for %s integrations", row.Category))
	}
	if err != nil {
		return failed(err.Error())
	}
	return a.TestConnection(ctx)
}

// RotateWebhookSecret replaces the webhook secret and returns the new
// plaintext. It is not retrievable afterwards.
func (s *Service) RotateWebhookSecret(ctx context.Context, id string) (_ string, err error) {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	start := time.Now()
	defer func() {
		s.audit.Observe(ctx, audit.Entry{IntegrationID: id, Category: string(row.Category), Provider: row.Provider, Action: "rotate_webhook_secret"}, start, err)
	}()

	plain, err := secret.GenerateWebhookSecret()
	if err != nil {
		return "", err
	}
	blob, err := s.cipher.Encrypt(plain)
	if err != nil {
		return "", err
	}
	row.WebhookSecret = blob
	if err := s.repo.Update(ctx, row); err != nil {
		return "", err
	}
	return plain, nil
}

func (s *Service) checkProvider(category store.Category, provider string) error {
	if !category.Valid() {
		return integration.Validation("", "unknown category %q", category)
	}
	if strings.TrimSpace(provider) == "" {
		return integration.Validation("", "provider is required")
	}
	switch category {
	case store.CategoryShipping:
		if !s.carriers.Supports(provider) {
			return integration.Validation(provider, "unsupported carrier %q", provider)
		}
	case store.CategoryTax:
		if !s.taxes.Supports(provider) {
			return integration.Validation(provider, "unsupported tax provider %q", provider)
		}
	}
	return nil
}

func (s *Service) reload(ctx context.Context, category store.Category) {
	var err error
	switch category {
	case store.CategoryShipping:
		if s.couriers != nil {
			err = s.couriers.LoadProviders(ctx)
		}
	case store.CategoryTax:
		if s.taxer != nil {
			err = s.taxer.LoadProviders(ctx)
		}
	}
	if err != nil {
		s.logger.Ctx(ctx).Error("failed to reload providers",
			zap.String("category", string(category)), zap.Error(err))
	}
}

func (s *Service) view(ctx context.Context, row *store.IntegrationConfig) *View {
	v := &View{
		ID:               row.ID,
		Category:         row.Category,
		Provider:         row.Provider,
		DisplayName:      row.DisplayName,
		IsActive:         row.IsActive,
		IsTestMode:       row.IsTestMode,
		Priority:         row.Priority,
		Settings:         row.Settings,
		HasWebhookSecret: row.WebhookSecret != "",
		TestStatus:       row.TestStatus,
		TestMessage:      row.TestMessage,
		LastTestedAt:     row.LastTestedAt,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	if row.Credentials != "" {
		creds := map[string]any{}
		if err := s.cipher.DecryptJSON(row.Credentials, &creds); err != nil {
			s.logger.Ctx(ctx).Warn("stored credentials are unreadable",
				zap.String("integration_id", row.ID), zap.Error(err))
		} else {
			v.Credentials = secret.MaskCredentials(creds)
		}
	}
	return v
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
