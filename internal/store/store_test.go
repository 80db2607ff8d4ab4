package store_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/integrations/internal/store"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/rules"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := store.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := store.Open("oracle", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestIntegrationRepository_CreateAndList(t *testing.T) {
	repo := store.NewIntegrationRepository(newTestDB(t))
	ctx := context.Background()

	low := &store.IntegrationConfig{Category: store.CategoryShipping, Provider: "dhl", Priority: 1, IsActive: true}
	high := &store.IntegrationConfig{Category: store.CategoryShipping, Provider: "fedex", Priority: 5, IsActive: true,
		Settings: integration.Values{"accountNumber": "123"}}
	taxCfg := &store.IntegrationConfig{Category: store.CategoryTax, Provider: "taxjar", Priority: 9}
	for _, c := range []*store.IntegrationConfig{low, high, taxCfg} {
		require.NoError(t, repo.Create(ctx, c))
		assert.NotEmpty(t, c.ID)
	}

	shipping, err := repo.List(ctx, store.CategoryShipping)
	require.NoError(t, err)
	require.Len(t, shipping, 2)
	assert.Equal(t, "fedex", shipping[0].Provider)
	assert.Equal(t, "dhl", shipping[1].Provider)
	assert.Equal(t, "123", shipping[0].Settings.String("accountNumber"))

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestIntegrationRepository_DuplicateProviderConflicts(t *testing.T) {
	repo := store.NewIntegrationRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &store.IntegrationConfig{Category: store.CategoryTax, Provider: "avalara"}))
	err := repo.Create(ctx, &store.IntegrationConfig{Category: store.CategoryTax, Provider: "avalara"})
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrConflict)

	// same provider id under another category is a different integration
	require.NoError(t, repo.Create(ctx, &store.IntegrationConfig{Category: store.CategoryShipping, Provider: "avalara"}))
}

func TestIntegrationRepository_GetUpdateDelete(t *testing.T) {
	repo := store.NewIntegrationRepository(newTestDB(t))
	ctx := context.Background()

	cfg := &store.IntegrationConfig{Category: store.CategoryShipping, Provider: "royalmail", Credentials: "blob"}
	require.NoError(t, repo.Create(ctx, cfg))

	got, err := repo.Get(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, "blob", got.Credentials)

	got.DisplayName = "Royal Mail"
	got.Credentials = "blob-2"
	require.NoError(t, repo.Update(ctx, got))

	byProvider, err := repo.GetByProvider(ctx, store.CategoryShipping, "royalmail")
	require.NoError(t, err)
	assert.Equal(t, "Royal Mail", byProvider.DisplayName)
	assert.Equal(t, "blob-2", byProvider.Credentials)

	require.NoError(t, repo.Delete(ctx, cfg.ID))
	_, err = repo.Get(ctx, cfg.ID)
	assert.ErrorIs(t, err, integration.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, cfg.ID), integration.ErrNotFound)
}

func TestIntegrationRepository_SetActiveAndRecordTest(t *testing.T) {
	repo := store.NewIntegrationRepository(newTestDB(t))
	ctx := context.Background()

	cfg := &store.IntegrationConfig{Category: store.CategoryShipping, Provider: "dhl"}
	require.NoError(t, repo.Create(ctx, cfg))

	require.NoError(t, repo.SetActive(ctx, cfg.ID, true))
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordTest(ctx, cfg.ID, false, "bad credentials", at))

	got, err := repo.Get(ctx, cfg.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, store.TestStatusFailed, got.TestStatus)
	assert.Equal(t, "bad credentials", got.TestMessage)
	require.NotNil(t, got.LastTestedAt)
	assert.True(t, got.LastTestedAt.Equal(at))

	assert.ErrorIs(t, repo.SetActive(ctx, "missing", true), integration.ErrNotFound)
}

func TestMethodRepository_FeedsRuleEngine(t *testing.T) {
	db := newTestDB(t)
	repo := store.NewMethodRepository(db)
	ctx := context.Background()

	_, err := repo.Save(ctx, rules.Method{
		Name:     "Standard",
		Type:     rules.FlatRate,
		IsActive: true,
		Rules: []rules.Rule{
			{Name: "Domestic", Priority: 10, Rate: decimal.RequireFromString("6"), IsActive: true,
				Conditions: rules.Conditions{Countries: []string{"GB"}, MaxWeight: dec("5")}},
			{Name: "Fallback", Priority: 1, Rate: decimal.RequireFromString("12.5"), IsActive: true},
		},
	})
	require.NoError(t, err)
	_, err = repo.Save(ctx, rules.Method{
		Name: "Seller courier", Type: rules.FlatRate, SellerID: "seller-1", IsActive: true,
		Rules: []rules.Rule{{Name: "Any", Rate: decimal.RequireFromString("3"), IsActive: true}},
	})
	require.NoError(t, err)
	_, err = repo.Save(ctx, rules.Method{Name: "Retired", Type: rules.FlatRate, IsActive: false,
		Rules: []rules.Rule{{Name: "Any", Rate: decimal.RequireFromString("1"), IsActive: true}}})
	require.NoError(t, err)

	platform, err := repo.Methods(ctx, "")
	require.NoError(t, err)
	require.Len(t, platform, 1)
	require.Len(t, platform[0].Rules, 2)
	assert.Equal(t, "Domestic", platform[0].Rules[0].Name)
	assert.Equal(t, []string{"GB"}, platform[0].Rules[0].Conditions.Countries)
	require.NotNil(t, platform[0].Rules[0].Conditions.MaxWeight)
	assert.Equal(t, "5", platform[0].Rules[0].Conditions.MaxWeight.String())

	seller, err := repo.Methods(ctx, "seller-1")
	require.NoError(t, err)
	require.Len(t, seller, 1)
	assert.Equal(t, "seller-1", seller[0].SellerID)

	engine := rules.NewEngine(repo, nil)
	opts, err := engine.CalculateShippingRate(ctx, decimal.RequireFromString("2"), decimal.RequireFromString("40"),
		rules.Destination{Country: "gb"}, "")
	require.NoError(t, err)
	require.Len(t, opts, 1)
	assert.Equal(t, "6", opts[0].Rate.String())
	assert.Equal(t, "Domestic", opts[0].RuleName)
}

func TestMethodRepository_SaveReplacesRules(t *testing.T) {
	repo := store.NewMethodRepository(newTestDB(t))
	ctx := context.Background()

	id, err := repo.Save(ctx, rules.Method{Name: "Express", Type: rules.FlatRate, IsActive: true,
		Rules: []rules.Rule{{Name: "Old", Rate: decimal.RequireFromString("9"), IsActive: true}}})
	require.NoError(t, err)

	_, err = repo.Save(ctx, rules.Method{ID: id, Name: "Express", Type: rules.FlatRate, IsActive: true,
		Rules: []rules.Rule{{Name: "New", Rate: decimal.RequireFromString("11"), IsActive: true}}})
	require.NoError(t, err)

	methods, err := repo.Methods(ctx, "")
	require.NoError(t, err)
	require.Len(t, methods, 1)
	require.Len(t, methods[0].Rules, 1)
	assert.Equal(t, "New", methods[0].Rules[0].Name)

	require.NoError(t, repo.Delete(ctx, id))
	methods, err = repo.Methods(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, methods)
}

func TestLogRepository_Recent(t *testing.T) {
	repo := store.NewLogRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, provider := range []string{"dhl", "fedex", "dhl"} {
		require.NoError(t, repo.Append(ctx, &store.IntegrationLog{
			Provider:  provider,
			Action:    "create_shipment",
			Success:   i != 1,
			Metadata:  map[string]any{"attempt": i},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := repo.Recent(ctx, "dhl", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].CreatedAt.After(entries[1].CreatedAt))
	assert.EqualValues(t, 2, entries[0].Metadata["attempt"])
}
