package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/integrations/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("ENCRYPTION_KEY", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, "integration-audit", cfg.KafkaAuditTopic)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:integrations.db")
	t.Setenv("PROVIDER_TIMEOUT", "5s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_ProductionRequiresEncryptionKey(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("ENCRYPTION_KEY", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENCRYPTION_KEY")
}

func TestValidate_Driver(t *testing.T) {
	cfg := &config.Config{DatabaseDriver: "mysql", ProviderTimeout: time.Second}
	assert.Error(t, cfg.Validate())
}

func TestAttributes(t *testing.T) {
	cfg := &config.Config{ServiceName: "svc", Version: "1.2.3", RedisAddr: "localhost:6379"}
	attrs := cfg.Attributes()
	require.NotEmpty(t, attrs)
	assert.Equal(t, "svc", attrs[0].Value.AsString())
}
