package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tournevent/integrations/internal/audit"
	"github.com/tournevent/integrations/internal/config"
	"github.com/tournevent/integrations/internal/idempotency"
	"github.com/tournevent/integrations/internal/provider"
	"github.com/tournevent/integrations/internal/server"
	"github.com/tournevent/integrations/internal/store"
	"github.com/tournevent/integrations/internal/telemetry"
	"github.com/tournevent/integrations/pkg/rules"
	"github.com/tournevent/integrations/pkg/secret"
	"github.com/tournevent/integrations/pkg/shipper"
	"github.com/tournevent/integrations/pkg/tax"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(cfg *config.Config) (*otelzap.Logger, error) {
	return telemetry.NewLogger(cfg.LogLevel,
		zap.String("service", cfg.ServiceName),
		zap.String("env", cfg.Env),
	)
}

// initTracer returns the global no-op tracer when exporting is disabled.
func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return otel.Tracer(cfg.ServiceName), func(context.Context) error { return nil }, nil
	}

	tracer, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
	if err != nil {
		return otel.Tracer(cfg.ServiceName), nil, err
	}
	return tracer, shutdown, nil
}

// initAudit writes audit entries to the database and, when brokers are
// configured, to Kafka as well.
func initAudit(db *gorm.DB, cfg *config.Config, logger *otelzap.Logger) (*audit.Logger, func()) {
	sinks := audit.MultiSink{audit.NewGormSink(store.NewLogRepository(db))}
	closeSinks := func() {}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := audit.NewKafkaSink(audit.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaAuditTopic))
		sinks = append(sinks, kafkaSink)
		closeSinks = func() {
			if err := kafkaSink.Close(); err != nil {
				logger.Warn("Failed to close kafka audit writer", zap.Error(err))
			}
		}
		logger.Info("Kafka audit sink enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaAuditTopic),
		)
	}
	return audit.NewLogger(sinks, logger), closeSinks
}

// initIdempotency prefers Redis so reservations survive restarts and are
// shared between replicas.
func initIdempotency(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) (idempotency.Store, func(), error) {
	if cfg.RedisAddr == "" {
		mem := idempotency.NewMemoryStore(cfg.IdempotencyTTL)
		return mem, mem.Close, nil
	}

	rs, err := idempotency.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.IdempotencyTTL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Redis idempotency store enabled", zap.String("addr", cfg.RedisAddr))
	return rs, func() {
		if err := rs.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}, nil
}

type app struct {
	carriers *shipper.Registry
	taxes    *tax.Registry
	deps     server.Deps
}

// initApp wires the factories, the admin service and the rule engine, and
// performs the first provider load.
func initApp(
	ctx context.Context,
	db *gorm.DB,
	cipher *secret.Cipher,
	auditLog *audit.Logger,
	idem idempotency.Store,
	tracer trace.Tracer,
	cfg *config.Config,
	logger *otelzap.Logger,
) *app {
	repo := store.NewIntegrationRepository(db)
	methods := store.NewMethodRepository(db)

	opts := provider.Options{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: telemetry.NewMetrics(prometheus.DefaultRegisterer),
		Audit:   auditLog,
		Timeout: cfg.ProviderTimeout,
	}

	carriers := provider.Carriers()
	taxes := provider.TaxProviders()
	couriers := provider.NewCourierFactory(repo, cipher, carriers, idem, opts)
	taxFactory := provider.NewTaxFactory(repo, cipher, taxes, opts)

	if err := couriers.LoadProviders(ctx); err != nil {
		logger.Warn("Failed to load carriers", zap.Error(err))
	}
	if err := taxFactory.LoadProviders(ctx); err != nil {
		logger.Warn("Failed to load tax providers", zap.Error(err))
	}

	admin := provider.NewService(provider.ServiceConfig{
		Repo:     repo,
		Cipher:   cipher,
		Carriers: carriers,
		Taxes:    taxes,
		Couriers: couriers,
		Tax:      taxFactory,
		Audit:    auditLog,
		Logger:   logger,
		Tracer:   tracer,
	})

	return &app{
		carriers: carriers,
		taxes:    taxes,
		deps: server.Deps{
			Couriers: couriers,
			Taxes:    taxFactory,
			Admin:    admin,
			Engine:   rules.NewEngine(methods, logger),
			Methods:  methods,
			Logs:     store.NewLogRepository(db),
		},
	}
}
