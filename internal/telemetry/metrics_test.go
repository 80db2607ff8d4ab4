package telemetry_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/integrations/internal/telemetry"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.RecordRequest("get_rates", "dhl", "success", 0.2)
	m.RecordRequest("get_rates", "dhl", "success", 0.3)
	m.RecordError("fedex", "authentication")
	m.RecordUnmapped("royalmail")
	m.SetLoaded("SHIPPING", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("get_rates", "dhl", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderErrors.WithLabelValues("fedex", "authentication")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnmappedStatuses.WithLabelValues("royalmail")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ProvidersLoaded.WithLabelValues("SHIPPING")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.Metrics
	m.RecordRequest("get_rates", "dhl", "success", 1)
	m.RecordError("dhl", "upstream")
	m.RecordUnmapped("dhl")
	m.SetLoaded("TAX", 1)
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", "error", ""} {
		logger, err := telemetry.NewLogger(level)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}

func TestNewLogger_LogsWithinSpan(t *testing.T) {
	logger, err := telemetry.NewLogger("debug", zap.String("service", "integrations"))
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "get_rates")
	defer span.End()

	assert.NotPanics(t, func() {
		logger.Ctx(ctx).Info("carrier rates", zap.String("provider", "dhl"))
		logger.Ctx(ctx).Error("carrier rates failed", zap.String("provider", "ups"))
		logger.Debug("no span")
	})
}
