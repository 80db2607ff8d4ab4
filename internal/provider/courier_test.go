package provider_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/integrations/internal/audit"
	"github.com/tournevent/integrations/internal/idempotency"
	"github.com/tournevent/integrations/internal/provider"
	"github.com/tournevent/integrations/internal/store"
	"github.com/tournevent/integrations/internal/telemetry"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/shipper"
	"github.com/tournevent/integrations/pkg/shipper/mock"
)

func newCourierFactory(t *testing.T, rows staticSource, reg *shipper.Registry, opts provider.Options) *provider.CourierFactory {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = nopLogger()
	}
	f := provider.NewCourierFactory(rows, newCipher(t), reg, idempotency.NewMemoryStore(time.Hour), opts)
	require.NoError(t, f.LoadProviders(context.Background()))
	return f
}

func rateReq() *shipper.RateRequest {
	return &shipper.RateRequest{
		Origin:      integration.Address{City: "London", PostalCode: "EC1A 1BB", CountryCode: "GB"},
		Destination: integration.Address{City: "Leeds", PostalCode: "LS1 4AP", CountryCode: "GB"},
		Packages:    []shipper.Package{{Weight: 2}},
	}
}

func shipmentReq(orderID string) *shipper.ShipmentRequest {
	return &shipper.ShipmentRequest{
		OrderID:     orderID,
		ServiceCode: "STANDARD",
		Sender:      integration.Address{Name: "Shop", Phone: "+44 20 7946 0000", CountryCode: "GB"},
		Recipient:   integration.Address{Name: "Ann", Phone: "+44 113 496 0000", CountryCode: "GB"},
		Packages:    []shipper.Package{{Weight: 1}},
	}
}

func TestCourierFactory_InactiveProviderIsCachedButHidden(t *testing.T) {
	c := newCipher(t)
	rows := staticSource{
		row(t, c, store.CategoryShipping, "royalmail", true, 1),
		row(t, c, store.CategoryShipping, "fedex", false, 5),
	}
	f := newCourierFactory(t, rows, carriers(mock.New("royalmail"), mock.New("fedex")), provider.Options{})

	assert.True(t, f.Loaded("fedex"))
	p, ok := f.Provider("fedex")
	assert.False(t, ok)
	assert.Nil(t, p)

	p, ok = f.Provider("royalmail")
	require.True(t, ok)
	assert.Equal(t, "royalmail", p.Name())
}

func TestCourierFactory_ActiveProvidersOrder(t *testing.T) {
	c := newCipher(t)
	rows := staticSource{
		row(t, c, store.CategoryShipping, "dhl", true, 1),
		row(t, c, store.CategoryShipping, "royalmail", true, 5),
		row(t, c, store.CategoryShipping, "fedex", false, 9),
		row(t, c, store.CategoryShipping, "mock", true, 5),
		row(t, c, store.CategoryTax, "taxjar", true, 10),
	}
	f := newCourierFactory(t, rows, carriers(mock.New("dhl"), mock.New("royalmail"), mock.New("fedex"), mock.New("mock")), provider.Options{})

	var names []string
	for _, p := range f.ActiveProviders() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"royalmail", "mock", "dhl"}, names)

	def, ok := f.DefaultProvider()
	require.True(t, ok)
	assert.Equal(t, "royalmail", def.Name())
}

func TestCourierFactory_ActiveProvidersNeverIncludeInactive(t *testing.T) {
	c := newCipher(t)
	names := []string{"royalmail", "fedex", "dhl"}
	reg := carriers(mock.New("royalmail"), mock.New("fedex"), mock.New("dhl"))

	for mask := 0; mask < 8; mask++ {
		var rows staticSource
		want := map[string]bool{}
		for i, n := range names {
			active := mask&(1<<i) != 0
			rows = append(rows, row(t, c, store.CategoryShipping, n, active, i))
			want[n] = active
		}
		f := newCourierFactory(t, rows, reg, provider.Options{})
		for _, p := range f.ActiveProviders() {
			assert.True(t, want[p.Name()], "mask %d returned inactive %s", mask, p.Name())
		}
	}
}

func TestCourierFactory_LoadSkipsUnusableRows(t *testing.T) {
	c := newCipher(t)
	unconfigured := mock.New("dhl")
	unconfigured.Configured = false

	broken := row(t, c, store.CategoryShipping, "fedex", true, 1)
	broken.Credentials = "not-a-valid-blob"

	rows := staticSource{
		row(t, c, store.CategoryShipping, "royalmail", true, 1),
		broken,
		row(t, c, store.CategoryShipping, "dhl", true, 1),
		row(t, c, store.CategoryShipping, "canadapost", true, 1),
	}
	f := newCourierFactory(t, rows, carriers(mock.New("royalmail"), mock.New("fedex"), unconfigured), provider.Options{})

	assert.True(t, f.Loaded("royalmail"))
	assert.False(t, f.Loaded("fedex"))
	assert.False(t, f.Loaded("dhl"))
	assert.False(t, f.Loaded("canadapost"))
}

func TestCourierFactory_LoadReplacesCache(t *testing.T) {
	c := newCipher(t)
	reg := carriers(mock.New("royalmail"), mock.New("fedex"))
	rows := staticSource{row(t, c, store.CategoryShipping, "royalmail", true, 1)}

	f := provider.NewCourierFactory(&rows, c, reg, nil, provider.Options{})
	require.NoError(t, f.LoadProviders(context.Background()))
	assert.True(t, f.Loaded("royalmail"))

	rows = staticSource{row(t, c, store.CategoryShipping, "fedex", true, 1)}
	require.NoError(t, f.LoadProviders(context.Background()))
	assert.False(t, f.Loaded("royalmail"))
	assert.True(t, f.Loaded("fedex"))
}

func TestCourierFactory_AllRatesToleratesFailingCarrier(t *testing.T) {
	c := newCipher(t)
	rm := mock.New("royalmail")
	rm.Rates = []shipper.Rate{
		{ServiceCode: "TRACKED48", TotalPrice: shipper.NewMoney(8.95, "GBP"), TransitDays: 2},
		{ServiceCode: "SPECIAL", TotalPrice: shipper.NewMoney(7.25, "GBP"), TransitDays: 1},
	}
	fedex := mock.New("fedex")
	fedex.Err = integration.NewError("fedex", integration.KindUpstream, "connection reset").WithRetryable(true)

	rows := staticSource{
		row(t, c, store.CategoryShipping, "royalmail", true, 1),
		row(t, c, store.CategoryShipping, "fedex", true, 2),
	}
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	f := newCourierFactory(t, rows, carriers(rm, fedex), provider.Options{Metrics: metrics})

	rates, errs := f.AllRates(context.Background(), rateReq())
	require.Len(t, rates, 2)
	assert.Equal(t, "SPECIAL", rates[0].ServiceCode)
	assert.Equal(t, "TRACKED48", rates[1].ServiceCode)
	for _, r := range rates {
		assert.Equal(t, "royalmail", r.Provider)
	}

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], integration.ErrUpstream)
	assert.Contains(t, errs[0].Error(), "fedex")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProviderErrors.WithLabelValues("fedex", "upstream")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("get_rates", "royalmail", "success")))
}

func TestCourierFactory_AllRatesToleratesPanickingCarrier(t *testing.T) {
	c := newCipher(t)
	rows := staticSource{
		row(t, c, store.CategoryShipping, "royalmail", true, 1),
		row(t, c, store.CategoryShipping, "purolator", true, 2),
	}
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	f := newCourierFactory(t, rows, carriers(mock.New("royalmail"), panickingCarrier{mock.New("purolator")}), provider.Options{Metrics: metrics})

	var (
		rates []shipper.Rate
		errs  []error
	)
	require.NotPanics(t, func() {
		rates, errs = f.AllRates(context.Background(), rateReq())
	})
	require.NotEmpty(t, rates)
	for _, r := range rates {
		assert.Equal(t, "royalmail", r.Provider)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], integration.ErrUpstream)
	assert.Contains(t, errs[0].Error(), "nil rate table")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProviderErrors.WithLabelValues("purolator", "upstream")))
}

func TestCourierFactory_AllRatesMergesAndSorts(t *testing.T) {
	c := newCipher(t)
	rows := staticSource{
		row(t, c, store.CategoryShipping, "royalmail", true, 1),
		row(t, c, store.CategoryShipping, "dhl", true, 1),
		row(t, c, store.CategoryShipping, "fedex", true, 1),
	}
	f := newCourierFactory(t, rows, carriers(mock.New("royalmail"), mock.New("dhl"), mock.New("fedex")), provider.Options{})

	rates, errs := f.AllRates(context.Background(), rateReq())
	assert.Empty(t, errs)
	require.Len(t, rates, 6)
	for i := 1; i < len(rates); i++ {
		assert.True(t, rates[i-1].TotalPrice.Amount.LessThanOrEqual(rates[i].TotalPrice.Amount))
	}
	// equal prices are ordered by provider
	assert.Equal(t, []string{"dhl", "fedex", "royalmail"}, []string{rates[0].Provider, rates[1].Provider, rates[2].Provider})
}

func TestCourierFactory_AllRatesNoCarriers(t *testing.T) {
	f := newCourierFactory(t, nil, carriers(), provider.Options{})
	rates, errs := f.AllRates(context.Background(), rateReq())
	assert.Empty(t, rates)
	assert.Empty(t, errs)

	_, err := f.CheapestRate(context.Background(), rateReq())
	assert.ErrorIs(t, err, integration.ErrNotFound)
}

func TestCourierFactory_CheapestAndFastest(t *testing.T) {
	c := newCipher(t)
	rm := mock.New("royalmail")
	rm.Rates = []shipper.Rate{
		{ServiceCode: "ECONOMY", TotalPrice: shipper.NewMoney(4.10, "GBP"), TransitDays: 5},
		{ServiceCode: "UNKNOWN_ETA", TotalPrice: shipper.NewMoney(3.90, "GBP")},
	}
	dhl := mock.New("dhl")
	dhl.Rates = []shipper.Rate{
		{ServiceCode: "EXPRESS", TotalPrice: shipper.NewMoney(19.00, "GBP"), TransitDays: 1},
		{ServiceCode: "EXPRESS_SAVER", TotalPrice: shipper.NewMoney(15.00, "GBP"), TransitDays: 1},
	}
	rows := staticSource{
		row(t, c, store.CategoryShipping, "royalmail", true, 1),
		row(t, c, store.CategoryShipping, "dhl", true, 1),
	}
	f := newCourierFactory(t, rows, carriers(rm, dhl), provider.Options{})

	cheapest, err := f.CheapestRate(context.Background(), rateReq())
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN_ETA", cheapest.ServiceCode)

	fastest, err := f.FastestRate(context.Background(), rateReq())
	require.NoError(t, err)
	assert.Equal(t, "EXPRESS_SAVER", fastest.ServiceCode)
}

func TestCourierFactory_NamedRatesPropagateErrors(t *testing.T) {
	c := newCipher(t)
	fedex := mock.New("fedex")
	fedex.Err = integration.NewError("fedex", integration.KindAuthentication, "invalid client")
	rows := staticSource{
		row(t, c, store.CategoryShipping, "fedex", true, 1),
		row(t, c, store.CategoryShipping, "dhl", false, 1),
	}
	f := newCourierFactory(t, rows, carriers(fedex, mock.New("dhl")), provider.Options{})

	_, err := f.Rates(context.Background(), "fedex", rateReq())
	assert.ErrorIs(t, err, integration.ErrAuthentication)

	_, err = f.Rates(context.Background(), "dhl", rateReq())
	assert.ErrorIs(t, err, integration.ErrNotFound)
}

func TestCourierFactory_TrackShipmentFallsThroughUntilKnownStatus(t *testing.T) {
	c := newCipher(t)
	first := mock.New("royalmail")
	first.TrackingStatus = shipper.StatusUnknown
	second := mock.New("fedex")
	second.Err = integration.NewError("fedex", integration.KindNotFound, "tracking number not found")
	third := mock.New("dhl")
	third.TrackingStatus = shipper.StatusOutForDelivery

	rows := staticSource{
		row(t, c, store.CategoryShipping, "royalmail", true, 3),
		row(t, c, store.CategoryShipping, "fedex", true, 2),
		row(t, c, store.CategoryShipping, "dhl", true, 1),
	}
	f := newCourierFactory(t, rows, carriers(first, second, third), provider.Options{})

	resp, err := f.TrackShipment(context.Background(), "TRK1", "")
	require.NoError(t, err)
	assert.Equal(t, "dhl", resp.Provider)
	assert.Equal(t, shipper.StatusOutForDelivery, resp.Status)
	assert.EqualValues(t, 1, first.Calls())
	assert.EqualValues(t, 1, second.Calls())
}

func TestCourierFactory_TrackShipmentStopsAtFirstKnownStatus(t *testing.T) {
	c := newCipher(t)
	first := mock.New("royalmail")
	second := mock.New("fedex")
	rows := staticSource{
		row(t, c, store.CategoryShipping, "royalmail", true, 3),
		row(t, c, store.CategoryShipping, "fedex", true, 2),
	}
	f := newCourierFactory(t, rows, carriers(first, second), provider.Options{})

	resp, err := f.TrackShipment(context.Background(), "TRK2", "")
	require.NoError(t, err)
	assert.Equal(t, "royalmail", resp.Provider)
	assert.EqualValues(t, 0, second.Calls())
}

func TestCourierFactory_TrackShipmentAllFail(t *testing.T) {
	c := newCipher(t)
	rm := mock.New("royalmail")
	rm.Err = errors.New("royal mail timeout")
	fedex := mock.New("fedex")
	fedex.Err = errors.New("fedex 503")
	rows := staticSource{
		row(t, c, store.CategoryShipping, "royalmail", true, 1),
		row(t, c, store.CategoryShipping, "fedex", true, 1),
	}
	f := newCourierFactory(t, rows, carriers(rm, fedex), provider.Options{})

	_, err := f.TrackShipment(context.Background(), "TRK3", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "royal mail timeout")
	assert.Contains(t, err.Error(), "fedex 503")
}

func TestCourierFactory_TrackShipmentAllUnknown(t *testing.T) {
	c := newCipher(t)
	rm := mock.New("royalmail")
	rm.TrackingStatus = shipper.StatusUnknown
	rows := staticSource{row(t, c, store.CategoryShipping, "royalmail", true, 1)}
	f := newCourierFactory(t, rows, carriers(rm), provider.Options{})

	resp, err := f.TrackShipment(context.Background(), "TRK4", "")
	require.NoError(t, err)
	assert.Equal(t, shipper.StatusUnknown, resp.Status)
}

func TestCourierFactory_TrackShipmentNamed(t *testing.T) {
	c := newCipher(t)
	rm := mock.New("royalmail")
	rm.Err = integration.NewError("royalmail", integration.KindUpstream, "bad gateway")
	rows := staticSource{
		row(t, c, store.CategoryShipping, "royalmail", true, 1),
		row(t, c, store.CategoryShipping, "dhl", true, 1),
	}
	f := newCourierFactory(t, rows, carriers(rm, mock.New("dhl")), provider.Options{})

	_, err := f.TrackShipment(context.Background(), "TRK5", "royalmail")
	assert.ErrorIs(t, err, integration.ErrUpstream)
}

func TestCourierFactory_UnmappedTrackingStatusIsCounted(t *testing.T) {
	c := newCipher(t)
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	rows := staticSource{row(t, c, store.CategoryShipping, "dhl", true, 1)}
	f := newCourierFactory(t, rows, carriers(unmappedCarrier{mock.New("dhl")}), provider.Options{Metrics: metrics})

	resp, err := f.TrackShipment(context.Background(), "TRK6", "dhl")
	require.NoError(t, err)
	assert.True(t, resp.Unmapped)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UnmappedStatuses.WithLabelValues("dhl")))
}

func TestCourierFactory_CreateShipmentIsIdempotentPerOrder(t *testing.T) {
	c := newCipher(t)
	sink := &recordingSink{}
	auditLog := audit.NewLogger(sink, nopLogger())
	rows := staticSource{
		row(t, c, store.CategoryShipping, "royalmail", true, 1),
		row(t, c, store.CategoryShipping, "dhl", true, 1),
	}
	f := newCourierFactory(t, rows, carriers(mock.New("royalmail"), mock.New("dhl")), provider.Options{Audit: auditLog})
	ctx := context.Background()

	resp, err := f.CreateShipment(ctx, "royalmail", shipmentReq("order-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.TrackingNumber)

	_, err = f.CreateShipment(ctx, "royalmail", shipmentReq("order-1"))
	assert.ErrorIs(t, err, integration.ErrConflict)

	// another carrier is a different key
	_, err = f.CreateShipment(ctx, "dhl", shipmentReq("order-1"))
	require.NoError(t, err)

	auditLog.Close()
	assert.ElementsMatch(t, []string{"royalmail:create_shipment", "dhl:create_shipment"}, sink.actions())
}

func TestCourierFactory_FailedShipmentReleasesKey(t *testing.T) {
	c := newCipher(t)
	rm := mock.New("royalmail")
	rows := staticSource{row(t, c, store.CategoryShipping, "royalmail", true, 1)}
	f := newCourierFactory(t, rows, carriers(rm), provider.Options{})
	ctx := context.Background()

	req := shipmentReq("order-2")
	req.Recipient.Phone = ""
	_, err := f.CreateShipment(ctx, "royalmail", req)
	require.ErrorIs(t, err, integration.ErrValidation)
	assert.Contains(t, err.Error(), "recipient phone number is required")

	_, err = f.CreateShipment(ctx, "royalmail", shipmentReq("order-2"))
	require.NoError(t, err)
}

func TestCourierFactory_CallTimeout(t *testing.T) {
	c := newCipher(t)
	slow := mock.New("fedex")
	slow.Latency = time.Second
	rows := staticSource{row(t, c, store.CategoryShipping, "fedex", true, 1)}
	f := newCourierFactory(t, rows, carriers(slow), provider.Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := f.Rates(context.Background(), "fedex", rateReq())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestCourierFactory_CancelAndTestConnectionAreAudited(t *testing.T) {
	c := newCipher(t)
	broken := mock.New("dhl")
	broken.Err = errors.New("dns failure")
	sink := &recordingSink{}
	auditLog := audit.NewLogger(sink, nopLogger())
	rows := staticSource{
		row(t, c, store.CategoryShipping, "royalmail", true, 1),
		row(t, c, store.CategoryShipping, "dhl", true, 1),
	}
	f := newCourierFactory(t, rows, carriers(mock.New("royalmail"), broken), provider.Options{Audit: auditLog})
	ctx := context.Background()

	cancelled, err := f.CancelShipment(ctx, "royalmail", "shp-1")
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled)

	result, err := f.TestConnection(ctx, "dhl")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "dns failure")

	_, err = f.TestConnection(ctx, "fedex")
	assert.ErrorIs(t, err, integration.ErrNotFound)

	auditLog.Close()
	assert.ElementsMatch(t, []string{"royalmail:cancel_shipment", "dhl:test_connection"}, sink.actions())
}

func TestCourierFactory_OptionalCapabilities(t *testing.T) {
	c := newCipher(t)
	rows := staticSource{row(t, c, store.CategoryShipping, "royalmail", true, 1)}
	f := newCourierFactory(t, rows, carriers(mock.New("royalmail")), provider.Options{})
	ctx := context.Background()

	ready := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	pickup, err := f.SchedulePickup(ctx, "royalmail", &shipper.PickupRequest{ReadyTime: ready, CloseTime: ready.Add(8 * time.Hour), PackageCount: 2})
	require.NoError(t, err)
	assert.Equal(t, ready, pickup.PickupDate)

	services, err := f.AvailableServices(ctx, "royalmail")
	require.NoError(t, err)
	assert.Len(t, services, 2)

	valid, err := f.ValidateAddress(ctx, "royalmail", integration.Address{PostalCode: "LS1 4AP", CountryCode: "GB"})
	require.NoError(t, err)
	assert.True(t, valid.Valid)
}
