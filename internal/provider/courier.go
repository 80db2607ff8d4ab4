package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tournevent/integrations/internal/idempotency"
	"github.com/tournevent/integrations/internal/store"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/shipper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CourierFactory routes carrier operations to the active carriers.
type CourierFactory struct {
	cache *cache[shipper.Carrier]
	idem  idempotency.Store
}

// NewCourierFactory creates a courier factory. idem may be nil, which
// disables duplicate-shipment protection.
func NewCourierFactory(source ConfigSource, cipher Decrypter, registry *shipper.Registry, idem idempotency.Store, opts Options) *CourierFactory {
	return &CourierFactory{
		cache: newCache(store.CategoryShipping, source, cipher, registry, opts.withDefaults()),
		idem:  idem,
	}
}

// LoadProviders rebuilds the carrier cache from the stored configs.
func (f *CourierFactory) LoadProviders(ctx context.Context) error {
	return f.cache.load(ctx)
}

// Provider returns the named carrier if its config is active.
func (f *CourierFactory) Provider(name string) (shipper.Carrier, bool) {
	e, ok := f.cache.get(name)
	if !ok {
		return nil, false
	}
	return e.adapter, true
}

// Loaded reports whether name is cached, active or not.
func (f *CourierFactory) Loaded(name string) bool {
	return f.cache.loaded(name)
}

// ActiveProviders returns the active carriers by descending priority.
func (f *CourierFactory) ActiveProviders() []shipper.Carrier {
	return f.cache.adapters()
}

// DefaultProvider returns the highest-priority active carrier.
func (f *CourierFactory) DefaultProvider() (shipper.Carrier, bool) {
	active := f.cache.adapters()
	if len(active) == 0 {
		return nil, false
	}
	return active[0], true
}

func (f *CourierFactory) carrier(name string) (*cached[shipper.Carrier], error) {
	e, ok := f.cache.get(name)
	if !ok {
		return nil, notActive(name)
	}
	return e, nil
}

// AllRates asks every active carrier concurrently and merges the rates,
// cheapest first. A failing or panicking carrier is logged and left out;
// its error is returned alongside the rates.
func (f *CourierFactory) AllRates(ctx context.Context, req *shipper.RateRequest) ([]shipper.Rate, []error) {
	active := f.cache.active()

	var (
		mu    sync.Mutex
		rates []shipper.Rate
		errs  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range active {
		g.Go(func() error {
			var got []shipper.Rate
			err := f.cache.call(gctx, "get_rates", e.config.Provider, func(ctx context.Context) (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = integration.NewError(e.config.Provider, integration.KindUpstream, fmt.Sprintf("rates panicked: %v", r))
					}
				}()
				got, err = e.adapter.GetRates(ctx, req)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				f.cache.opts.Logger.Ctx(ctx).Warn("carrier rates failed",
					zap.String("provider", e.config.Provider),
					zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", e.config.Provider, err))
				return nil
			}
			rates = append(rates, got...)
			return nil
		})
	}
	_ = g.Wait()

	sortRates(rates)
	return rates, errs
}

// CheapestRate returns the lowest priced rate across active carriers.
func (f *CourierFactory) CheapestRate(ctx context.Context, req *shipper.RateRequest) (*shipper.Rate, error) {
	rates, errs := f.AllRates(ctx, req)
	if len(rates) == 0 {
		return nil, noRates(errs)
	}
	return &rates[0], nil
}

// FastestRate returns the rate with the fewest transit days, cheapest
// first among equals. Rates without a transit estimate come last.
func (f *CourierFactory) FastestRate(ctx context.Context, req *shipper.RateRequest) (*shipper.Rate, error) {
	rates, errs := f.AllRates(ctx, req)
	if len(rates) == 0 {
		return nil, noRates(errs)
	}
	best := rates[0]
	for _, r := range rates[1:] {
		if faster(r, best) {
			best = r
		}
	}
	return &best, nil
}

// Rates asks one named carrier and propagates its error.
func (f *CourierFactory) Rates(ctx context.Context, provider string, req *shipper.RateRequest) ([]shipper.Rate, error) {
	e, err := f.carrier(provider)
	if err != nil {
		return nil, err
	}
	var rates []shipper.Rate
	err = f.cache.call(ctx, "get_rates", provider, func(ctx context.Context) error {
		var err error
		rates, err = e.adapter.GetRates(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortRates(rates)
	return rates, nil
}

// CreateShipment books a shipment with the named carrier. A non-empty
// OrderID is reserved per carrier; a second booking fails with a
// Conflict error until the first one fails.
func (f *CourierFactory) CreateShipment(ctx context.Context, provider string, req *shipper.ShipmentRequest) (*shipper.ShipmentResponse, error) {
	e, err := f.carrier(provider)
	if err != nil {
		return nil, err
	}

	key := ""
	if f.idem != nil && req.OrderID != "" {
		key = idempotency.Key(req.OrderID, provider)
		ok, err := f.idem.Reserve(ctx, key)
		if err != nil {
			return nil, integration.NewError(provider, integration.KindUpstream, "idempotency store unavailable").WithCause(err)
		}
		if !ok {
			return nil, integration.NewError(provider, integration.KindConflict,
				fmt.Sprintf("shipment for order %s is already being created", req.OrderID))
		}
	}

	var resp *shipper.ShipmentResponse
	err = f.cache.audited(ctx, e, "create_shipment", map[string]any{
		"orderId":     req.OrderID,
		"serviceCode": req.ServiceCode,
	}, func(ctx context.Context) error {
		var err error
		resp, err = e.adapter.CreateShipment(ctx, req)
		return err
	})
	if err != nil {
		if key != "" {
			if rerr := f.idem.Release(context.WithoutCancel(ctx), key); rerr != nil {
				f.cache.opts.Logger.Ctx(ctx).Warn("failed to release idempotency key",
					zap.String("key", key), zap.Error(rerr))
			}
		}
		return nil, err
	}
	return resp, nil
}

// CancelShipment voids a shipment with the named carrier.
func (f *CourierFactory) CancelShipment(ctx context.Context, provider, shipmentID string) (*shipper.CancelResponse, error) {
	e, err := f.carrier(provider)
	if err != nil {
		return nil, err
	}
	var resp *shipper.CancelResponse
	err = f.cache.audited(ctx, e, "cancel_shipment", map[string]any{"shipmentId": shipmentID}, func(ctx context.Context) error {
		var err error
		resp, err = e.adapter.CancelShipment(ctx, shipmentID)
		return err
	})
	return resp, err
}

// TrackShipment tracks with the named carrier, or, when provider is
// empty, tries the active carriers in priority order until one reports a
// known status.
func (f *CourierFactory) TrackShipment(ctx context.Context, trackingNumber, provider string) (*shipper.TrackingResponse, error) {
	if provider != "" {
		e, err := f.carrier(provider)
		if err != nil {
			return nil, err
		}
		return f.track(ctx, e, trackingNumber)
	}

	active := f.cache.active()
	if len(active) == 0 {
		return nil, integration.NewError("", integration.KindNotFound, "no active carriers")
	}

	var (
		errs    []error
		unknown *shipper.TrackingResponse
	)
	for _, e := range active {
		resp, err := f.track(ctx, e, trackingNumber)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.config.Provider, err))
			continue
		}
		if resp.Status != shipper.StatusUnknown {
			return resp, nil
		}
		if unknown == nil {
			unknown = resp
		}
	}
	if unknown != nil {
		return unknown, nil
	}
	return nil, fmt.Errorf("tracking %s failed with every carrier: %w", trackingNumber, errors.Join(errs...))
}

func (f *CourierFactory) track(ctx context.Context, e *cached[shipper.Carrier], trackingNumber string) (*shipper.TrackingResponse, error) {
	var resp *shipper.TrackingResponse
	err := f.cache.call(ctx, "track_shipment", e.config.Provider, func(ctx context.Context) error {
		var err error
		resp, err = e.adapter.TrackShipment(ctx, trackingNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	if resp.Unmapped {
		f.cache.opts.Metrics.RecordUnmapped(e.config.Provider)
		f.cache.opts.Logger.Ctx(ctx).Warn("unmapped tracking status",
			zap.String("provider", e.config.Provider),
			zap.String("vendor_status", resp.VendorStatus),
			zap.String("tracking_number", trackingNumber))
	}
	return resp, nil
}

// ValidateAddress checks addr with the named carrier.
func (f *CourierFactory) ValidateAddress(ctx context.Context, provider string, addr integration.Address) (*integration.AddressValidationResult, error) {
	e, err := f.carrier(provider)
	if err != nil {
		return nil, err
	}
	var result *integration.AddressValidationResult
	err = f.cache.call(ctx, "validate_address", provider, func(ctx context.Context) error {
		var err error
		result, err = e.adapter.ValidateAddress(ctx, addr)
		return err
	})
	return result, err
}

// SchedulePickup books a collection with the named carrier.
func (f *CourierFactory) SchedulePickup(ctx context.Context, provider string, req *shipper.PickupRequest) (*shipper.PickupResponse, error) {
	e, err := f.carrier(provider)
	if err != nil {
		return nil, err
	}
	scheduler, ok := e.adapter.(shipper.PickupScheduler)
	if !ok {
		return nil, integration.Validation(provider, "carrier does not support pickups")
	}
	var resp *shipper.PickupResponse
	err = f.cache.audited(ctx, e, "schedule_pickup", nil, func(ctx context.Context) error {
		var err error
		resp, err = scheduler.SchedulePickup(ctx, req)
		return err
	})
	return resp, err
}

// AvailableServices lists the named carrier's services.
func (f *CourierFactory) AvailableServices(ctx context.Context, provider string) ([]shipper.Service, error) {
	e, err := f.carrier(provider)
	if err != nil {
		return nil, err
	}
	lister, ok := e.adapter.(shipper.ServiceLister)
	if !ok {
		return nil, integration.Validation(provider, "carrier does not publish a service list")
	}
	var services []shipper.Service
	err = f.cache.call(ctx, "available_services", provider, func(ctx context.Context) error {
		var err error
		services, err = lister.AvailableServices(ctx)
		return err
	})
	return services, err
}

// TestConnection probes the named carrier. A failed probe is reported in
// the result, not as an error.
func (f *CourierFactory) TestConnection(ctx context.Context, provider string) (integration.ConnectionResult, error) {
	return f.cache.testConnection(ctx, provider)
}

func sortRates(rates []shipper.Rate) {
	sort.SliceStable(rates, func(i, j int) bool {
		a, b := rates[i], rates[j]
		if !a.TotalPrice.Amount.Equal(b.TotalPrice.Amount) {
			return a.TotalPrice.Amount.LessThan(b.TotalPrice.Amount)
		}
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		return a.ServiceCode < b.ServiceCode
	})
}

func faster(a, b shipper.Rate) bool {
	switch {
	case a.TransitDays <= 0:
		return false
	case b.TransitDays <= 0:
		return true
	case a.TransitDays != b.TransitDays:
		return a.TransitDays < b.TransitDays
	default:
		return a.TotalPrice.Amount.LessThan(b.TotalPrice.Amount)
	}
}

func noRates(errs []error) error {
	err := integration.NewError("", integration.KindNotFound, "no rates available")
	if len(errs) > 0 {
		err = err.WithCause(errors.Join(errs...))
	}
	return err
}
