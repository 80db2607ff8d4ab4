package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// MethodSource loads the shipping methods in scope: platform-wide methods
// when sellerID is empty, the seller's own methods otherwise.
type MethodSource interface {
	Methods(ctx context.Context, sellerID string) ([]Method, error)
}

// StaticSource serves a fixed method list, filtered by seller scope.
type StaticSource []Method

// Methods returns the methods belonging to sellerID's scope.
func (s StaticSource) Methods(_ context.Context, sellerID string) ([]Method, error) {
	var out []Method
	for _, m := range s {
		if m.SellerID == sellerID {
			out = append(out, m)
		}
	}
	return out, nil
}

// Engine resolves shipping options. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	source MethodSource
	logger *otelzap.Logger
}

// NewEngine creates a rule engine reading methods from source.
func NewEngine(source MethodSource, logger *otelzap.Logger) *Engine {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	return &Engine{source: source, logger: logger}
}

// CalculateShippingRate returns one option per active in-scope method
// with a matching rule, cheapest first.
func (e *Engine) CalculateShippingRate(ctx context.Context, weight, cartValue decimal.Decimal, dest Destination, sellerID string) ([]Option, error) {
	methods, err := e.source.Methods(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("loading shipping methods: %w", err)
	}

	options := Resolve(methods, weight, cartValue, dest, sellerID)

	e.logger.Ctx(ctx).Debug("Resolved shipping options",
		zap.String("seller_id", sellerID),
		zap.String("country", dest.Country),
		zap.String("weight", weight.String()),
		zap.Int("methods", len(methods)),
		zap.Int("options", len(options)),
	)
	return options, nil
}

// ShippingOptions derives the cart weight from items and resolves options.
func (e *Engine) ShippingOptions(ctx context.Context, items []Item, cartValue decimal.Decimal, dest Destination, sellerID string) ([]Option, error) {
	return e.CalculateShippingRate(ctx, TotalWeight(items), cartValue, dest, sellerID)
}

// Resolve is the pure resolution step. Methods outside the seller scope
// are ignored even if the source returned them.
func Resolve(methods []Method, weight, cartValue decimal.Decimal, dest Destination, sellerID string) []Option {
	var options []Option
	for _, m := range methods {
		if !m.IsActive || m.SellerID != sellerID {
			continue
		}
		rule, ok := selectRule(m.Rules, weight, cartValue, dest)
		if !ok {
			continue
		}
		rate, free := cost(m.Type, rule, weight, cartValue)
		options = append(options, Option{
			MethodID:      m.ID,
			MethodName:    m.Name,
			MethodType:    m.Type,
			RuleID:        rule.ID,
			RuleName:      rule.Name,
			Rate:          rate.Round(2),
			FreeShipping:  free,
			EstimatedDays: rule.EstimatedDays,
		})
	}

	sort.SliceStable(options, func(i, j int) bool {
		a, b := options[i], options[j]
		if c := a.Rate.Cmp(b.Rate); c != 0 {
			return c < 0
		}
		if a.MethodName != b.MethodName {
			return a.MethodName < b.MethodName
		}
		return a.MethodID < b.MethodID
	})
	return options
}

// selectRule returns the highest-priority active rule whose conditions
// all match. Equal priorities keep their stored order.
func selectRule(rules []Rule, weight, cartValue decimal.Decimal, dest Destination) (Rule, bool) {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	for _, r := range ordered {
		if r.IsActive && r.Conditions.Matches(weight, cartValue, dest) {
			return r, true
		}
	}
	return Rule{}, false
}

// cost prices a matched rule. DISTANCE_BASED and HYPERLOCAL have no
// distance model yet and charge the flat rate.
func cost(t MethodType, r Rule, weight, cartValue decimal.Decimal) (decimal.Decimal, bool) {
	if r.FreeShippingThreshold != nil && cartValue.GreaterThanOrEqual(*r.FreeShippingThreshold) {
		return decimal.Zero, true
	}
	switch t {
	case WeightBased:
		return r.Rate.Mul(weight), false
	case FreeShipping:
		return decimal.Zero, true
	case PickupInStore:
		return decimal.Zero, false
	default:
		return r.Rate, false
	}
}
