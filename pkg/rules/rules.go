// Package rules resolves shipping costs from merchant-defined shipping
// methods and their priority-ordered rules.
package rules

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MethodType decides how a matched rule's rate becomes a cost.
type MethodType string

const (
	FlatRate      MethodType = "FLAT_RATE"
	WeightBased   MethodType = "WEIGHT_BASED"
	DistanceBased MethodType = "DISTANCE_BASED"
	FreeShipping  MethodType = "FREE_SHIPPING"
	PickupInStore MethodType = "PICKUP_IN_STORE"
	Hyperlocal    MethodType = "HYPERLOCAL"
)

// Valid reports whether t is a known method type.
func (t MethodType) Valid() bool {
	switch t {
	case FlatRate, WeightBased, DistanceBased, FreeShipping, PickupInStore, Hyperlocal:
		return true
	}
	return false
}

// Destination is where a cart ships to.
type Destination struct {
	Country    string `json:"country" validate:"required"`
	State      string `json:"state,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// Conditions restrict when a rule applies. Nil bounds and empty lists are
// unconstrained; bounds are inclusive; list matches ignore case.
type Conditions struct {
	MinWeight    *decimal.Decimal `json:"minWeight,omitempty"`
	MaxWeight    *decimal.Decimal `json:"maxWeight,omitempty"`
	MinCartValue *decimal.Decimal `json:"minCartValue,omitempty"`
	MaxCartValue *decimal.Decimal `json:"maxCartValue,omitempty"`
	Countries    []string         `json:"countries,omitempty"`
	States       []string         `json:"states,omitempty"`
	Cities       []string         `json:"cities,omitempty"`
	PostalCodes  []string         `json:"postalCodes,omitempty"`
}

// Matches reports whether every present condition holds.
func (c Conditions) Matches(weight, cartValue decimal.Decimal, dest Destination) bool {
	return inRange(weight, c.MinWeight, c.MaxWeight) &&
		inRange(cartValue, c.MinCartValue, c.MaxCartValue) &&
		inList(dest.Country, c.Countries) &&
		inList(dest.State, c.States) &&
		inList(dest.City, c.Cities) &&
		inList(dest.PostalCode, c.PostalCodes)
}

// Rule is one priced condition set of a method.
type Rule struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	Priority              int              `json:"priority"`
	Conditions            Conditions       `json:"conditions"`
	Rate                  decimal.Decimal  `json:"rate"`
	FreeShippingThreshold *decimal.Decimal `json:"freeShippingThreshold,omitempty"`
	EstimatedDays         int              `json:"estimatedDays,omitempty"`
	IsActive              bool             `json:"isActive"`
}

// Method is a shipping method offered at checkout. An empty SellerID
// makes it platform-wide.
type Method struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Type     MethodType `json:"type"`
	SellerID string     `json:"sellerId,omitempty"`
	IsActive bool       `json:"isActive"`
	Rules    []Rule     `json:"rules"`
}

// Option is one resolved checkout choice. Options are alternatives and
// are never summed.
type Option struct {
	MethodID      string          `json:"methodId"`
	MethodName    string          `json:"methodName"`
	MethodType    MethodType      `json:"methodType"`
	RuleID        string          `json:"ruleId"`
	RuleName      string          `json:"ruleName"`
	Rate          decimal.Decimal `json:"rate"`
	FreeShipping  bool            `json:"freeShipping"`
	EstimatedDays int             `json:"estimatedDays,omitempty"`
}

// Item is a cart line for weight derivation. A nil Weight counts as
// DefaultItemWeight.
type Item struct {
	Weight   *float64 `json:"weight,omitempty"`
	Quantity int      `json:"quantity"`
}

// DefaultItemWeight is the weight in kg assumed for items without one.
const DefaultItemWeight = 0.5

// TotalWeight sums item weights times quantity. Quantities below one
// count as one.
func TotalWeight(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		w := DefaultItemWeight
		if it.Weight != nil {
			w = *it.Weight
		}
		total = total.Add(decimal.NewFromFloat(w).Mul(decimal.NewFromInt(int64(max(it.Quantity, 1)))))
	}
	return total
}

func inRange(v decimal.Decimal, lo, hi *decimal.Decimal) bool {
	if lo != nil && v.LessThan(*lo) {
		return false
	}
	if hi != nil && v.GreaterThan(*hi) {
		return false
	}
	return true
}

func inList(v string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	v = strings.TrimSpace(v)
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), v) {
			return true
		}
	}
	return false
}
