package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/rules"
	"gorm.io/gorm"
)

// Category groups integrations by what they integrate.
type Category string

const (
	CategoryShipping  Category = "SHIPPING"
	CategoryTax       Category = "TAX"
	CategoryPayment   Category = "PAYMENT"
	CategoryAnalytics Category = "ANALYTICS"
	CategoryEmail     Category = "EMAIL"
	CategorySMS       Category = "SMS"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryShipping, CategoryTax, CategoryPayment, CategoryAnalytics, CategoryEmail, CategorySMS:
		return true
	}
	return false
}

// Connection test outcomes stored on IntegrationConfig.
const (
	TestStatusSuccess = "SUCCESS"
	TestStatusFailed  = "FAILED"
)

// IntegrationConfig is one configured vendor. Credentials and
// WebhookSecret hold encrypted blobs.
type IntegrationConfig struct {
	ID            string             `gorm:"type:varchar(36);primaryKey" json:"id"`
	Category      Category           `gorm:"type:varchar(32);not null;uniqueIndex:idx_integration_category_provider" json:"category"`
	Provider      string             `gorm:"type:varchar(64);not null;uniqueIndex:idx_integration_category_provider" json:"provider"`
	DisplayName   string             `gorm:"type:varchar(128)" json:"displayName"`
	IsActive      bool               `gorm:"not null" json:"isActive"`
	IsTestMode    bool               `gorm:"not null" json:"isTestMode"`
	Credentials   string             `gorm:"type:text" json:"-"`
	Settings      integration.Values `gorm:"type:text;serializer:json" json:"settings"`
	WebhookSecret string             `gorm:"type:text" json:"-"`
	Priority      int                `gorm:"not null;index" json:"priority"`
	TestStatus    string             `gorm:"type:varchar(16)" json:"testStatus,omitempty"`
	TestMessage   string             `gorm:"type:text" json:"testMessage,omitempty"`
	LastTestedAt  *time.Time         `json:"lastTestedAt,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// BeforeCreate assigns an id.
func (c *IntegrationConfig) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ShippingMethod is a persisted rules.Method. A nil SellerID makes it
// platform-wide.
type ShippingMethod struct {
	ID        string         `gorm:"type:varchar(36);primaryKey"`
	Name      string         `gorm:"type:varchar(128);not null"`
	Type      string         `gorm:"type:varchar(32);not null"`
	SellerID  *string        `gorm:"type:varchar(64);index"`
	IsActive  bool           `gorm:"not null"`
	Rules     []ShippingRule `gorm:"foreignKey:MethodID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate assigns an id.
func (m *ShippingMethod) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ShippingRule is a persisted rules.Rule.
type ShippingRule struct {
	ID                    string           `gorm:"type:varchar(36);primaryKey"`
	MethodID              string           `gorm:"type:varchar(36);not null;index"`
	Name                  string           `gorm:"type:varchar(128)"`
	Priority              int              `gorm:"not null"`
	Conditions            rules.Conditions `gorm:"type:text;serializer:json"`
	Rate                  decimal.Decimal  `gorm:"type:decimal(12,4);not null"`
	FreeShippingThreshold *decimal.Decimal `gorm:"type:decimal(12,4)"`
	EstimatedDays         int
	IsActive              bool `gorm:"not null"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// BeforeCreate assigns an id.
func (r *ShippingRule) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ToMethod converts the row into the engine's representation.
func (m ShippingMethod) ToMethod() rules.Method {
	out := rules.Method{
		ID:       m.ID,
		Name:     m.Name,
		Type:     rules.MethodType(m.Type),
		IsActive: m.IsActive,
	}
	if m.SellerID != nil {
		out.SellerID = *m.SellerID
	}
	for _, r := range m.Rules {
		out.Rules = append(out.Rules, rules.Rule{
			ID:                    r.ID,
			Name:                  r.Name,
			Priority:              r.Priority,
			Conditions:            r.Conditions,
			Rate:                  r.Rate,
			FreeShippingThreshold: r.FreeShippingThreshold,
			EstimatedDays:         r.EstimatedDays,
			IsActive:              r.IsActive,
		})
	}
	return out
}

// ShippingMethodFrom converts an engine method into rows.
func ShippingMethodFrom(m rules.Method) ShippingMethod {
	row := ShippingMethod{
		ID:       m.ID,
		Name:     m.Name,
		Type:     string(m.Type),
		IsActive: m.IsActive,
	}
	if m.SellerID != "" {
		seller := m.SellerID
		row.SellerID = &seller
	}
	for _, r := range m.Rules {
		row.Rules = append(row.Rules, ShippingRule{
			ID:                    r.ID,
			Name:                  r.Name,
			Priority:              r.Priority,
			Conditions:            r.Conditions,
			Rate:                  r.Rate,
			FreeShippingThreshold: r.FreeShippingThreshold,
			EstimatedDays:         r.EstimatedDays,
			IsActive:              r.IsActive,
		})
	}
	return row
}

// IntegrationLog is one append-only audit entry.
type IntegrationLog struct {
	ID            string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	IntegrationID *string        `gorm:"type:varchar(36);index" json:"integrationId,omitempty"`
	Category      string         `gorm:"type:varchar(32)" json:"category"`
	Provider      string         `gorm:"type:varchar(64);index" json:"provider"`
	Action        string         `gorm:"type:varchar(64);not null" json:"action"`
	Success       bool           `gorm:"not null" json:"success"`
	DurationMs    int64          `json:"durationMs"`
	Error         string         `gorm:"type:text" json:"error,omitempty"`
	Metadata      map[string]any `gorm:"type:text;serializer:json" json:"metadata,omitempty"`
	CreatedAt     time.Time      `gorm:"index" json:"createdAt"`
}

// BeforeCreate assigns an id.
func (l *IntegrationLog) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
