package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Fee categories a markup rule can apply to
const (
	FeeCategoryCarrier   = "carrier"
	FeeCategoryPickup    = "pickup"
	FeeCategoryInsurance = "insurance"
)

// Markup types
const (
	MarkupTypeFlat       = "flat"
	MarkupTypePercentage = "percentage"
)

// MarkupRule is administrator-mutable pricing configuration: one rule per
// (category, carrier) pair. ConversionRate converts the carrier's base
// currency into the settlement currency; MarkupValue is a currency amount
// for flat rules and percentage points for percentage rules.
type MarkupRule struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Category       string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_markup_category_carrier" json:"category"`
	Carrier        string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_markup_category_carrier" json:"carrier"`
	BaseCurrency   string          `gorm:"type:varchar(3);not null" json:"base_currency"`
	ConversionRate decimal.Decimal `gorm:"type:decimal(12,6);not null" json:"conversion_rate"`
	MarkupType     string          `gorm:"type:varchar(20);not null" json:"markup_type"` // flat, percentage
	MarkupValue    decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"markup_value"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (m *MarkupRule) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
