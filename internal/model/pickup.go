package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Pickup statuses
const (
	PickupStatusRequested = "requested"
	PickupStatusConfirmed = "confirmed"
	PickupStatusCompleted = "completed"
	PickupStatusCancelled = "cancelled"
)

// Pickup is a carrier collection request for a time window at an address
type Pickup struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User       User            `gorm:"foreignKey:UserID" json:"-"`
	Carrier    string          `gorm:"type:varchar(100);not null" json:"carrier"`
	Address    string          `gorm:"type:text;not null" json:"address"`
	WindowFrom time.Time       `gorm:"not null" json:"window_from"`
	WindowTo   time.Time       `gorm:"not null" json:"window_to"`
	BaseFee    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_fee"`
	TotalFee   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_fee"`
	Currency   string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status     string          `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (p *Pickup) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
