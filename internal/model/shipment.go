package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Shipment statuses. Transitions are forward-only; cancellation is allowed
// at any point before delivery.
const (
	ShipmentStatusCreated        = "created"
	ShipmentStatusLabelPurchased = "label_purchased"
	ShipmentStatusInTransit      = "in_transit"
	ShipmentStatusDelivered      = "delivered"
	ShipmentStatusCancelled      = "cancelled"
)

// Shipment is a tracked consignment with its quoted fee breakdown frozen at
// creation time (all amounts in the settlement currency).
type Shipment struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User               User            `gorm:"foreignKey:UserID" json:"-"`
	Carrier            string          `gorm:"type:varchar(100);not null;index" json:"carrier"`
	ServiceLevel       string          `gorm:"type:varchar(50)" json:"service_level"`
	OriginAddress      string          `gorm:"type:text;not null" json:"origin_address"`
	DestinationAddress string          `gorm:"type:text;not null" json:"destination_address"`
	TrackingCode       string          `gorm:"type:varchar(100);index" json:"tracking_code"`
	DeclaredValue      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"declared_value"`
	Currency           string          `gorm:"type:varchar(3);not null" json:"currency"` // settlement currency
	CarrierFee         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"carrier_fee"`
	InsuranceFee       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"insurance_fee"`
	PickupFee          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"pickup_fee"`
	TotalFee           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_fee"`
	Status             string          `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (s *Shipment) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TrackingEvent is one entry in a shipment's tracking history
type TrackingEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ShipmentID  uuid.UUID `gorm:"type:uuid;not null;index" json:"shipment_id"`
	Shipment    Shipment  `gorm:"foreignKey:ShipmentID;constraint:OnDelete:CASCADE;" json:"-"`
	Status      string    `gorm:"type:varchar(20);not null" json:"status"`
	Description string    `gorm:"type:text" json:"description"`
	Location    string    `gorm:"type:varchar(255)" json:"location,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (e *TrackingEvent) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
