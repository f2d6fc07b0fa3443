package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateRole        = "CREATE_ROLE"
	ActionUpdateRole        = "UPDATE_ROLE"
	ActionDeleteRole        = "DELETE_ROLE"
	ActionAssignPermissions = "ASSIGN_PERMISSIONS"
	ActionRemovePermissions = "REMOVE_PERMISSIONS"
	ActionCreatePermission  = "CREATE_PERMISSION"
	ActionUpdatePermission  = "UPDATE_PERMISSION"

	ActionCreateMarkupRule = "CREATE_MARKUP_RULE"
	ActionUpdateMarkupRule = "UPDATE_MARKUP_RULE"
	ActionDeleteMarkupRule = "DELETE_MARKUP_RULE"

	ActionCreateShipment = "CREATE_SHIPMENT"
	ActionUpdateShipment = "UPDATE_SHIPMENT"
	ActionCancelShipment = "CANCEL_SHIPMENT"
	ActionRequestPickup  = "REQUEST_PICKUP"
	ActionUpdatePickup   = "UPDATE_PICKUP"

	ActionCreatePayment      = "CREATE_PAYMENT"
	ActionCreateSubscription = "CREATE_SUBSCRIPTION"
	ActionCancelSubscription = "CANCEL_SUBSCRIPTION"

	ActionCreateUser = "CREATE_USER"
	ActionUpdateUser = "UPDATE_USER"
	ActionDeleteUser = "DELETE_USER"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:text" json:"details"`                       // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
