package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateProduct = "CREATE_PRODUCT"
	ActionUpdateProduct = "UPDATE_PRODUCT"
	ActionDeleteProduct = "DELETE_PRODUCT"
	ActionCreateOrder   = "CREATE_ORDER"

	// Tax configuration actions
	ActionCreateTaxClass = "CREATE_TAX_CLASS"
	ActionUpdateTaxClass = "UPDATE_TAX_CLASS"
	ActionCreateGeoZone  = "CREATE_GEO_ZONE"
	ActionUpdateGeoZone  = "UPDATE_GEO_ZONE"
	ActionDeleteGeoZone  = "DELETE_GEO_ZONE"
	ActionCreateTaxRate  = "CREATE_TAX_RATE"
	ActionUpdateTaxRate  = "UPDATE_TAX_RATE"
	ActionCreateTaxRule  = "CREATE_TAX_RULE"
	ActionUpdateTaxRule  = "UPDATE_TAX_RULE"
	ActionDeleteTaxRule  = "DELETE_TAX_RULE"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated bot
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
