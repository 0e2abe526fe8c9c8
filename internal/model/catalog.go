package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a sellable item. TaxClassID is nullable: a product
// without a tax class is untaxed at checkout.
type Product struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SKU        string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name       string          `gorm:"type:varchar(255);not null" json:"name"`
	Price      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	TaxClassID *uuid.UUID      `gorm:"type:uuid;index" json:"tax_class_id"`
	TaxClass   *TaxClass       `gorm:"foreignKey:TaxClassID" json:"tax_class,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `gorm:"index" json:"-"`
}
