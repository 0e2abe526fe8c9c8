package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus constants
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusCancelled = "CANCELLED"
)

// Order represents a checkout order. The destination fields capture the
// customer location the taxes were computed against.
type Order struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderCode     string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"order_code"`
	Status        string          `gorm:"type:varchar(50);not null;default:'PENDING'" json:"status"`
	CustomerEmail string          `gorm:"type:varchar(255)" json:"customer_email"`
	Country       string          `gorm:"type:varchar(2);not null" json:"country"`
	State         string          `gorm:"type:varchar(100)" json:"state"`
	City          string          `gorm:"type:varchar(100)" json:"city"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"tax_amount"`
	Note          string          `gorm:"type:text" json:"note"`
	Items         []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	Taxes         []OrderTax      `gorm:"foreignKey:OrderID" json:"taxes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Location returns the order's destination as a tax location tuple.
func (o *Order) Location() Location {
	return Location{Country: o.Country, State: o.State, City: o.City}
}

// OrderItem represents a line item within an Order. UnitPrice is captured at
// checkout time and does not follow later product price changes.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   Product         `gorm:"foreignKey:ProductID" json:"-"`
	Quantity  int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
}

// Subtotal is the taxable amount of the line: unit price times quantity.
func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
