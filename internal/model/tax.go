package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxRateType enum constants
const (
	TaxRatePercentage = "PERCENTAGE"
	TaxRateFixed      = "FIXED"
)

var oneHundred = decimal.NewFromInt(100)

// TaxClass groups products that share the same applicable tax treatment
type TaxClass struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:varchar(500)" json:"description"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GeoZone is a jurisdiction pattern. A nil State or City matches any value
// at that level, so one location can fall into several zones at once
// (e.g. a country-wide zone plus a city-level surcharge zone).
type GeoZone struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Description string    `gorm:"type:varchar(500)" json:"description"`
	Country     string    `gorm:"type:varchar(2);not null;index" json:"country"` // ISO 3166-1 alpha-2
	State       *string   `gorm:"type:varchar(100);index" json:"state"`
	City        *string   `gorm:"type:varchar(100)" json:"city"`
	Active      bool      `gorm:"not null;default:true;index" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Location is the three-level customer location a tax calculation runs against.
// Country is required; State and City may be empty.
type Location struct {
	Country string
	State   string
	City    string
}

// Matches reports whether the zone covers the location. This is the only
// place the wildcard semantics live: nil State/City on the zone match
// anything, concrete values must match exactly.
func (z *GeoZone) Matches(loc Location) bool {
	if !z.Active || z.Country != loc.Country {
		return false
	}
	if z.State != nil && *z.State != loc.State {
		return false
	}
	if z.City != nil && *z.City != loc.City {
		return false
	}
	return true
}

// TaxRate is a percentage or fixed tax value scoped to exactly one geo zone.
// Rate holds a 0-100 proportion for PERCENTAGE and an absolute currency
// amount for FIXED.
type TaxRate struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string          `gorm:"type:varchar(100);not null" json:"name"`
	Rate      decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"rate"`
	Type      string          `gorm:"type:varchar(20);not null" json:"type"` // PERCENTAGE, FIXED
	GeoZoneID uuid.UUID       `gorm:"type:uuid;not null;index" json:"geo_zone_id"`
	GeoZone   GeoZone         `gorm:"foreignKey:GeoZoneID" json:"geo_zone,omitempty"`
	Compound  bool            `gorm:"not null;default:false" json:"compound"`
	Active    bool            `gorm:"not null;default:true;index" json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Contribution computes this rate's tax amount against the given base.
// Percentage contributions are rounded half-up to 2 decimal places at this
// step; fixed contributions are taken as configured. The PERCENTAGE/FIXED
// branch exists only here.
func (r *TaxRate) Contribution(base decimal.Decimal) decimal.Decimal {
	if r.Type == TaxRateFixed {
		return r.Rate
	}
	// DivRound ties away from zero, which equals half-up for the
	// non-negative amounts produced here.
	return base.Mul(r.Rate).DivRound(oneHundred, 2)
}

// TaxRule binds one tax rate to one tax class with an explicit evaluation
// priority. Active rules evaluate in ascending priority order.
type TaxRule struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TaxClassID uuid.UUID `gorm:"type:uuid;not null;index" json:"tax_class_id"`
	TaxClass   TaxClass  `gorm:"foreignKey:TaxClassID" json:"tax_class,omitempty"`
	TaxRateID  uuid.UUID `gorm:"type:uuid;not null;index" json:"tax_rate_id"`
	TaxRate    TaxRate   `gorm:"foreignKey:TaxRateID" json:"tax_rate,omitempty"`
	Priority   int       `gorm:"not null;default:0" json:"priority"`
	Active     bool      `gorm:"not null;default:true;index" json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OrderTax is an immutable audit record of one rule's contribution to one
// order line item. Rows are created once by the recorder and never mutated;
// they disappear only when the owning order is deleted.
type OrderTax struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	Order     *Order          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"-"`
	TaxRateID uuid.UUID       `gorm:"type:uuid;not null;index" json:"tax_rate_id"`
	TaxRate   *TaxRate        `gorm:"foreignKey:TaxRateID" json:"tax_rate,omitempty"`
	Title     string          `gorm:"type:varchar(100);not null" json:"title"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
