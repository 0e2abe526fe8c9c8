package repository

import (
	"context"

	"eshop/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RateTaxTotal is one row of the collected-tax report: everything recorded
// under a single tax rate across all orders.
type RateTaxTotal struct {
	TaxRateID uuid.UUID       `json:"tax_rate_id"`
	Title     string          `json:"title"`
	Total     decimal.Decimal `json:"total"`
}

type OrderTaxRepository interface {
	BatchInsert(ctx context.Context, taxes []model.OrderTax) error
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]model.OrderTax, error)
	TotalsByRate(ctx context.Context) ([]RateTaxTotal, error)
}

type orderTaxRepository struct {
	db *gorm.DB
}

func NewOrderTaxRepository(db *gorm.DB) OrderTaxRepository {
	return &orderTaxRepository{db: db}
}

// BatchInsert persists all rows in one statement. The write is all-or-nothing:
// on error no row is kept and the caller must abort or retry the enclosing
// checkout transaction.
func (r *orderTaxRepository) BatchInsert(ctx context.Context, taxes []model.OrderTax) error {
	if len(taxes) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&taxes).Error
}

func (r *orderTaxRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]model.OrderTax, error) {
	var taxes []model.OrderTax
	if err := GetDB(ctx, r.db).
		Where("order_id = ?", orderID).
		Order("created_at asc").
		Find(&taxes).Error; err != nil {
		return nil, err
	}
	return taxes, nil
}

func (r *orderTaxRepository) TotalsByRate(ctx context.Context) ([]RateTaxTotal, error) {
	var totals []RateTaxTotal
	if err := GetDB(ctx, r.db).
		Model(&model.OrderTax{}).
		Select("tax_rate_id, title, SUM(amount) AS total").
		Group("tax_rate_id, title").
		Order("total desc").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}
