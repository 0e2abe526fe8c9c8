package repository

import (
	"context"

	"eshop/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaxRuleRepository interface {
	Create(ctx context.Context, rule *model.TaxRule) error
	Update(ctx context.Context, rule *model.TaxRule) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.TaxRule, error)
	List(ctx context.Context, page, limit int) ([]model.TaxRule, int64, error)
	FindActiveByClassOrdered(ctx context.Context, taxClassID uuid.UUID) ([]model.TaxRule, error)
}

type taxRuleRepository struct {
	db *gorm.DB
}

func NewTaxRuleRepository(db *gorm.DB) TaxRuleRepository {
	return &taxRuleRepository{db: db}
}

func (r *taxRuleRepository) Create(ctx context.Context, rule *model.TaxRule) error {
	return GetDB(ctx, r.db).Create(rule).Error
}

func (r *taxRuleRepository) Update(ctx context.Context, rule *model.TaxRule) error {
	return GetDB(ctx, r.db).Save(rule).Error
}

func (r *taxRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.TaxRule{}).Error
}

func (r *taxRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.TaxRule, error) {
	var rule model.TaxRule
	if err := GetDB(ctx, r.db).
		Preload("TaxClass").
		Preload("TaxRate").
		Preload("TaxRate.GeoZone").
		First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *taxRuleRepository) List(ctx context.Context, page, limit int) ([]model.TaxRule, int64, error) {
	var rules []model.TaxRule
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.TaxRule{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.
		Preload("TaxClass").
		Preload("TaxRate").
		Preload("TaxRate.GeoZone").
		Order("priority asc, created_at asc").
		Offset(offset).Limit(limit).
		Find(&rules).Error; err != nil {
		return nil, 0, err
	}

	return rules, total, nil
}

// FindActiveByClassOrdered returns the active rules for a tax class in
// evaluation order: ascending priority, creation time as the stable
// tie-breaker. Each rule carries its rate and the rate's zone.
func (r *taxRuleRepository) FindActiveByClassOrdered(ctx context.Context, taxClassID uuid.UUID) ([]model.TaxRule, error) {
	var rules []model.TaxRule
	if err := GetDB(ctx, r.db).
		Preload("TaxRate").
		Preload("TaxRate.GeoZone").
		Where("tax_class_id = ? AND active = ?", taxClassID, true).
		Order("priority asc, created_at asc").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}
