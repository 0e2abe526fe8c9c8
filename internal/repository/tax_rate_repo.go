package repository

import (
	"context"

	"eshop/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaxRateRepository interface {
	Create(ctx context.Context, rate *model.TaxRate) error
	Update(ctx context.Context, rate *model.TaxRate) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.TaxRate, error)
	List(ctx context.Context, page, limit int) ([]model.TaxRate, int64, error)
	CountByGeoZone(ctx context.Context, geoZoneID uuid.UUID) (int64, error)
}

type taxRateRepository struct {
	db *gorm.DB
}

func NewTaxRateRepository(db *gorm.DB) TaxRateRepository {
	return &taxRateRepository{db: db}
}

func (r *taxRateRepository) Create(ctx context.Context, rate *model.TaxRate) error {
	return GetDB(ctx, r.db).Create(rate).Error
}

func (r *taxRateRepository) Update(ctx context.Context, rate *model.TaxRate) error {
	return GetDB(ctx, r.db).Save(rate).Error
}

func (r *taxRateRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.TaxRate, error) {
	var rate model.TaxRate
	if err := GetDB(ctx, r.db).Preload("GeoZone").First(&rate, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *taxRateRepository) List(ctx context.Context, page, limit int) ([]model.TaxRate, int64, error) {
	var rates []model.TaxRate
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.TaxRate{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("GeoZone").Order("name asc").Offset(offset).Limit(limit).Find(&rates).Error; err != nil {
		return nil, 0, err
	}

	return rates, total, nil
}

// CountByGeoZone reports how many rates reference the zone. Used as a
// referential guard before zone deletion.
func (r *taxRateRepository) CountByGeoZone(ctx context.Context, geoZoneID uuid.UUID) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.TaxRate{}).Where("geo_zone_id = ?", geoZoneID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
