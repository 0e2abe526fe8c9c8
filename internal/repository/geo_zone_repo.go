package repository

import (
	"context"

	"eshop/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GeoZoneRepository interface {
	Create(ctx context.Context, zone *model.GeoZone) error
	Update(ctx context.Context, zone *model.GeoZone) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.GeoZone, error)
	List(ctx context.Context, page, limit int) ([]model.GeoZone, int64, error)
	FindMatching(ctx context.Context, loc model.Location) ([]model.GeoZone, error)
}

type geoZoneRepository struct {
	db *gorm.DB
}

func NewGeoZoneRepository(db *gorm.DB) GeoZoneRepository {
	return &geoZoneRepository{db: db}
}

func (r *geoZoneRepository) Create(ctx context.Context, zone *model.GeoZone) error {
	return GetDB(ctx, r.db).Create(zone).Error
}

func (r *geoZoneRepository) Update(ctx context.Context, zone *model.GeoZone) error {
	return GetDB(ctx, r.db).Save(zone).Error
}

func (r *geoZoneRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.GeoZone{}).Error
}

func (r *geoZoneRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.GeoZone, error) {
	var zone model.GeoZone
	if err := GetDB(ctx, r.db).First(&zone, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &zone, nil
}

func (r *geoZoneRepository) List(ctx context.Context, page, limit int) ([]model.GeoZone, int64, error) {
	var zones []model.GeoZone
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.GeoZone{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("country asc, created_at desc").Offset(offset).Limit(limit).Find(&zones).Error; err != nil {
		return nil, 0, err
	}

	return zones, total, nil
}

// FindMatching returns every active zone covering the location. A NULL state
// or city column is a wildcard at that level. The result is a membership set:
// downstream code never relies on its order.
func (r *geoZoneRepository) FindMatching(ctx context.Context, loc model.Location) ([]model.GeoZone, error) {
	var zones []model.GeoZone
	if err := GetDB(ctx, r.db).
		Where("active = ? AND country = ?", true, loc.Country).
		Where("(state IS NULL OR state = ?)", loc.State).
		Where("(city IS NULL OR city = ?)", loc.City).
		Find(&zones).Error; err != nil {
		return nil, err
	}
	return zones, nil
}
