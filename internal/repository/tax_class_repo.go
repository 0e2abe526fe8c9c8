package repository

import (
	"context"

	"eshop/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaxClassRepository interface {
	Create(ctx context.Context, class *model.TaxClass) error
	Update(ctx context.Context, class *model.TaxClass) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.TaxClass, error)
	FindByName(ctx context.Context, name string) (*model.TaxClass, error)
	List(ctx context.Context, page, limit int) ([]model.TaxClass, int64, error)
}

type taxClassRepository struct {
	db *gorm.DB
}

func NewTaxClassRepository(db *gorm.DB) TaxClassRepository {
	return &taxClassRepository{db: db}
}

func (r *taxClassRepository) Create(ctx context.Context, class *model.TaxClass) error {
	return GetDB(ctx, r.db).Create(class).Error
}

func (r *taxClassRepository) Update(ctx context.Context, class *model.TaxClass) error {
	return GetDB(ctx, r.db).Save(class).Error
}

func (r *taxClassRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.TaxClass, error) {
	var class model.TaxClass
	if err := GetDB(ctx, r.db).First(&class, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *taxClassRepository) FindByName(ctx context.Context, name string) (*model.TaxClass, error) {
	var class model.TaxClass
	if err := GetDB(ctx, r.db).Where("name = ?", name).First(&class).Error; err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *taxClassRepository) List(ctx context.Context, page, limit int) ([]model.TaxClass, int64, error) {
	var classes []model.TaxClass
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.TaxClass{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("name asc").Offset(offset).Limit(limit).Find(&classes).Error; err != nil {
		return nil, 0, err
	}

	return classes, total, nil
}
