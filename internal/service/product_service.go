package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"eshop/internal/model"
	"eshop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateProductRequest struct {
	SKU        string `json:"sku" binding:"required,max=100"`
	Name       string `json:"name" binding:"required,max=255"`
	Price      string `json:"price" binding:"required"` // decimal string, e.g. "19.99"
	TaxClassID string `json:"tax_class_id" binding:"omitempty,uuid"`
}

type UpdateProductRequest struct {
	SKU        string `json:"sku" binding:"required,max=100"`
	Name       string `json:"name" binding:"required,max=255"`
	Price      string `json:"price" binding:"required"`
	TaxClassID string `json:"tax_class_id" binding:"omitempty,uuid"`
}

type ProductResponse struct {
	ID         string `json:"id"`
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	TaxClassID string `json:"tax_class_id,omitempty"`
	TaxClass   string `json:"tax_class,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// --- Interface ---

type ProductService interface {
	GetProducts(ctx context.Context, page, limit int, search string) ([]ProductResponse, int64, error)
	GetProduct(ctx context.Context, id string) (ProductResponse, error)
	CreateProduct(ctx context.Context, userID string, req CreateProductRequest) (ProductResponse, error)
	UpdateProduct(ctx context.Context, userID, id string, req UpdateProductRequest) (ProductResponse, error)
	DeleteProduct(ctx context.Context, userID, id string) error
}

type productService struct {
	productRepo repository.ProductRepository
	classRepo   repository.TaxClassRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewProductService(
	productRepo repository.ProductRepository,
	classRepo repository.TaxClassRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) ProductService {
	return &productService{
		productRepo: productRepo,
		classRepo:   classRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

// --- Implementation ---

func (s *productService) GetProducts(ctx context.Context, page, limit int, search string) ([]ProductResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	products, total, err := s.productRepo.List(ctx, page, limit, search)
	if err != nil {
		return nil, 0, err
	}

	res := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		res = append(res, toProductResponse(p))
	}
	return res, total, nil
}

func (s *productService) GetProduct(ctx context.Context, id string) (ProductResponse, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return ProductResponse{}, fmt.Errorf("invalid product id: %w", err)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProductResponse{}, errors.New("product not found")
		}
		return ProductResponse{}, fmt.Errorf("database error: %w", err)
	}
	return toProductResponse(*product), nil
}

func (s *productService) CreateProduct(ctx context.Context, userID string, req CreateProductRequest) (ProductResponse, error) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return ProductResponse{}, fmt.Errorf("invalid price value: %w", err)
	}
	if price.IsNegative() {
		return ProductResponse{}, errors.New("price must not be negative")
	}

	taxClassID, err := s.resolveTaxClass(ctx, req.TaxClassID)
	if err != nil {
		return ProductResponse{}, err
	}

	product := model.Product{
		SKU:        req.SKU,
		Name:       req.Name,
		Price:      price,
		TaxClassID: taxClassID,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Create(txCtx, &product); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		return s.logProductAudit(txCtx, userID, model.ActionCreateProduct, &product, req)
	})
	if err != nil {
		return ProductResponse{}, err
	}

	return toProductResponse(product), nil
}

func (s *productService) UpdateProduct(ctx context.Context, userID, id string, req UpdateProductRequest) (ProductResponse, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return ProductResponse{}, fmt.Errorf("invalid product id: %w", err)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProductResponse{}, errors.New("product not found")
		}
		return ProductResponse{}, fmt.Errorf("database error: %w", err)
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return ProductResponse{}, fmt.Errorf("invalid price value: %w", err)
	}
	if price.IsNegative() {
		return ProductResponse{}, errors.New("price must not be negative")
	}

	taxClassID, err := s.resolveTaxClass(ctx, req.TaxClassID)
	if err != nil {
		return ProductResponse{}, err
	}

	product.SKU = req.SKU
	product.Name = req.Name
	product.Price = price
	product.TaxClassID = taxClassID
	product.TaxClass = nil

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Update(txCtx, product); err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		return s.logProductAudit(txCtx, userID, model.ActionUpdateProduct, product, req)
	})
	if err != nil {
		return ProductResponse{}, err
	}

	return toProductResponse(*product), nil
}

func (s *productService) DeleteProduct(ctx context.Context, userID, id string) error {
	productID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid product id: %w", err)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("product not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Delete(txCtx, productID); err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}
		return s.logProductAudit(txCtx, userID, model.ActionDeleteProduct, product, map[string]string{"deleted_id": id})
	})
}

// --- Helpers ---

// resolveTaxClass validates the optional tax class reference. An empty id is
// valid: the product is untaxed.
func (s *productService) resolveTaxClass(ctx context.Context, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}

	classID, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid tax class id: %w", err)
	}
	if _, err := s.classRepo.FindByID(ctx, classID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("tax class not found")
		}
		return nil, fmt.Errorf("failed to fetch tax class: %w", err)
	}
	return &classID, nil
}

func (s *productService) logProductAudit(ctx context.Context, userID, action string, product *model.Product, details interface{}) error {
	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	detailsJSON, _ := json.Marshal(details)
	audit := &model.AuditLog{
		UserID:     uid,
		Action:     action,
		EntityID:   product.ID.String(),
		EntityName: product.Name,
		Details:    string(detailsJSON),
	}
	if err := s.auditRepo.Log(ctx, audit); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func toProductResponse(p model.Product) ProductResponse {
	res := ProductResponse{
		ID:        p.ID.String(),
		SKU:       p.SKU,
		Name:      p.Name,
		Price:     p.Price.StringFixed(2),
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if p.TaxClassID != nil {
		res.TaxClassID = p.TaxClassID.String()
	}
	if p.TaxClass != nil {
		res.TaxClass = p.TaxClass.Name
	}
	return res
}
