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

type OrderItemRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type CreateOrderRequest struct {
	OrderCode     string             `json:"order_code" binding:"required"`
	CustomerEmail string             `json:"customer_email" binding:"omitempty,email"`
	Country       string             `json:"country" binding:"required,len=2"`
	State         string             `json:"state"`
	City          string             `json:"city"`
	Note          string             `json:"note"`
	Items         []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type OrderItemResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type OrderTaxResponse struct {
	ID        string `json:"id"`
	TaxRateID string `json:"tax_rate_id"`
	Title     string `json:"title"`
	Amount    string `json:"amount"`
}

type OrderResponse struct {
	ID            string              `json:"id"`
	OrderCode     string              `json:"order_code"`
	Status        string              `json:"status"`
	CustomerEmail string              `json:"customer_email,omitempty"`
	Country       string              `json:"country"`
	State         string              `json:"state,omitempty"`
	City          string              `json:"city,omitempty"`
	TaxAmount     string              `json:"tax_amount"`
	Note          string              `json:"note,omitempty"`
	Items         []OrderItemResponse `json:"items"`
	Taxes         []OrderTaxResponse  `json:"taxes,omitempty"`
	CreatedAt     string              `json:"created_at"`
}

// --- Interface ---

// OrderService handles checkout: creating an order with its line items and
// recording per-item taxes against the destination, all inside one
// transaction so a tax persistence failure rolls the whole checkout back.
type OrderService interface {
	CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (OrderResponse, error)
	GetOrder(ctx context.Context, id string) (OrderResponse, error)
	GetOrderTaxes(ctx context.Context, id string) ([]OrderTaxResponse, string, error)
	ListOrders(ctx context.Context, page, limit int) ([]OrderResponse, int64, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	auditRepo   repository.AuditRepository
	taxService  TaxService
	txManager   repository.TransactionManager
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	auditRepo repository.AuditRepository,
	taxService TaxService,
	txManager repository.TransactionManager,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		auditRepo:   auditRepo,
		taxService:  taxService,
		txManager:   txManager,
	}
}

// --- Implementation ---

func (s *orderService) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (OrderResponse, error) {
	var order model.Order

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// 1. Resolve products; unit prices are captured at checkout time
		products := make([]*model.Product, 0, len(req.Items))
		for _, itemReq := range req.Items {
			pid, parseErr := uuid.Parse(itemReq.ProductID)
			if parseErr != nil {
				return fmt.Errorf("invalid product_id: %w", parseErr)
			}
			product, findErr := s.productRepo.FindByID(txCtx, pid)
			if findErr != nil {
				if errors.Is(findErr, gorm.ErrRecordNotFound) {
					return fmt.Errorf("product not found: %s", itemReq.ProductID)
				}
				return fmt.Errorf("failed to find product %s: %w", itemReq.ProductID, findErr)
			}
			products = append(products, product)
		}

		// 2. Create the order with its destination
		order = model.Order{
			OrderCode:     req.OrderCode,
			Status:        model.OrderStatusPending,
			CustomerEmail: req.CustomerEmail,
			Country:       req.Country,
			State:         req.State,
			City:          req.City,
			Note:          req.Note,
		}
		if err := s.orderRepo.Create(txCtx, &order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		// 3. Create line items
		for i, itemReq := range req.Items {
			item := model.OrderItem{
				OrderID:   order.ID,
				ProductID: products[i].ID,
				Quantity:  itemReq.Quantity,
				UnitPrice: products[i].Price,
				Product:   *products[i],
			}
			if err := s.orderRepo.CreateItem(txCtx, &item); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			order.Items = append(order.Items, item)
		}

		// 4. Record taxes for the destination; a batch-write failure aborts
		// the whole checkout transaction
		records, err := s.taxService.RecordOrderTaxes(txCtx, &order, order.Location())
		if err != nil {
			return err
		}
		order.Taxes = records

		total := decimal.Zero
		for _, r := range records {
			total = total.Add(r.Amount)
		}
		order.TaxAmount = total
		if err := s.orderRepo.UpdateTaxAmount(txCtx, order.ID, total); err != nil {
			return fmt.Errorf("failed to update order tax amount: %w", err)
		}

		// 5. Audit log
		var uid *uuid.UUID
		if parsed, err := uuid.Parse(userID); err == nil {
			uid = &parsed
		}
		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionCreateOrder,
			EntityID:   order.ID.String(),
			EntityName: order.OrderCode,
			Details:    string(details),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		return nil
	})

	if err != nil {
		return OrderResponse{}, err
	}

	return toOrderResponse(order), nil
}

func (s *orderService) GetOrder(ctx context.Context, id string) (OrderResponse, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("invalid order id: %w", err)
	}

	order, err := s.orderRepo.FindByIDWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OrderResponse{}, errors.New("order not found")
		}
		return OrderResponse{}, fmt.Errorf("failed to fetch order: %w", err)
	}

	return toOrderResponse(*order), nil
}

// GetOrderTaxes returns the persisted tax rows of an order plus their total
// as computed by the aggregator.
func (s *orderService) GetOrderTaxes(ctx context.Context, id string) ([]OrderTaxResponse, string, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, "", fmt.Errorf("invalid order id: %w", err)
	}

	order, err := s.orderRepo.FindByIDWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", errors.New("order not found")
		}
		return nil, "", fmt.Errorf("failed to fetch order: %w", err)
	}

	total, err := s.taxService.OrderTotalTax(ctx, orderID)
	if err != nil {
		return nil, "", err
	}

	taxes := make([]OrderTaxResponse, 0, len(order.Taxes))
	for _, t := range order.Taxes {
		taxes = append(taxes, toOrderTaxResponse(t))
	}
	return taxes, total.StringFixed(2), nil
}

func (s *orderService) ListOrders(ctx context.Context, page, limit int) ([]OrderResponse, int64, error) {
	orders, total, err := s.orderRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	res := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		res = append(res, toOrderResponse(o))
	}
	return res, total, nil
}

// --- Helpers ---

func toOrderResponse(o model.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemResponse{
			ID:        item.ID.String(),
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Subtotal:  item.Subtotal().StringFixed(2),
		})
	}

	var taxes []OrderTaxResponse
	for _, t := range o.Taxes {
		taxes = append(taxes, toOrderTaxResponse(t))
	}

	return OrderResponse{
		ID:            o.ID.String(),
		OrderCode:     o.OrderCode,
		Status:        o.Status,
		CustomerEmail: o.CustomerEmail,
		Country:       o.Country,
		State:         o.State,
		City:          o.City,
		TaxAmount:     o.TaxAmount.StringFixed(2),
		Note:          o.Note,
		Items:         items,
		Taxes:         taxes,
		CreatedAt:     o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toOrderTaxResponse(t model.OrderTax) OrderTaxResponse {
	return OrderTaxResponse{
		ID:        t.ID.String(),
		TaxRateID: t.TaxRateID.String(),
		Title:     t.Title,
		Amount:    t.Amount.StringFixed(2),
	}
}
