package service

import (
	"context"
	"errors"
	"testing"

	"eshop/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type passthroughTx struct {
	rolledBack bool
}

func (t *passthroughTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := fn(ctx); err != nil {
		t.rolledBack = true
		return err
	}
	return nil
}

type stubOrderRepo struct {
	created   *model.Order
	items     []model.OrderItem
	taxAmount decimal.Decimal
}

func (s *stubOrderRepo) Create(ctx context.Context, order *model.Order) error {
	order.ID = uuid.New()
	s.created = order
	return nil
}

func (s *stubOrderRepo) CreateItem(ctx context.Context, item *model.OrderItem) error {
	item.ID = uuid.New()
	s.items = append(s.items, *item)
	return nil
}

func (s *stubOrderRepo) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	if s.created == nil || s.created.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.created, nil
}

func (s *stubOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return nil
}

func (s *stubOrderRepo) UpdateTaxAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	s.taxAmount = amount
	return nil
}

func (s *stubOrderRepo) List(ctx context.Context, page, limit int) ([]model.Order, int64, error) {
	return nil, 0, nil
}

type stubProductRepo struct {
	products map[uuid.UUID]*model.Product
}

func (s *stubProductRepo) Create(ctx context.Context, product *model.Product) error { return nil }
func (s *stubProductRepo) Update(ctx context.Context, product *model.Product) error { return nil }
func (s *stubProductRepo) Delete(ctx context.Context, id uuid.UUID) error           { return nil }
func (s *stubProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}
func (s *stubProductRepo) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *stubProductRepo) List(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error) {
	return nil, 0, nil
}

type stubAuditRepo struct {
	entries []model.AuditLog
}

func (s *stubAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubAuditRepo) List(ctx context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	return s.entries, int64(len(s.entries)), nil
}

func checkoutFixture() (*stubOrderRepo, *stubProductRepo, *stubAuditRepo, *stubOrderTaxRepo, *passthroughTx, OrderService, uuid.UUID) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	product := &model.Product{
		ID:         uuid.New(),
		SKU:        "SKU-1",
		Name:       "Widget",
		Price:      decimal.RequireFromString("50.00"),
		TaxClassID: &classID,
	}

	ruleRepo := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {ruleFor(classID, percentRate(zone.ID, "State Tax", "10", false), 1)},
	}}
	orderTaxRepo := &stubOrderTaxRepo{}
	taxSvc := NewTaxService(&stubZoneRepo{zones: []model.GeoZone{zone}}, ruleRepo, orderTaxRepo)

	orderRepo := &stubOrderRepo{}
	productRepo := &stubProductRepo{products: map[uuid.UUID]*model.Product{product.ID: product}}
	auditRepo := &stubAuditRepo{}
	tx := &passthroughTx{}

	svc := NewOrderService(orderRepo, productRepo, auditRepo, taxSvc, tx)
	return orderRepo, productRepo, auditRepo, orderTaxRepo, tx, svc, product.ID
}

func TestCreateOrderRecordsTaxes(t *testing.T) {
	orderRepo, _, auditRepo, orderTaxRepo, _, svc, productID := checkoutFixture()

	res, err := svc.CreateOrder(context.Background(), uuid.New().String(), CreateOrderRequest{
		OrderCode: "ORD-2001",
		Country:   "US",
		Items:     []OrderItemRequest{{ProductID: productID.String(), Quantity: 2}},
	})
	require.NoError(t, err)

	// 2 x 50.00 at 10% = 10.00
	require.Equal(t, "10.00", res.TaxAmount)
	require.Equal(t, "10.00", orderRepo.taxAmount.StringFixed(2))
	require.Len(t, orderTaxRepo.inserted, 1)
	require.Equal(t, "State Tax", orderTaxRepo.inserted[0].Title)

	require.Len(t, auditRepo.entries, 1)
	require.Equal(t, model.ActionCreateOrder, auditRepo.entries[0].Action)
	require.Equal(t, "ORD-2001", auditRepo.entries[0].EntityName)
}

func TestCreateOrderUnknownProductFails(t *testing.T) {
	_, _, _, orderTaxRepo, tx, svc, _ := checkoutFixture()

	_, err := svc.CreateOrder(context.Background(), "", CreateOrderRequest{
		OrderCode: "ORD-2002",
		Country:   "US",
		Items:     []OrderItemRequest{{ProductID: uuid.New().String(), Quantity: 1}},
	})
	require.Error(t, err)
	require.True(t, tx.rolledBack)
	require.Empty(t, orderTaxRepo.inserted)
}

func TestCreateOrderTaxWriteFailureAbortsCheckout(t *testing.T) {
	_, _, _, orderTaxRepo, tx, svc, productID := checkoutFixture()
	orderTaxRepo.insertErr = errors.New("connection reset")

	_, err := svc.CreateOrder(context.Background(), "", CreateOrderRequest{
		OrderCode: "ORD-2003",
		Country:   "US",
		Items:     []OrderItemRequest{{ProductID: productID.String(), Quantity: 1}},
	})
	require.Error(t, err)
	require.True(t, tx.rolledBack)
}

func TestGetOrderTaxesReturnsRowsAndTotal(t *testing.T) {
	orderRepo, _, _, orderTaxRepo, _, svc, productID := checkoutFixture()

	created, err := svc.CreateOrder(context.Background(), "", CreateOrderRequest{
		OrderCode: "ORD-2004",
		Country:   "US",
		Items:     []OrderItemRequest{{ProductID: productID.String(), Quantity: 2}},
	})
	require.NoError(t, err)

	// hydrate the stored order the way a Preload would
	orderRepo.created.Taxes = orderTaxRepo.inserted

	taxes, total, err := svc.GetOrderTaxes(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, taxes, 1)
	require.Equal(t, "10.00", total)
}
