package service

import (
	"context"
	"errors"
	"testing"

	"eshop/internal/model"
	"eshop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubZoneRepo struct {
	zones []model.GeoZone
	err   error
}

func (s *stubZoneRepo) Create(ctx context.Context, zone *model.GeoZone) error { return nil }
func (s *stubZoneRepo) Update(ctx context.Context, zone *model.GeoZone) error { return nil }
func (s *stubZoneRepo) Delete(ctx context.Context, id uuid.UUID) error        { return nil }
func (s *stubZoneRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.GeoZone, error) {
	return nil, errors.New("not implemented")
}
func (s *stubZoneRepo) List(ctx context.Context, page, limit int) ([]model.GeoZone, int64, error) {
	return nil, 0, nil
}
func (s *stubZoneRepo) FindMatching(ctx context.Context, loc model.Location) ([]model.GeoZone, error) {
	if s.err != nil {
		return nil, s.err
	}
	var matched []model.GeoZone
	for _, z := range s.zones {
		if z.Matches(loc) {
			matched = append(matched, z)
		}
	}
	return matched, nil
}

type stubRuleRepo struct {
	rulesByClass map[uuid.UUID][]model.TaxRule
	calls        int
}

func (s *stubRuleRepo) Create(ctx context.Context, rule *model.TaxRule) error { return nil }
func (s *stubRuleRepo) Update(ctx context.Context, rule *model.TaxRule) error { return nil }
func (s *stubRuleRepo) Delete(ctx context.Context, id uuid.UUID) error        { return nil }
func (s *stubRuleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.TaxRule, error) {
	return nil, errors.New("not implemented")
}
func (s *stubRuleRepo) List(ctx context.Context, page, limit int) ([]model.TaxRule, int64, error) {
	return nil, 0, nil
}
func (s *stubRuleRepo) FindActiveByClassOrdered(ctx context.Context, taxClassID uuid.UUID) ([]model.TaxRule, error) {
	s.calls++
	return s.rulesByClass[taxClassID], nil
}

type stubOrderTaxRepo struct {
	inserted  []model.OrderTax
	insertErr error
	totals    []repository.RateTaxTotal
}

func (s *stubOrderTaxRepo) BatchInsert(ctx context.Context, taxes []model.OrderTax) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, taxes...)
	return nil
}
func (s *stubOrderTaxRepo) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]model.OrderTax, error) {
	var out []model.OrderTax
	for _, t := range s.inserted {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}
func (s *stubOrderTaxRepo) TotalsByRate(ctx context.Context) ([]repository.RateTaxTotal, error) {
	return s.totals, nil
}

func strPtr(s string) *string { return &s }

func percentRate(zoneID uuid.UUID, name string, rate string, compound bool) model.TaxRate {
	return model.TaxRate{
		ID:        uuid.New(),
		Name:      name,
		Rate:      decimal.RequireFromString(rate),
		Type:      model.TaxRatePercentage,
		GeoZoneID: zoneID,
		Compound:  compound,
		Active:    true,
	}
}

func fixedRate(zoneID uuid.UUID, name string, amount string) model.TaxRate {
	return model.TaxRate{
		ID:        uuid.New(),
		Name:      name,
		Rate:      decimal.RequireFromString(amount),
		Type:      model.TaxRateFixed,
		GeoZoneID: zoneID,
		Active:    true,
	}
}

func ruleFor(classID uuid.UUID, rate model.TaxRate, priority int) model.TaxRule {
	return model.TaxRule{
		ID:         uuid.New(),
		TaxClassID: classID,
		TaxRateID:  rate.ID,
		TaxRate:    rate,
		Priority:   priority,
		Active:     true,
	}
}

func TestCalculateTaxNilClassIsZero(t *testing.T) {
	svc := NewTaxService(&stubZoneRepo{}, &stubRuleRepo{}, &stubOrderTaxRepo{})

	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	tax, err := svc.CalculateTax(context.Background(), nil, []model.GeoZone{zone}, decimal.NewFromInt(100))
	require.NoError(t, err)
	require.True(t, tax.IsZero())
}

func TestCalculateTaxNoZonesIsZero(t *testing.T) {
	classID := uuid.New()
	svc := NewTaxService(&stubZoneRepo{}, &stubRuleRepo{}, &stubOrderTaxRepo{})

	tax, err := svc.CalculateTax(context.Background(), &classID, nil, decimal.NewFromInt(100))
	require.NoError(t, err)
	require.True(t, tax.IsZero())
}

func TestCalculateTaxNoRulesIsZero(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	svc := NewTaxService(&stubZoneRepo{}, &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{}}, &stubOrderTaxRepo{})

	tax, err := svc.CalculateTax(context.Background(), &classID, []model.GeoZone{zone}, decimal.NewFromInt(100))
	require.NoError(t, err)
	require.True(t, tax.IsZero())
}

func TestCalculateTaxSinglePercentage(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	rate := percentRate(zone.ID, "Sales Tax", "10", false)
	rules := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {ruleFor(classID, rate, 1)},
	}}
	svc := NewTaxService(&stubZoneRepo{}, rules, &stubOrderTaxRepo{})

	tax, err := svc.CalculateTax(context.Background(), &classID, []model.GeoZone{zone}, decimal.NewFromInt(100))
	require.NoError(t, err)
	require.Equal(t, "10.00", tax.StringFixed(2))
}

func TestCalculateTaxNonCompoundUsesOriginalBase(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	rules := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {
			ruleFor(classID, percentRate(zone.ID, "State Tax", "5", false), 1),
			ruleFor(classID, percentRate(zone.ID, "County Tax", "3", false), 2),
		},
	}}
	svc := NewTaxService(&stubZoneRepo{}, rules, &stubOrderTaxRepo{})

	// 5% and 3% both on 100, not on each other's output
	tax, err := svc.CalculateTax(context.Background(), &classID, []model.GeoZone{zone}, decimal.NewFromInt(100))
	require.NoError(t, err)
	require.Equal(t, "8.00", tax.StringFixed(2))
}

func TestCalculateTaxCompoundInflatesLaterBase(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "CA", Active: true}
	rules := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {
			ruleFor(classID, percentRate(zone.ID, "GST", "8", true), 1),
			ruleFor(classID, percentRate(zone.ID, "PST", "2", false), 2),
		},
	}}
	svc := NewTaxService(&stubZoneRepo{}, rules, &stubOrderTaxRepo{})

	// 8% compound on 100 = 8.00, then 2% on the inflated 108 = 2.16
	tax, err := svc.CalculateTax(context.Background(), &classID, []model.GeoZone{zone}, decimal.NewFromInt(100))
	require.NoError(t, err)
	require.Equal(t, "10.16", tax.StringFixed(2))
}

func TestCalculateTaxRoundsEachStep(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	rules := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {ruleFor(classID, percentRate(zone.ID, "Sales Tax", "7.5", false), 1)},
	}}
	svc := NewTaxService(&stubZoneRepo{}, rules, &stubOrderTaxRepo{})

	// 33.33 * 7.5% = 2.49975, rounded half-up at the step to 2.50
	tax, err := svc.CalculateTax(context.Background(), &classID, []model.GeoZone{zone}, decimal.RequireFromString("33.33"))
	require.NoError(t, err)
	require.Equal(t, "2.50", tax.StringFixed(2))
}

func TestCalculateTaxRoundedCompoundFeedsRunningBase(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	rules := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {
			ruleFor(classID, percentRate(zone.ID, "Surcharge", "7.5", true), 1),
			ruleFor(classID, percentRate(zone.ID, "Sales Tax", "10", false), 2),
		},
	}}
	svc := NewTaxService(&stubZoneRepo{}, rules, &stubOrderTaxRepo{})

	// first step rounds 2.49975 to 2.50; second rule sees 35.83, not 35.82975
	tax, err := svc.CalculateTax(context.Background(), &classID, []model.GeoZone{zone}, decimal.RequireFromString("33.33"))
	require.NoError(t, err)
	require.Equal(t, "6.08", tax.StringFixed(2))
}

func TestCalculateTaxSkipsInactiveAndForeignZoneRates(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	otherZone := uuid.New()

	inactive := percentRate(zone.ID, "Suspended", "50", false)
	inactive.Active = false
	elsewhere := percentRate(otherZone, "Elsewhere", "50", false)

	rules := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {
			ruleFor(classID, inactive, 1),
			ruleFor(classID, elsewhere, 2),
			ruleFor(classID, percentRate(zone.ID, "Sales Tax", "10", false), 3),
		},
	}}
	svc := NewTaxService(&stubZoneRepo{}, rules, &stubOrderTaxRepo{})

	tax, err := svc.CalculateTax(context.Background(), &classID, []model.GeoZone{zone}, decimal.NewFromInt(100))
	require.NoError(t, err)
	require.Equal(t, "10.00", tax.StringFixed(2))
}

func TestCalculateTaxFixedRate(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	rules := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {ruleFor(classID, fixedRate(zone.ID, "Eco Fee", "1.50"), 1)},
	}}
	svc := NewTaxService(&stubZoneRepo{}, rules, &stubOrderTaxRepo{})

	tax, err := svc.CalculateTax(context.Background(), &classID, []model.GeoZone{zone}, decimal.NewFromInt(5))
	require.NoError(t, err)
	require.Equal(t, "1.50", tax.StringFixed(2))
}

func TestQuoteTaxEndToEnd(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", State: strPtr("CA"), Active: true}
	rules := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {ruleFor(classID, percentRate(zone.ID, "CA Sales Tax", "8.5", false), 1)},
	}}
	svc := NewTaxService(&stubZoneRepo{zones: []model.GeoZone{zone}}, rules, &stubOrderTaxRepo{})

	loc := model.Location{Country: "US", State: "CA", City: "Los Angeles"}
	tax, err := svc.QuoteTax(context.Background(), classID, loc, decimal.NewFromInt(200))
	require.NoError(t, err)
	require.Equal(t, "17.00", tax.StringFixed(2))
}

func TestQuoteTaxUnmatchedLocationIsZero(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	svc := NewTaxService(&stubZoneRepo{zones: []model.GeoZone{zone}}, &stubRuleRepo{}, &stubOrderTaxRepo{})

	tax, err := svc.QuoteTax(context.Background(), classID, model.Location{Country: "DE"}, decimal.NewFromInt(200))
	require.NoError(t, err)
	require.True(t, tax.IsZero())
}

func testOrder(classA, classB *uuid.UUID) *model.Order {
	order := &model.Order{
		ID:        uuid.New(),
		OrderCode: "ORD-1001",
		Country:   "US",
		State:     "CA",
	}
	order.Items = []model.OrderItem{
		{
			ID:        uuid.New(),
			OrderID:   order.ID,
			Product:   model.Product{TaxClassID: classA},
			Quantity:  2,
			UnitPrice: decimal.NewFromInt(50),
		},
		{
			ID:        uuid.New(),
			OrderID:   order.ID,
			Product:   model.Product{TaxClassID: classB},
			Quantity:  1,
			UnitPrice: decimal.NewFromInt(30),
		},
	}
	return order
}

func TestRecordOrderTaxesOneRowPerItemAndRule(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	rules := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {
			ruleFor(classID, percentRate(zone.ID, "State Tax", "5", false), 1),
			ruleFor(classID, percentRate(zone.ID, "County Tax", "3", false), 2),
		},
	}}
	taxRepo := &stubOrderTaxRepo{}
	svc := NewTaxService(&stubZoneRepo{zones: []model.GeoZone{zone}}, rules, taxRepo)

	order := testOrder(&classID, &classID)
	records, err := svc.RecordOrderTaxes(context.Background(), order, order.Location())
	require.NoError(t, err)

	// 2 items x 2 rules
	require.Len(t, records, 4)
	require.Len(t, taxRepo.inserted, 4)

	// item 1: 100 base -> 5.00 + 3.00; item 2: 30 base -> 1.50 + 0.90
	require.Equal(t, "5.00", records[0].Amount.StringFixed(2))
	require.Equal(t, "3.00", records[1].Amount.StringFixed(2))
	require.Equal(t, "1.50", records[2].Amount.StringFixed(2))
	require.Equal(t, "0.90", records[3].Amount.StringFixed(2))
	require.Equal(t, "State Tax", records[0].Title)

	for _, rec := range records {
		require.Equal(t, order.ID, rec.OrderID)
	}
}

func TestRecordOrderTaxesSkipsUntaxedItems(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	rules := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {ruleFor(classID, percentRate(zone.ID, "State Tax", "5", false), 1)},
	}}
	taxRepo := &stubOrderTaxRepo{}
	svc := NewTaxService(&stubZoneRepo{zones: []model.GeoZone{zone}}, rules, taxRepo)

	order := testOrder(&classID, nil)
	records, err := svc.RecordOrderTaxes(context.Background(), order, order.Location())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "5.00", records[0].Amount.StringFixed(2))
}

func TestRecordOrderTaxesCachesRulesPerClass(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	rules := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {ruleFor(classID, percentRate(zone.ID, "State Tax", "5", false), 1)},
	}}
	svc := NewTaxService(&stubZoneRepo{zones: []model.GeoZone{zone}}, rules, &stubOrderTaxRepo{})

	order := testOrder(&classID, &classID)
	_, err := svc.RecordOrderTaxes(context.Background(), order, order.Location())
	require.NoError(t, err)
	require.Equal(t, 1, rules.calls)
}

func TestRecordOrderTaxesTwiceDuplicatesRows(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	rules := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {ruleFor(classID, percentRate(zone.ID, "State Tax", "5", false), 1)},
	}}
	taxRepo := &stubOrderTaxRepo{}
	svc := NewTaxService(&stubZoneRepo{zones: []model.GeoZone{zone}}, rules, taxRepo)

	order := testOrder(&classID, nil)
	_, err := svc.RecordOrderTaxes(context.Background(), order, order.Location())
	require.NoError(t, err)
	_, err = svc.RecordOrderTaxes(context.Background(), order, order.Location())
	require.NoError(t, err)

	require.Len(t, taxRepo.inserted, 2)
}

func TestRecordOrderTaxesInsertFailurePropagates(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	rules := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {ruleFor(classID, percentRate(zone.ID, "State Tax", "5", false), 1)},
	}}
	taxRepo := &stubOrderTaxRepo{insertErr: errors.New("connection reset")}
	svc := NewTaxService(&stubZoneRepo{zones: []model.GeoZone{zone}}, rules, taxRepo)

	order := testOrder(&classID, nil)
	_, err := svc.RecordOrderTaxes(context.Background(), order, order.Location())
	require.Error(t, err)
	require.Empty(t, taxRepo.inserted)
}

func TestOrderTotalTaxSumsRecordedRows(t *testing.T) {
	classID := uuid.New()
	zone := model.GeoZone{ID: uuid.New(), Country: "US", Active: true}
	rules := &stubRuleRepo{rulesByClass: map[uuid.UUID][]model.TaxRule{
		classID: {
			ruleFor(classID, percentRate(zone.ID, "State Tax", "5", false), 1),
			ruleFor(classID, percentRate(zone.ID, "County Tax", "3", false), 2),
		},
	}}
	taxRepo := &stubOrderTaxRepo{}
	svc := NewTaxService(&stubZoneRepo{zones: []model.GeoZone{zone}}, rules, taxRepo)

	order := testOrder(&classID, &classID)
	records, err := svc.RecordOrderTaxes(context.Background(), order, order.Location())
	require.NoError(t, err)

	expected := decimal.Zero
	for _, rec := range records {
		expected = expected.Add(rec.Amount)
	}

	total, err := svc.OrderTotalTax(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, total.Equal(expected), "total %s != sum of rows %s", total, expected)
	require.Equal(t, "10.40", total.StringFixed(2))
}

func TestOrderTotalTaxEmptyOrderIsZero(t *testing.T) {
	svc := NewTaxService(&stubZoneRepo{}, &stubRuleRepo{}, &stubOrderTaxRepo{})

	total, err := svc.OrderTotalTax(context.Background(), uuid.New())
	require.NoError(t, err)
	require.True(t, total.IsZero())
}
