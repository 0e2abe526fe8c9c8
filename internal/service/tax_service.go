package service

import (
	"context"
	"fmt"
	"log"

	"eshop/internal/model"
	"eshop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxService is the checkout tax engine: it matches geo zones for a customer
// location, evaluates the active tax rules of a product's tax class in
// priority order with compound arithmetic, and records one immutable audit
// row per contributing rule and order line item.
//
// Missing configuration is never an error here: a product without a tax
// class, a location matching no zone, or a class with no rules all resolve
// to zero tax. Changing that would change observable checkout totals.
type TaxService interface {
	MatchGeoZones(ctx context.Context, loc model.Location) ([]model.GeoZone, error)
	CalculateTax(ctx context.Context, taxClassID *uuid.UUID, zones []model.GeoZone, base decimal.Decimal) (decimal.Decimal, error)
	QuoteTax(ctx context.Context, taxClassID uuid.UUID, loc model.Location, amount decimal.Decimal) (decimal.Decimal, error)
	RecordOrderTaxes(ctx context.Context, order *model.Order, loc model.Location) ([]model.OrderTax, error)
	OrderTotalTax(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)
	CollectedByRate(ctx context.Context) ([]repository.RateTaxTotal, error)
}

type taxService struct {
	zoneRepo     repository.GeoZoneRepository
	ruleRepo     repository.TaxRuleRepository
	orderTaxRepo repository.OrderTaxRepository
}

func NewTaxService(
	zoneRepo repository.GeoZoneRepository,
	ruleRepo repository.TaxRuleRepository,
	orderTaxRepo repository.OrderTaxRepository,
) TaxService {
	return &taxService{
		zoneRepo:     zoneRepo,
		ruleRepo:     ruleRepo,
		orderTaxRepo: orderTaxRepo,
	}
}

// MatchGeoZones resolves every active zone covering the location. An empty
// result is valid and downstream calculation degrades to zero tax.
func (s *taxService) MatchGeoZones(ctx context.Context, loc model.Location) ([]model.GeoZone, error) {
	zones, err := s.zoneRepo.FindMatching(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to match geo zones: %w", err)
	}
	return zones, nil
}

// ruleTax is one rule's already-rounded contribution to a calculation.
type ruleTax struct {
	rate   model.TaxRate
	amount decimal.Decimal
}

// applyRules runs the rules, already in ascending priority order, against the
// base amount. A rule contributes only if its rate is active and scoped to
// one of the matched zones. A compound contribution is added to the running
// base seen by every later rule; non-compound rules always compute against
// the original base. Each percentage contribution is rounded before it can
// inflate the running base, so a replay of the recorded contributions
// reproduces the total exactly.
func applyRules(rules []model.TaxRule, zones map[uuid.UUID]struct{}, base decimal.Decimal) (decimal.Decimal, []ruleTax) {
	runningBase := base
	total := decimal.Zero
	var parts []ruleTax

	for _, rule := range rules {
		rate := rule.TaxRate
		if !rate.Active {
			continue
		}
		if _, ok := zones[rate.GeoZoneID]; !ok {
			continue
		}

		contribution := rate.Contribution(runningBase)
		total = total.Add(contribution)
		parts = append(parts, ruleTax{rate: rate, amount: contribution})

		if rate.Compound {
			runningBase = runningBase.Add(contribution)
		}
	}

	return total, parts
}

func zoneSet(zones []model.GeoZone) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(zones))
	for _, z := range zones {
		set[z.ID] = struct{}{}
	}
	return set
}

// CalculateTax computes the total tax on a single taxable amount. A nil tax
// class means the product is untaxed. The final rounding only matters when a
// fixed-amount rate carries more precision than two decimal places;
// percentage contributions are already rounded per step.
func (s *taxService) CalculateTax(ctx context.Context, taxClassID *uuid.UUID, zones []model.GeoZone, base decimal.Decimal) (decimal.Decimal, error) {
	if taxClassID == nil {
		return decimal.Zero, nil
	}
	if len(zones) == 0 {
		return decimal.Zero, nil
	}

	rules, err := s.ruleRepo.FindActiveByClassOrdered(ctx, *taxClassID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch tax rules: %w", err)
	}
	if len(rules) == 0 {
		return decimal.Zero, nil
	}

	total, _ := applyRules(rules, zoneSet(zones), base)
	return total.Round(2), nil
}

// QuoteTax resolves the location's zones and computes the tax on the amount
// in one call. Used by the read-only quote endpoint.
func (s *taxService) QuoteTax(ctx context.Context, taxClassID uuid.UUID, loc model.Location, amount decimal.Decimal) (decimal.Decimal, error) {
	zones, err := s.MatchGeoZones(ctx, loc)
	if err != nil {
		return decimal.Zero, err
	}
	return s.CalculateTax(ctx, &taxClassID, zones, amount)
}

// RecordOrderTaxes computes per-line-item taxes for the order's destination
// and persists one OrderTax row per (item, rule) pair whose contribution is
// positive. Zones are resolved once per call and rule lists are cached per
// tax class; the location does not vary per item, so the output is identical
// to a per-item resolve. The batch write is all-or-nothing and its failure
// aborts the whole recording.
//
// Calling this twice for the same order without clearing prior rows produces
// duplicate rows. Idempotency is the caller's responsibility.
func (s *taxService) RecordOrderTaxes(ctx context.Context, order *model.Order, loc model.Location) ([]model.OrderTax, error) {
	zones, err := s.MatchGeoZones(ctx, loc)
	if err != nil {
		return nil, err
	}
	set := zoneSet(zones)

	rulesByClass := make(map[uuid.UUID][]model.TaxRule)
	var records []model.OrderTax

	for _, item := range order.Items {
		if item.Product.TaxClassID == nil {
			continue
		}
		classID := *item.Product.TaxClassID

		rules, ok := rulesByClass[classID]
		if !ok {
			rules, err = s.ruleRepo.FindActiveByClassOrdered(ctx, classID)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch tax rules: %w", err)
			}
			rulesByClass[classID] = rules
		}

		_, parts := applyRules(rules, set, item.Subtotal())
		for _, part := range parts {
			if !part.amount.IsPositive() {
				continue
			}
			records = append(records, model.OrderTax{
				OrderID:   order.ID,
				TaxRateID: part.rate.ID,
				Title:     part.rate.Name,
				Amount:    part.amount,
			})
		}
	}

	if err := s.orderTaxRepo.BatchInsert(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to persist order taxes: %w", err)
	}

	log.Printf("Recorded %d tax rows for order %s", len(records), order.OrderCode)
	return records, nil
}

// OrderTotalTax sums the persisted tax rows of an order. Pure read.
func (s *taxService) OrderTotalTax(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	taxes, err := s.orderTaxRepo.FindByOrder(ctx, orderID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch order taxes: %w", err)
	}

	total := decimal.Zero
	for _, t := range taxes {
		total = total.Add(t.Amount)
	}
	return total, nil
}

func (s *taxService) CollectedByRate(ctx context.Context) ([]repository.RateTaxTotal, error) {
	return s.orderTaxRepo.TotalsByRate(ctx)
}
