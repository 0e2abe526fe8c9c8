package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"eshop/internal/model"
	"eshop/internal/repository"
	ws "eshop/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateTaxClassRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

type UpdateTaxClassRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

type TaxClassResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at"`
}

type CreateGeoZoneRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
	Country     string `json:"country" binding:"required,len=2"`
	State       string `json:"state"` // empty = wildcard
	City        string `json:"city"`  // empty = wildcard
}

type UpdateGeoZoneRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
	Country     string `json:"country" binding:"required,len=2"`
	State       string `json:"state"`
	City        string `json:"city"`
	Active      *bool  `json:"active"`
}

type GeoZoneResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Country     string  `json:"country"`
	State       *string `json:"state"`
	City        *string `json:"city"`
	Active      bool    `json:"active"`
	CreatedAt   string  `json:"created_at"`
}

type CreateTaxRateRequest struct {
	Name      string `json:"name" binding:"required,max=100"`
	Rate      string `json:"rate" binding:"required"` // decimal string, e.g. "8.5"
	Type      string `json:"type" binding:"required,oneof=PERCENTAGE FIXED"`
	GeoZoneID string `json:"geo_zone_id" binding:"required,uuid"`
	Compound  bool   `json:"compound"`
}

type UpdateTaxRateRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Rate     string `json:"rate" binding:"required"`
	Type     string `json:"type" binding:"required,oneof=PERCENTAGE FIXED"`
	Compound bool   `json:"compound"`
	Active   *bool  `json:"active"`
}

type TaxRateResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Rate      string `json:"rate"`
	Type      string `json:"type"`
	GeoZoneID string `json:"geo_zone_id"`
	ZoneName  string `json:"zone_name,omitempty"`
	Compound  bool   `json:"compound"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

type CreateTaxRuleRequest struct {
	TaxClassID string `json:"tax_class_id" binding:"required,uuid"`
	TaxRateID  string `json:"tax_rate_id" binding:"required,uuid"`
	Priority   int    `json:"priority"`
}

type UpdateTaxRuleRequest struct {
	Priority int   `json:"priority"`
	Active   *bool `json:"active"`
}

type TaxRuleResponse struct {
	ID         string `json:"id"`
	TaxClassID string `json:"tax_class_id"`
	ClassName  string `json:"class_name,omitempty"`
	TaxRateID  string `json:"tax_rate_id"`
	RateName   string `json:"rate_name,omitempty"`
	Priority   int    `json:"priority"`
	Active     bool   `json:"active"`
	CreatedAt  string `json:"created_at"`
}

// --- Interface ---

// TaxConfigService owns the administrative lifecycle of tax classes, geo
// zones, tax rates, and tax rules. Mutations write audit logs (best effort)
// and broadcast a config-change event to connected admin clients.
//
// No snapshot is taken between these edits and in-flight tax calculations: a
// calculation that overlaps an edit may see a mixed configuration view. Known
// gap, accepted.
type TaxConfigService interface {
	CreateTaxClass(ctx context.Context, userID string, req CreateTaxClassRequest) (TaxClassResponse, error)
	UpdateTaxClass(ctx context.Context, userID, id string, req UpdateTaxClassRequest) (TaxClassResponse, error)
	ListTaxClasses(ctx context.Context, page, limit int) ([]TaxClassResponse, int64, error)

	CreateGeoZone(ctx context.Context, userID string, req CreateGeoZoneRequest) (GeoZoneResponse, error)
	UpdateGeoZone(ctx context.Context, userID, id string, req UpdateGeoZoneRequest) (GeoZoneResponse, error)
	DeleteGeoZone(ctx context.Context, userID, id string) error
	ListGeoZones(ctx context.Context, page, limit int) ([]GeoZoneResponse, int64, error)

	CreateTaxRate(ctx context.Context, userID string, req CreateTaxRateRequest) (TaxRateResponse, error)
	UpdateTaxRate(ctx context.Context, userID, id string, req UpdateTaxRateRequest) (TaxRateResponse, error)
	ListTaxRates(ctx context.Context, page, limit int) ([]TaxRateResponse, int64, error)

	CreateTaxRule(ctx context.Context, userID string, req CreateTaxRuleRequest) (TaxRuleResponse, error)
	UpdateTaxRule(ctx context.Context, userID, id string, req UpdateTaxRuleRequest) (TaxRuleResponse, error)
	DeleteTaxRule(ctx context.Context, userID, id string) error
	ListTaxRules(ctx context.Context, page, limit int) ([]TaxRuleResponse, int64, error)
}

type taxConfigService struct {
	classRepo repository.TaxClassRepository
	zoneRepo  repository.GeoZoneRepository
	rateRepo  repository.TaxRateRepository
	ruleRepo  repository.TaxRuleRepository
	auditRepo repository.AuditRepository
	hub       *ws.Hub
}

func NewTaxConfigService(
	classRepo repository.TaxClassRepository,
	zoneRepo repository.GeoZoneRepository,
	rateRepo repository.TaxRateRepository,
	ruleRepo repository.TaxRuleRepository,
	auditRepo repository.AuditRepository,
	hub *ws.Hub,
) TaxConfigService {
	return &taxConfigService{
		classRepo: classRepo,
		zoneRepo:  zoneRepo,
		rateRepo:  rateRepo,
		ruleRepo:  ruleRepo,
		auditRepo: auditRepo,
		hub:       hub,
	}
}

// --- Tax classes ---

func (s *taxConfigService) CreateTaxClass(ctx context.Context, userID string, req CreateTaxClassRequest) (TaxClassResponse, error) {
	if _, err := s.classRepo.FindByName(ctx, req.Name); err == nil {
		return TaxClassResponse{}, errors.New("tax class name already exists")
	}

	class := model.TaxClass{
		Name:        req.Name,
		Description: req.Description,
		Active:      true,
	}
	if err := s.classRepo.Create(ctx, &class); err != nil {
		return TaxClassResponse{}, fmt.Errorf("failed to create tax class: %w", err)
	}

	s.recordChange(ctx, userID, model.ActionCreateTaxClass, class.ID.String(), class.Name, req)
	return toTaxClassResponse(class), nil
}

func (s *taxConfigService) UpdateTaxClass(ctx context.Context, userID, id string, req UpdateTaxClassRequest) (TaxClassResponse, error) {
	classID, err := uuid.Parse(id)
	if err != nil {
		return TaxClassResponse{}, fmt.Errorf("invalid tax class id: %w", err)
	}

	class, err := s.classRepo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TaxClassResponse{}, errors.New("tax class not found")
		}
		return TaxClassResponse{}, fmt.Errorf("failed to fetch tax class: %w", err)
	}

	class.Name = req.Name
	class.Description = req.Description
	if req.Active != nil {
		class.Active = *req.Active
	}

	if err := s.classRepo.Update(ctx, class); err != nil {
		return TaxClassResponse{}, fmt.Errorf("failed to update tax class: %w", err)
	}

	s.recordChange(ctx, userID, model.ActionUpdateTaxClass, class.ID.String(), class.Name, req)
	return toTaxClassResponse(*class), nil
}

func (s *taxConfigService) ListTaxClasses(ctx context.Context, page, limit int) ([]TaxClassResponse, int64, error) {
	classes, total, err := s.classRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tax classes: %w", err)
	}

	res := make([]TaxClassResponse, 0, len(classes))
	for _, c := range classes {
		res = append(res, toTaxClassResponse(c))
	}
	return res, total, nil
}

// --- Geo zones ---

func (s *taxConfigService) CreateGeoZone(ctx context.Context, userID string, req CreateGeoZoneRequest) (GeoZoneResponse, error) {
	zone := model.GeoZone{
		Name:        req.Name,
		Description: req.Description,
		Country:     req.Country,
		State:       optional(req.State),
		City:        optional(req.City),
		Active:      true,
	}
	if err := s.zoneRepo.Create(ctx, &zone); err != nil {
		return GeoZoneResponse{}, fmt.Errorf("failed to create geo zone: %w", err)
	}

	s.recordChange(ctx, userID, model.ActionCreateGeoZone, zone.ID.String(), zone.Name, req)
	return toGeoZoneResponse(zone), nil
}

func (s *taxConfigService) UpdateGeoZone(ctx context.Context, userID, id string, req UpdateGeoZoneRequest) (GeoZoneResponse, error) {
	zoneID, err := uuid.Parse(id)
	if err != nil {
		return GeoZoneResponse{}, fmt.Errorf("invalid geo zone id: %w", err)
	}

	zone, err := s.zoneRepo.FindByID(ctx, zoneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return GeoZoneResponse{}, errors.New("geo zone not found")
		}
		return GeoZoneResponse{}, fmt.Errorf("failed to fetch geo zone: %w", err)
	}

	zone.Name = req.Name
	zone.Description = req.Description
	zone.Country = req.Country
	zone.State = optional(req.State)
	zone.City = optional(req.City)
	if req.Active != nil {
		zone.Active = *req.Active
	}

	if err := s.zoneRepo.Update(ctx, zone); err != nil {
		return GeoZoneResponse{}, fmt.Errorf("failed to update geo zone: %w", err)
	}

	s.recordChange(ctx, userID, model.ActionUpdateGeoZone, zone.ID.String(), zone.Name, req)
	return toGeoZoneResponse(*zone), nil
}

func (s *taxConfigService) DeleteGeoZone(ctx context.Context, userID, id string) error {
	zoneID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid geo zone id: %w", err)
	}

	zone, err := s.zoneRepo.FindByID(ctx, zoneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("geo zone not found")
		}
		return fmt.Errorf("failed to fetch geo zone: %w", err)
	}

	// Refuse deletion while rates still reference the zone
	count, err := s.rateRepo.CountByGeoZone(ctx, zoneID)
	if err != nil {
		return fmt.Errorf("failed to check zone references: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("geo zone is referenced by %d tax rate(s)", count)
	}

	if err := s.zoneRepo.Delete(ctx, zoneID); err != nil {
		return fmt.Errorf("failed to delete geo zone: %w", err)
	}

	s.recordChange(ctx, userID, model.ActionDeleteGeoZone, id, zone.Name, map[string]string{"deleted_id": id})
	return nil
}

func (s *taxConfigService) ListGeoZones(ctx context.Context, page, limit int) ([]GeoZoneResponse, int64, error) {
	zones, total, err := s.zoneRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list geo zones: %w", err)
	}

	res := make([]GeoZoneResponse, 0, len(zones))
	for _, z := range zones {
		res = append(res, toGeoZoneResponse(z))
	}
	return res, total, nil
}

// --- Tax rates ---

func (s *taxConfigService) CreateTaxRate(ctx context.Context, userID string, req CreateTaxRateRequest) (TaxRateResponse, error) {
	rate, err := parseRateValue(req.Rate)
	if err != nil {
		return TaxRateResponse{}, err
	}

	zoneID, err := uuid.Parse(req.GeoZoneID)
	if err != nil {
		return TaxRateResponse{}, fmt.Errorf("invalid geo zone id: %w", err)
	}
	zone, err := s.zoneRepo.FindByID(ctx, zoneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TaxRateResponse{}, errors.New("geo zone not found")
		}
		return TaxRateResponse{}, fmt.Errorf("failed to fetch geo zone: %w", err)
	}

	taxRate := model.TaxRate{
		Name:      req.Name,
		Rate:      rate,
		Type:      req.Type,
		GeoZoneID: zone.ID,
		Compound:  req.Compound,
		Active:    true,
	}
	if err := s.rateRepo.Create(ctx, &taxRate); err != nil {
		return TaxRateResponse{}, fmt.Errorf("failed to create tax rate: %w", err)
	}
	taxRate.GeoZone = *zone

	s.recordChange(ctx, userID, model.ActionCreateTaxRate, taxRate.ID.String(), taxRate.Name, req)
	return toTaxRateResponse(taxRate), nil
}

func (s *taxConfigService) UpdateTaxRate(ctx context.Context, userID, id string, req UpdateTaxRateRequest) (TaxRateResponse, error) {
	rateID, err := uuid.Parse(id)
	if err != nil {
		return TaxRateResponse{}, fmt.Errorf("invalid tax rate id: %w", err)
	}

	taxRate, err := s.rateRepo.FindByID(ctx, rateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TaxRateResponse{}, errors.New("tax rate not found")
		}
		return TaxRateResponse{}, fmt.Errorf("failed to fetch tax rate: %w", err)
	}

	rate, err := parseRateValue(req.Rate)
	if err != nil {
		return TaxRateResponse{}, err
	}

	taxRate.Name = req.Name
	taxRate.Rate = rate
	taxRate.Type = req.Type
	taxRate.Compound = req.Compound
	if req.Active != nil {
		taxRate.Active = *req.Active
	}

	if err := s.rateRepo.Update(ctx, taxRate); err != nil {
		return TaxRateResponse{}, fmt.Errorf("failed to update tax rate: %w", err)
	}

	s.recordChange(ctx, userID, model.ActionUpdateTaxRate, taxRate.ID.String(), taxRate.Name, req)
	return toTaxRateResponse(*taxRate), nil
}

func (s *taxConfigService) ListTaxRates(ctx context.Context, page, limit int) ([]TaxRateResponse, int64, error) {
	rates, total, err := s.rateRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tax rates: %w", err)
	}

	res := make([]TaxRateResponse, 0, len(rates))
	for _, r := range rates {
		res = append(res, toTaxRateResponse(r))
	}
	return res, total, nil
}

// --- Tax rules ---

func (s *taxConfigService) CreateTaxRule(ctx context.Context, userID string, req CreateTaxRuleRequest) (TaxRuleResponse, error) {
	classID, err := uuid.Parse(req.TaxClassID)
	if err != nil {
		return TaxRuleResponse{}, fmt.Errorf("invalid tax class id: %w", err)
	}
	rateID, err := uuid.Parse(req.TaxRateID)
	if err != nil {
		return TaxRuleResponse{}, fmt.Errorf("invalid tax rate id: %w", err)
	}

	class, err := s.classRepo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TaxRuleResponse{}, errors.New("tax class not found")
		}
		return TaxRuleResponse{}, fmt.Errorf("failed to fetch tax class: %w", err)
	}
	rate, err := s.rateRepo.FindByID(ctx, rateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TaxRuleResponse{}, errors.New("tax rate not found")
		}
		return TaxRuleResponse{}, fmt.Errorf("failed to fetch tax rate: %w", err)
	}

	rule := model.TaxRule{
		TaxClassID: class.ID,
		TaxRateID:  rate.ID,
		Priority:   req.Priority,
		Active:     true,
	}
	if err := s.ruleRepo.Create(ctx, &rule); err != nil {
		return TaxRuleResponse{}, fmt.Errorf("failed to create tax rule: %w", err)
	}
	rule.TaxClass = *class
	rule.TaxRate = *rate

	s.recordChange(ctx, userID, model.ActionCreateTaxRule, rule.ID.String(), class.Name+" / "+rate.Name, req)
	return toTaxRuleResponse(rule), nil
}

func (s *taxConfigService) UpdateTaxRule(ctx context.Context, userID, id string, req UpdateTaxRuleRequest) (TaxRuleResponse, error) {
	ruleID, err := uuid.Parse(id)
	if err != nil {
		return TaxRuleResponse{}, fmt.Errorf("invalid tax rule id: %w", err)
	}

	rule, err := s.ruleRepo.FindByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TaxRuleResponse{}, errors.New("tax rule not found")
		}
		return TaxRuleResponse{}, fmt.Errorf("failed to fetch tax rule: %w", err)
	}

	rule.Priority = req.Priority
	if req.Active != nil {
		rule.Active = *req.Active
	}

	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		return TaxRuleResponse{}, fmt.Errorf("failed to update tax rule: %w", err)
	}

	s.recordChange(ctx, userID, model.ActionUpdateTaxRule, rule.ID.String(), rule.TaxClass.Name+" / "+rule.TaxRate.Name, req)
	return toTaxRuleResponse(*rule), nil
}

func (s *taxConfigService) DeleteTaxRule(ctx context.Context, userID, id string) error {
	ruleID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid tax rule id: %w", err)
	}

	rule, err := s.ruleRepo.FindByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("tax rule not found")
		}
		return fmt.Errorf("failed to fetch tax rule: %w", err)
	}

	if err := s.ruleRepo.Delete(ctx, ruleID); err != nil {
		return fmt.Errorf("failed to delete tax rule: %w", err)
	}

	s.recordChange(ctx, userID, model.ActionDeleteTaxRule, id, rule.TaxClass.Name+" / "+rule.TaxRate.Name, map[string]string{"deleted_id": id})
	return nil
}

func (s *taxConfigService) ListTaxRules(ctx context.Context, page, limit int) ([]TaxRuleResponse, int64, error) {
	rules, total, err := s.ruleRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tax rules: %w", err)
	}

	res := make([]TaxRuleResponse, 0, len(rules))
	for _, r := range rules {
		res = append(res, toTaxRuleResponse(r))
	}
	return res, total, nil
}

// --- Helpers ---

func parseRateValue(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid rate value: %w", err)
	}
	if rate.IsNegative() {
		return decimal.Zero, errors.New("rate must not be negative")
	}
	return rate, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// recordChange writes a best-effort audit entry and broadcasts a
// config-change event to connected admin clients. Neither failure aborts the
// mutation that already happened.
func (s *taxConfigService) recordChange(ctx context.Context, userID, action, entityID, entityName string, details interface{}) {
	detailsJSON, _ := json.Marshal(details)

	entry := &model.AuditLog{
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(detailsJSON),
	}
	if parsed, err := uuid.Parse(userID); err == nil {
		entry.UserID = &parsed
	}
	_ = s.auditRepo.Log(ctx, entry)

	if s.hub != nil {
		s.hub.PublishConfigChange(action, entityID, entityName)
	}
}

func toTaxClassResponse(c model.TaxClass) TaxClassResponse {
	return TaxClassResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
		Active:      c.Active,
		CreatedAt:   c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toGeoZoneResponse(z model.GeoZone) GeoZoneResponse {
	return GeoZoneResponse{
		ID:          z.ID.String(),
		Name:        z.Name,
		Description: z.Description,
		Country:     z.Country,
		State:       z.State,
		City:        z.City,
		Active:      z.Active,
		CreatedAt:   z.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toTaxRateResponse(r model.TaxRate) TaxRateResponse {
	return TaxRateResponse{
		ID:        r.ID.String(),
		Name:      r.Name,
		Rate:      r.Rate.StringFixed(4),
		Type:      r.Type,
		GeoZoneID: r.GeoZoneID.String(),
		ZoneName:  r.GeoZone.Name,
		Compound:  r.Compound,
		Active:    r.Active,
		CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toTaxRuleResponse(r model.TaxRule) TaxRuleResponse {
	return TaxRuleResponse{
		ID:         r.ID.String(),
		TaxClassID: r.TaxClassID.String(),
		ClassName:  r.TaxClass.Name,
		TaxRateID:  r.TaxRateID.String(),
		RateName:   r.TaxRate.Name,
		Priority:   r.Priority,
		Active:     r.Active,
		CreatedAt:  r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
