package handler

import (
	"net/http"

	"eshop/internal/middleware"
	"eshop/internal/model"
	"eshop/internal/service"
	"eshop/pkg/pagination"
	"eshop/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TaxHandler struct {
	taxService    service.TaxService
	configService service.TaxConfigService
}

func NewTaxHandler(taxService service.TaxService, configService service.TaxConfigService) *TaxHandler {
	return &TaxHandler{taxService: taxService, configService: configService}
}

func (h *TaxHandler) RegisterRoutes(router *gin.RouterGroup) {
	tax := router.Group("/api/tax")
	tax.Use(middleware.RequireRole("admin", "manager", "staff"))
	{
		tax.GET("/classes", h.ListTaxClasses)
		tax.POST("/classes", h.CreateTaxClass)
		tax.PUT("/classes/:id", h.UpdateTaxClass)

		tax.GET("/zones", h.ListGeoZones)
		tax.POST("/zones", h.CreateGeoZone)
		tax.PUT("/zones/:id", h.UpdateGeoZone)
		tax.DELETE("/zones/:id", h.DeleteGeoZone)

		tax.GET("/rates", h.ListTaxRates)
		tax.POST("/rates", h.CreateTaxRate)
		tax.PUT("/rates/:id", h.UpdateTaxRate)

		tax.GET("/rules", h.ListTaxRules)
		tax.POST("/rules", h.CreateTaxRule)
		tax.PUT("/rules/:id", h.UpdateTaxRule)
		tax.DELETE("/rules/:id", h.DeleteTaxRule)

		tax.GET("/quote", h.QuoteTax)
		tax.GET("/report", h.CollectedReport)
	}
}

// --- Tax classes ---

func (h *TaxHandler) ListTaxClasses(c *gin.Context) {
	params := pagination.Parse(c)
	classes, total, err := h.configService.ListTaxClasses(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.List(http.StatusOK, "classes", classes, total, params.Page, params.Limit))
}

func (h *TaxHandler) CreateTaxClass(c *gin.Context) {
	var req service.CreateTaxClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	class, err := h.configService.CreateTaxClass(c.Request.Context(), c.GetString("userID"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, class))
}

func (h *TaxHandler) UpdateTaxClass(c *gin.Context) {
	var req service.UpdateTaxClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	class, err := h.configService.UpdateTaxClass(c.Request.Context(), c.GetString("userID"), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, class))
}

// --- Geo zones ---

func (h *TaxHandler) ListGeoZones(c *gin.Context) {
	params := pagination.Parse(c)
	zones, total, err := h.configService.ListGeoZones(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.List(http.StatusOK, "zones", zones, total, params.Page, params.Limit))
}

func (h *TaxHandler) CreateGeoZone(c *gin.Context) {
	var req service.CreateGeoZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	zone, err := h.configService.CreateGeoZone(c.Request.Context(), c.GetString("userID"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, zone))
}

func (h *TaxHandler) UpdateGeoZone(c *gin.Context) {
	var req service.UpdateGeoZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	zone, err := h.configService.UpdateGeoZone(c.Request.Context(), c.GetString("userID"), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, zone))
}

func (h *TaxHandler) DeleteGeoZone(c *gin.Context) {
	if err := h.configService.DeleteGeoZone(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}

// --- Tax rates ---

func (h *TaxHandler) ListTaxRates(c *gin.Context) {
	params := pagination.Parse(c)
	rates, total, err := h.configService.ListTaxRates(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.List(http.StatusOK, "rates", rates, total, params.Page, params.Limit))
}

func (h *TaxHandler) CreateTaxRate(c *gin.Context) {
	var req service.CreateTaxRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rate, err := h.configService.CreateTaxRate(c.Request.Context(), c.GetString("userID"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rate))
}

func (h *TaxHandler) UpdateTaxRate(c *gin.Context) {
	var req service.UpdateTaxRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rate, err := h.configService.UpdateTaxRate(c.Request.Context(), c.GetString("userID"), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rate))
}

// --- Tax rules ---

func (h *TaxHandler) ListTaxRules(c *gin.Context) {
	params := pagination.Parse(c)
	rules, total, err := h.configService.ListTaxRules(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.List(http.StatusOK, "rules", rules, total, params.Page, params.Limit))
}

func (h *TaxHandler) CreateTaxRule(c *gin.Context) {
	var req service.CreateTaxRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rule, err := h.configService.CreateTaxRule(c.Request.Context(), c.GetString("userID"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rule))
}

func (h *TaxHandler) UpdateTaxRule(c *gin.Context) {
	var req service.UpdateTaxRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rule, err := h.configService.UpdateTaxRule(c.Request.Context(), c.GetString("userID"), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}

func (h *TaxHandler) DeleteTaxRule(c *gin.Context) {
	if err := h.configService.DeleteTaxRule(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}

// --- Quote & report ---

// QuoteTax previews the tax for a tax class, location, and amount without
// touching any order.
func (h *TaxHandler) QuoteTax(c *gin.Context) {
	classID, err := uuid.Parse(c.Query("tax_class_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid tax_class_id"))
		return
	}

	country := c.Query("country")
	if country == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "country is required"))
		return
	}

	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid amount"))
		return
	}

	loc := model.Location{
		Country: country,
		State:   c.Query("state"),
		City:    c.Query("city"),
	}

	tax, err := h.taxService.QuoteTax(c.Request.Context(), classID, loc, amount)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"tax_class_id": classID.String(),
		"amount":       amount.StringFixed(2),
		"tax":          tax.StringFixed(2),
		"total":        amount.Add(tax).StringFixed(2),
	}))
}

// CollectedReport sums recorded order taxes per tax rate
func (h *TaxHandler) CollectedReport(c *gin.Context) {
	totals, err := h.taxService.CollectedByRate(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"totals": totals,
	}))
}
