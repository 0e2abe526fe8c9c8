package handler

import (
	"net/http"

	"eshop/internal/middleware"
	"eshop/internal/service"
	"eshop/pkg/pagination"
	"eshop/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	audit := router.Group("/api/audit-logs")
	audit.Use(middleware.RequireRole("admin", "manager"))
	{
		audit.GET("", h.ListAuditLogs)
	}
}

// ListAuditLogs godoc
// @Summary List audit logs
// @Tags audit
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /api/audit-logs [get]
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)
	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.List(http.StatusOK, "logs", logs, total, params.Page, params.Limit))
}
