package handler

import (
	"net/http"

	"eshop/internal/middleware"
	"eshop/internal/service"
	"eshop/pkg/pagination"
	"eshop/pkg/response"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	orders := router.Group("/api/orders")
	orders.Use(middleware.RequireRole("admin", "manager", "staff"))
	{
		orders.POST("", h.CreateOrder)
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrder)
		orders.GET("/:id/taxes", h.GetOrderTaxes)
	}
}

// CreateOrder godoc
// @Summary Create an order
// @Description Creates an order with its line items and records taxes for the destination address. Tax persistence failures roll back the whole order.
// @Tags orders
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param order body service.CreateOrderRequest true "Order payload"
// @Success 201 {object} response.Response{data=service.OrderResponse}
// @Failure 400 {object} response.Response
// @Router /api/orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), c.GetString("userID"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, order))
}

// ListOrders godoc
// @Summary List orders
// @Tags orders
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /api/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	params := pagination.Parse(c)
	orders, total, err := h.orderService.ListOrders(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.List(http.StatusOK, "orders", orders, total, params.Page, params.Limit))
}

// GetOrder godoc
// @Summary Get an order
// @Tags orders
// @Security BearerAuth
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Response{data=service.OrderResponse}
// @Failure 404 {object} response.Response
// @Router /api/orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// GetOrderTaxes godoc
// @Summary Get the tax breakdown of an order
// @Description Returns every recorded tax row for the order plus the summed total.
// @Tags orders
// @Security BearerAuth
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/orders/{id}/taxes [get]
func (h *OrderHandler) GetOrderTaxes(c *gin.Context) {
	taxes, total, err := h.orderService.GetOrderTaxes(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"taxes": taxes,
		"total": total,
	}))
}
