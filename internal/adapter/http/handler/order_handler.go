package handler

import (
	"time"

	"subscription-engine/internal/adapter/http/dto"
	"subscription-engine/internal/core/ports"
	"subscription-engine/pkg/apperror"
	"subscription-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// OrderHandler handles order creation and the status poll used by the
// collaborator's payment result page.
type OrderHandler struct {
	orderSvc ports.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc ports.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// Create handles POST /api/v1/orders.
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	svcReq, err := req.ToServiceRequest(time.Now())
	if err != nil {
		response.Error(c, apperror.Validation("first_charge_date must be YYYY-MM-DD"))
		return
	}

	order, err := h.orderSvc.CreateOrder(c.Request.Context(), svcReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewOrderResponse(order))
}

// Get handles GET /api/v1/orders/:order_no. The result page polls this
// endpoint while the webhook races in, so responses must never be cached.
func (h *OrderHandler) Get(c *gin.Context) {
	orderNo := c.Param("order_no")

	order, err := h.orderSvc.GetOrder(c.Request.Context(), orderNo)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	response.OK(c, dto.NewOrderResponse(order))
}
