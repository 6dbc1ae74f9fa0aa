package handler

import (
	"subscription-engine/internal/adapter/http/dto"
	"subscription-engine/internal/core/ports"
	"subscription-engine/pkg/apperror"
	"subscription-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// SubscriptionHandler handles explicit subscription cancellation.
type SubscriptionHandler struct {
	subSvc ports.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(subSvc ports.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subSvc: subSvc}
}

// Cancel handles POST /api/v1/subscriptions/cancel.
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	var req dto.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	sub, err := h.subSvc.Cancel(c.Request.Context(), req.UserID, req.Plan)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewSubscriptionResponse(sub))
}
