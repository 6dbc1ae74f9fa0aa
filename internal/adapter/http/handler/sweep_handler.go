package handler

import (
	"strconv"
	"time"

	"subscription-engine/internal/core/ports"
	"subscription-engine/pkg/apperror"
	"subscription-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// SweepHandler triggers the reconciliation pass from an external scheduler.
type SweepHandler struct {
	sweeper      ports.Sweeper
	defaultGrace time.Duration
}

// NewSweepHandler creates a new SweepHandler.
func NewSweepHandler(sweeper ports.Sweeper, defaultGrace time.Duration) *SweepHandler {
	return &SweepHandler{sweeper: sweeper, defaultGrace: defaultGrace}
}

// Run handles POST /api/v1/internal/sweep. The grace window defaults to the
// configured value and may be overridden per call with ?grace_days=N.
func (h *SweepHandler) Run(c *gin.Context) {
	grace := h.defaultGrace
	if raw := c.Query("grace_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			response.Error(c, apperror.Validation("grace_days must be a non-negative integer"))
			return
		}
		grace = time.Duration(days) * 24 * time.Hour
	}

	result, err := h.sweeper.Sweep(c.Request.Context(), time.Now(), grace)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}
