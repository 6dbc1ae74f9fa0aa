package handler

import (
	"io"
	"net/http"

	"subscription-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WebhookHandler receives gateway payment callbacks.
//
// The gateway contract is plain text, not the JSON envelope used by the
// operator API: any 200 body stops redelivery, anything else triggers the
// gateway's retry schedule.
type WebhookHandler struct {
	processor ports.WebhookProcessor
	log       zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(processor ports.WebhookProcessor, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, log: log}
}

// Receive handles POST /api/v1/webhooks/gateway.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warn().Err(err).Msg("cannot read webhook body")
		c.String(http.StatusServiceUnavailable, "RETRY")
		return
	}

	outcome, err := h.processor.Process(c.Request.Context(), body, c.ContentType())
	if err != nil {
		// Ledger or state-machine write failed; ask the gateway to redeliver.
		h.log.Error().Err(err).Msg("webhook processing failed")
		c.String(http.StatusServiceUnavailable, "RETRY")
		return
	}

	c.String(http.StatusOK, string(outcome))
}
