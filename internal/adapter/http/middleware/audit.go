package middleware

import (
	"encoding/json"
	"time"

	"subscription-engine/internal/core/domain"
	"subscription-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful write operations.
// It maps HTTP methods and paths to audit actions.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" {
			return
		}

		action, resourceType := mapPathToAction(c.Request.URL.Path, c.Request.Method)
		if action == "" {
			return
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Actor:        c.GetString(CtxUsername),
			Action:       action,
			ResourceType: resourceType,
			Details:      string(details),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now(),
		})
	}
}

func mapPathToAction(path, method string) (domain.AuditAction, string) {
	switch {
	case path == "/api/v1/auth/login" && method == "POST":
		return domain.AuditActionLogin, "session"
	case path == "/api/v1/orders" && method == "POST":
		return domain.AuditActionCreateOrder, "order"
	case path == "/api/v1/subscriptions/cancel" && method == "POST":
		return domain.AuditActionCancel, "subscription"
	case path == "/api/v1/internal/sweep" && method == "POST":
		return domain.AuditActionSweep, "subscription"
	}
	return "", ""
}
