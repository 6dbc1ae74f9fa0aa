package handler

import (
	"time"

	"subscription-engine/internal/adapter/http/middleware"
	redisStore "subscription-engine/internal/adapter/storage/redis"
	"subscription-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	ProcessorSvc   ports.WebhookProcessor
	OrderSvc       ports.OrderService
	SubSvc         ports.SubscriptionService
	SweeperSvc     ports.Sweeper
	AuthSvc        ports.AuthService
	TokenSvc       ports.TokenService
	SweepToken     string
	SweepGrace     time.Duration
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Gateway callback (no auth, no rate limit, no JSON envelope) ---
	// The gateway authenticates through the ciphertext itself; throttling or
	// rejecting here would only trigger redeliveries.
	webhookHandler := NewWebhookHandler(deps.ProcessorSvc, deps.Logger)
	v1.POST("/webhooks/gateway", webhookHandler.Receive)

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	v1.POST("/auth/login", rl("auth_login"), authHandler.Login)

	// --- JWT-authenticated operator routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	orderHandler := NewOrderHandler(deps.OrderSvc)
	subHandler := NewSubscriptionHandler(deps.SubSvc)

	orders := v1.Group("/orders", jwtAuth)
	{
		orders.POST("", rl("orders"), orderHandler.Create)
		orders.GET("/:order_no", rl("orders"), orderHandler.Get)
	}

	subscriptions := v1.Group("/subscriptions", jwtAuth)
	{
		subscriptions.POST("/cancel", rl("subscriptions"), subHandler.Cancel)
	}

	// --- Scheduler-triggered reconciliation (pre-shared token) ---
	sweepHandler := NewSweepHandler(deps.SweeperSvc, deps.SweepGrace)
	v1.POST("/internal/sweep", middleware.SweepTokenAuth(deps.SweepToken), rl("sweep"), sweepHandler.Run)

	return r
}
