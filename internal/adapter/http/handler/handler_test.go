package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"subscription-engine/internal/adapter/http/dto"
	"subscription-engine/internal/core/domain"
	"subscription-engine/internal/core/ports"
	"subscription-engine/internal/core/ports/mocks"
	"subscription-engine/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Auth Handler Tests ---

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiry := time.Now().Add(time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), "admin", "password123").Return("jwt-token", expiry, nil)

	body, _ := json.Marshal(dto.LoginRequest{Username: "admin", Password: "password123"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "jwt-token", data["token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
}

func TestLogin_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte("{}")))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), "admin", "wrong").
		Return("", time.Time{}, apperror.ErrInvalidCredentials())

	body, _ := json.Marshal(dto.LoginRequest{Username: "admin", Password: "wrong"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "SEC_001")
}

// --- Webhook Handler Tests ---

func TestWebhookReceive_OK(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockProc := mocks.NewMockWebhookProcessor(ctrl)
	h := NewWebhookHandler(mockProc, zerolog.Nop())

	mockProc.EXPECT().Process(gomock.Any(), []byte("Period=abc123"), "application/x-www-form-urlencoded").
		Return(ports.OutcomeOK, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader([]byte("Period=abc123")))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	h.Receive(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestWebhookReceive_Ignored(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockProc := mocks.NewMockWebhookProcessor(ctrl)
	h := NewWebhookHandler(mockProc, zerolog.Nop())

	mockProc.EXPECT().Process(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(ports.OutcomeIgnored, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader([]byte("Period=junk")))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	h.Receive(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "IGNORED", w.Body.String())
}

func TestWebhookReceive_RetryOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockProc := mocks.NewMockWebhookProcessor(ctrl)
	h := NewWebhookHandler(mockProc, zerolog.Nop())

	mockProc.EXPECT().Process(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(ports.WebhookOutcome(""), apperror.ErrLedgerUnavailable(errors.New("connection refused")))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader([]byte("Period=abc")))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	h.Receive(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "RETRY", w.Body.String())
}

// --- Order Handler Tests ---

func TestOrderCreate_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOrders := mocks.NewMockOrderService(ctrl)
	h := NewOrderHandler(mockOrders)

	now := time.Now()
	mockOrders.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CreateOrderRequest) (*domain.Order, error) {
			assert.Equal(t, "ORD-001", req.OrderNo)
			assert.Equal(t, "user-1", req.UserID)
			require.NotNil(t, req.TrialEnd)
			return &domain.Order{
				OrderNo:   req.OrderNo,
				UserID:    req.UserID,
				Plan:      req.Plan,
				Period:    req.Period,
				Amount:    req.Amount,
				Currency:  "TWD",
				Status:    domain.OrderStatusPending,
				CreatedAt: now,
			}, nil
		},
	)

	body, _ := json.Marshal(dto.CreateOrderRequest{
		OrderNo:   "ORD-001",
		UserID:    "user-1",
		Plan:      "premium",
		Period:    "month",
		Amount:    299,
		TrialDays: 10,
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ORD-001", data["order_no"])
	assert.Equal(t, "pending", data["status"])
}

func TestOrderCreate_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOrders := mocks.NewMockOrderService(ctrl)
	h := NewOrderHandler(mockOrders)

	// Missing required fields
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader([]byte("{}")))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "SUB_006")
}

func TestOrderCreate_Duplicate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOrders := mocks.NewMockOrderService(ctrl)
	h := NewOrderHandler(mockOrders)

	mockOrders.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrDuplicateOrder())

	body, _ := json.Marshal(dto.CreateOrderRequest{
		OrderNo: "ORD-001",
		UserID:  "user-1",
		Plan:    "premium",
		Period:  "month",
		Amount:  299,
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "SUB_002")
}

func TestOrderGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOrders := mocks.NewMockOrderService(ctrl)
	h := NewOrderHandler(mockOrders)

	paidAt := time.Now()
	mockOrders.EXPECT().GetOrder(gomock.Any(), "ORD-001").Return(&domain.Order{
		OrderNo:   "ORD-001",
		UserID:    "user-1",
		Plan:      "premium",
		Period:    "month",
		Amount:    299,
		Currency:  "TWD",
		Status:    domain.OrderStatusPaid,
		PaidAt:    &paidAt,
		CreatedAt: paidAt.Add(-time.Minute),
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/orders/ORD-001", nil)
	c.Params = gin.Params{{Key: "order_no", Value: "ORD-001"}}

	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "paid", data["status"])
}

func TestOrderGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOrders := mocks.NewMockOrderService(ctrl)
	h := NewOrderHandler(mockOrders)

	mockOrders.EXPECT().GetOrder(gomock.Any(), "missing").Return(nil, apperror.ErrNotFound("order"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/orders/missing", nil)
	c.Params = gin.Params{{Key: "order_no", Value: "missing"}}

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "SUB_001")
}

// --- Subscription Handler Tests ---

func TestSubscriptionCancel_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSubs := mocks.NewMockSubscriptionService(ctrl)
	h := NewSubscriptionHandler(mockSubs)

	now := time.Now()
	mockSubs.EXPECT().Cancel(gomock.Any(), "user-1", "premium").Return(&domain.Subscription{
		ID:                 uuid.New(),
		UserID:             "user-1",
		Plan:               "premium",
		Period:             "month",
		Status:             domain.SubscriptionStatusCanceled,
		CurrentPeriodStart: now.Add(-24 * time.Hour),
		CurrentPeriodEnd:   now.Add(29 * 24 * time.Hour),
	}, nil)

	body, _ := json.Marshal(dto.CancelSubscriptionRequest{UserID: "user-1", Plan: "premium"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/cancel", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "canceled", data["status"])
}

func TestSubscriptionCancel_NoActiveSubscription(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSubs := mocks.NewMockSubscriptionService(ctrl)
	h := NewSubscriptionHandler(mockSubs)

	mockSubs.EXPECT().Cancel(gomock.Any(), "user-1", "premium").
		Return(nil, apperror.ErrNoActiveSubscription())

	body, _ := json.Marshal(dto.CancelSubscriptionRequest{UserID: "user-1", Plan: "premium"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/cancel", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Cancel(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "SUB_003")
}

// --- Sweep Handler Tests ---

func TestSweepRun_DefaultGrace(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSweeper := mocks.NewMockSweeper(ctrl)
	h := NewSweepHandler(mockSweeper, 3*24*time.Hour)

	mockSweeper.EXPECT().Sweep(gomock.Any(), gomock.Any(), 3*24*time.Hour).
		Return(ports.SweepResult{Checked: 42, Revoked: 2}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/internal/sweep", nil)

	h.Run(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(42), data["checked"])
	assert.Equal(t, float64(2), data["revoked"])
}

func TestSweepRun_GraceOverride(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSweeper := mocks.NewMockSweeper(ctrl)
	h := NewSweepHandler(mockSweeper, 3*24*time.Hour)

	mockSweeper.EXPECT().Sweep(gomock.Any(), gomock.Any(), 7*24*time.Hour).
		Return(ports.SweepResult{Checked: 10, Revoked: 0}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/internal/sweep?grace_days=7", nil)

	h.Run(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSweepRun_InvalidGrace(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSweeper := mocks.NewMockSweeper(ctrl)
	h := NewSweepHandler(mockSweeper, 3*24*time.Hour)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/internal/sweep?grace_days=-1", nil)

	h.Run(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweepRun_SweeperError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSweeper := mocks.NewMockSweeper(ctrl)
	h := NewSweepHandler(mockSweeper, 3*24*time.Hour)

	mockSweeper.EXPECT().Sweep(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(ports.SweepResult{}, apperror.ErrDatabaseError(errors.New("connection refused")))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/internal/sweep", nil)

	h.Run(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SYS_001")
}

// --- Health Check Tests ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                 { return s.name }
func (s stubChecker) Ping(_ context.Context) error { return s.err }

func TestHealthCheck_AllHealthy(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck(stubChecker{name: "postgresql"}, stubChecker{name: "redis"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestHealthCheck_Degraded(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck(
		stubChecker{name: "postgresql"},
		stubChecker{name: "redis", err: errors.New("connection refused")},
	))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}
