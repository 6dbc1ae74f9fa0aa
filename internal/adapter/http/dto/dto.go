package dto

import (
	"time"

	"subscription-engine/internal/core/domain"
	"subscription-engine/internal/core/ports"
)

// LoginRequest is the request body for operator login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreateOrderRequest is the request body for creating a subscription order.
type CreateOrderRequest struct {
	OrderNo         string  `json:"order_no" binding:"required,max=30,safe_id"`
	UserID          string  `json:"user_id" binding:"required,max=64,safe_id"`
	Plan            string  `json:"plan" binding:"required,max=32,safe_id"`
	Period          string  `json:"period" binding:"required,oneof=month year"`
	Amount          int64   `json:"amount" binding:"required,gt=0"`
	Currency        string  `json:"currency" binding:"omitempty,len=3"`
	TrialDays       int     `json:"trial_days" binding:"omitempty,gte=0,lte=365"`
	FirstChargeDate *string `json:"first_charge_date,omitempty"` // YYYY-MM-DD
	PeriodType      string  `json:"period_type" binding:"omitempty,oneof=D W M Y"`
	PeriodPoint     string  `json:"period_point" binding:"omitempty,max=4"`
}

// ToServiceRequest converts the validated DTO into the service-layer request,
// resolving trial dates relative to now.
func (r *CreateOrderRequest) ToServiceRequest(now time.Time) (ports.CreateOrderRequest, error) {
	req := ports.CreateOrderRequest{
		OrderNo:     r.OrderNo,
		UserID:      r.UserID,
		Plan:        r.Plan,
		Period:      r.Period,
		Amount:      r.Amount,
		Currency:    r.Currency,
		PeriodType:  r.PeriodType,
		PeriodPoint: r.PeriodPoint,
	}
	if r.TrialDays > 0 {
		start := now
		end := now.AddDate(0, 0, r.TrialDays)
		req.TrialStart = &start
		req.TrialEnd = &end
	}
	if r.FirstChargeDate != nil && *r.FirstChargeDate != "" {
		d, err := time.ParseInLocation("2006-01-02", *r.FirstChargeDate, now.Location())
		if err != nil {
			return ports.CreateOrderRequest{}, err
		}
		req.FirstChargeDate = &d
	}
	return req, nil
}

// CancelSubscriptionRequest is the request body for cancelling a subscription.
type CancelSubscriptionRequest struct {
	UserID string `json:"user_id" binding:"required,max=64,safe_id"`
	Plan   string `json:"plan" binding:"required,max=32,safe_id"`
}

// OrderResponse is the response body for order queries.
type OrderResponse struct {
	OrderNo   string  `json:"order_no"`
	UserID    string  `json:"user_id"`
	Plan      string  `json:"plan"`
	Period    string  `json:"period"`
	Amount    int64   `json:"amount"`
	Currency  string  `json:"currency"`
	Status    string  `json:"status"`
	TrialEnd  *string `json:"trial_end,omitempty"`
	PaidAt    *string `json:"paid_at,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// NewOrderResponse maps a domain order to its API representation.
func NewOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		OrderNo:   o.OrderNo,
		UserID:    o.UserID,
		Plan:      o.Plan,
		Period:    o.Period,
		Amount:    o.Amount,
		Currency:  o.Currency,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
	}
	if o.TrialEnd != nil {
		s := o.TrialEnd.Format(time.RFC3339)
		resp.TrialEnd = &s
	}
	if o.PaidAt != nil {
		s := o.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &s
	}
	return resp
}

// SubscriptionResponse is the response body for subscription state.
type SubscriptionResponse struct {
	ID                 string  `json:"id"`
	UserID             string  `json:"user_id"`
	Plan               string  `json:"plan"`
	Period             string  `json:"period"`
	Status             string  `json:"status"`
	TrialEnd           *string `json:"trial_end,omitempty"`
	CurrentPeriodStart string  `json:"current_period_start"`
	CurrentPeriodEnd   string  `json:"current_period_end"`
}

// NewSubscriptionResponse maps a domain subscription to its API representation.
func NewSubscriptionResponse(s *domain.Subscription) SubscriptionResponse {
	resp := SubscriptionResponse{
		ID:                 s.ID.String(),
		UserID:             s.UserID,
		Plan:               s.Plan,
		Period:             s.Period,
		Status:             string(s.Status),
		CurrentPeriodStart: s.CurrentPeriodStart.Format(time.RFC3339),
		CurrentPeriodEnd:   s.CurrentPeriodEnd.Format(time.RFC3339),
	}
	if s.TrialEnd != nil {
		t := s.TrialEnd.Format(time.RFC3339)
		resp.TrialEnd = &t
	}
	return resp
}
