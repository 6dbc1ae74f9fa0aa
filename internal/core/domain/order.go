package domain

import (
	"time"
)

// OrderStatus represents the lifecycle state of a subscription-creation order.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusFailed   OrderStatus = "failed"
	OrderStatusCanceled OrderStatus = "canceled"
)

// Order is a single subscription-creation attempt. Orders are never deleted;
// they form the audit trail of every charge authorization we asked for.
type Order struct {
	OrderNo         string      `json:"order_no"` // caller-generated, unique
	UserID          string      `json:"user_id"`
	Plan            string      `json:"plan"`
	Period          string      `json:"period"` // month, year
	Amount          int64       `json:"amount"`
	Currency        string      `json:"currency"`
	Status          OrderStatus `json:"status"`
	TrialStart      *time.Time  `json:"trial_start,omitempty"`
	TrialEnd        *time.Time  `json:"trial_end,omitempty"`
	FirstChargeDate *time.Time  `json:"first_charge_date,omitempty"`
	PeriodType      string      `json:"period_type,omitempty"`  // gateway periodic descriptor (D/W/M/Y)
	PeriodPoint     string      `json:"period_point,omitempty"` // gateway period anchor
	PeriodToken     *string     `json:"period_token,omitempty"` // gateway recurring mandate id
	PaidAt          *time.Time  `json:"paid_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// CanTransition reports whether the order may move to the target status.
// Transitions are monotonic: failed and canceled are terminal, and a failed
// order never recovers to paid — a new order must be created to retry.
func (o *Order) CanTransition(to OrderStatus) bool {
	switch o.Status {
	case OrderStatusPending:
		return to == OrderStatusPaid || to == OrderStatusFailed
	case OrderStatusPaid:
		return to == OrderStatusCanceled
	default:
		return false
	}
}

// IsTerminal returns true if no webhook event may mutate the order further.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusFailed || o.Status == OrderStatusCanceled
}
