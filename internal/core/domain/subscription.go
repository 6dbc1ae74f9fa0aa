package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the entitlement state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// Subscription is the durable entitlement record. For a given (user, plan)
// at most one row is in an active-lineage status at any time; webhooks and
// the sweeper always target that row.
type Subscription struct {
	ID                 uuid.UUID          `json:"id"`
	UserID             string             `json:"user_id"`
	Plan               string             `json:"plan"`
	Period             string             `json:"period"`
	Status             SubscriptionStatus `json:"status"`
	TrialStart         *time.Time         `json:"trial_start,omitempty"`
	TrialEnd           *time.Time         `json:"trial_end,omitempty"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	PeriodToken        *string            `json:"period_token,omitempty"` // gateway recurring mandate id
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// IsActiveLineage returns true for statuses that still grant access:
// trialing, active, past_due.
func (s *Subscription) IsActiveLineage() bool {
	switch s.Status {
	case SubscriptionStatusTrialing, SubscriptionStatusActive, SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}

// WithinGrace reports whether the subscription's current period, extended by
// the grace window, still covers the given instant.
func (s *Subscription) WithinGrace(now time.Time, grace time.Duration) bool {
	return s.CurrentPeriodEnd.Add(grace).After(now)
}

// ShouldKeep is the sweeper's per-row decision: keep access only for
// active-lineage subscriptions still inside the grace window.
func (s *Subscription) ShouldKeep(now time.Time, grace time.Duration) bool {
	return s.IsActiveLineage() && s.WithinGrace(now, grace)
}

// RevokeReason returns the reason tag attached to a revoke notification.
func (s *Subscription) RevokeReason() string {
	if s.Status == SubscriptionStatusCanceled {
		return "canceled"
	}
	return "expired"
}
