package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationIntent is the access-control action the downstream system
// should perform.
type NotificationIntent string

const (
	IntentGrant  NotificationIntent = "grant"
	IntentRevoke NotificationIntent = "revoke"
)

// NotificationStatus is the delivery state of an outbox row.
type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "pending"
	NotificationStatusDelivered NotificationStatus = "delivered"
	NotificationStatusDead      NotificationStatus = "dead"
)

// Notification is a durable outbox row for a downstream grant/revoke
// callback. The first delivery is attempted inline; failures land here and
// the dispatcher retries with backoff until delivered or dead-lettered.
type Notification struct {
	ID             uuid.UUID          `json:"id"`
	Intent         NotificationIntent `json:"intent"`
	UserID         string             `json:"user_id"`
	Plan           string             `json:"plan"`
	OrderNo        string             `json:"order_no,omitempty"`
	Reason         string             `json:"reason,omitempty"` // revoke only: canceled | expired
	IdempotencyKey string             `json:"idempotency_key"`
	Status         NotificationStatus `json:"status"`
	Attempt        int                `json:"attempt"`
	NextRetryAt    *time.Time         `json:"next_retry_at,omitempty"`
	LastError      *string            `json:"last_error,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// DefaultIdempotencyKey picks the key the downstream system deduplicates on:
// the order number when present, otherwise the user id.
func (n *Notification) DefaultIdempotencyKey() string {
	if n.OrderNo != "" {
		return n.OrderNo
	}
	return n.UserID
}
