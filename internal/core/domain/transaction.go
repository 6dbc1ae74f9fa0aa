package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of monetary event.
type TransactionType string

const (
	TransactionTypeInitial TransactionType = "initial" // first charge of a new mandate
	TransactionTypeCycle   TransactionType = "cycle"   // periodic recurring charge
	TransactionTypeCancel  TransactionType = "cancel"  // cancellation / refund
)

// TransactionStatus represents the outcome recorded for the event.
type TransactionStatus string

const (
	TransactionStatusSucceeded TransactionStatus = "succeeded"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is an append-only ledger row, one per processed event outcome.
// RawPayload preserves the decoded gateway result for audit.
type Transaction struct {
	ID         uuid.UUID         `json:"id"`
	OrderNo    string            `json:"order_no"`
	UserID     string            `json:"user_id"`
	TxType     TransactionType   `json:"tx_type"`
	Status     TransactionStatus `json:"status"`
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	AuthCode   *string           `json:"auth_code,omitempty"` // gateway authorization code, when sent
	RawPayload []byte            `json:"raw_payload,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
