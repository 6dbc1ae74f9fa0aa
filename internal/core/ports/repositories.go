package ports

import (
	"context"
	"time"

	"subscription-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepository defines persistence operations for orders.
// Methods accepting pgx.Tx are used inside the cancellation flow's
// transaction block.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error)
	// MarkPaid transitions the order to paid, stamping paid_at and the
	// gateway mandate id. Repeating the call with identical values is a
	// no-op in effect.
	MarkPaid(ctx context.Context, orderNo string, paidAt time.Time, periodToken string) error
	UpdateStatus(ctx context.Context, orderNo string, status domain.OrderStatus) error
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, orderNo string, status domain.OrderStatus) error
	// GetLatestPaidByUserPlan returns the most recent paid order for
	// (user, plan), or nil. The cancellation flow uses it to find the order
	// backing the active subscription.
	GetLatestPaidByUserPlan(ctx context.Context, userID, plan string) (*domain.Order, error)
}

// SubscriptionRepository defines persistence operations for subscriptions.
type SubscriptionRepository interface {
	// GetActiveLineage returns the single subscription for (user, plan)
	// whose status is in {trialing, active, past_due}, or nil.
	GetActiveLineage(ctx context.Context, userID, plan string) (*domain.Subscription, error)
	// Upsert updates the active-lineage row for (user, plan) when one
	// exists, otherwise inserts. Safe to repeat with identical values.
	Upsert(ctx context.Context, sub *domain.Subscription) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) error
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.SubscriptionStatus) error
	// ListAll returns every subscription row; the sweeper scans them all.
	ListAll(ctx context.Context) ([]domain.Subscription, error)
}

// ClaimOutcome is the result of a ledger claim on a ciphertext fingerprint.
type ClaimOutcome string

const (
	// ClaimWon means this delivery owns the fingerprint and runs the state
	// machine. Covers both a fresh insert and the reclaim of a stale
	// unprocessed entry left by an earlier failed attempt.
	ClaimWon ClaimOutcome = "won"
	// ClaimDone means a previous delivery already ran the state machine to
	// completion; the caller short-circuits with a success response.
	ClaimDone ClaimOutcome = "done"
	// ClaimHeld means a concurrent delivery of the same fingerprint holds a
	// live claim. The caller answers with a transient failure so the
	// gateway redelivers once the winner has finished.
	ClaimHeld ClaimOutcome = "held"
)

// WebhookEventRepository is the idempotency ledger. RecordAttempt is the
// sole serialization point across concurrent deliveries of the same
// fingerprint.
type WebhookEventRepository interface {
	// RecordAttempt atomically upserts the ledger entry keyed by the event
	// hash, before any decryption attempt, and claims it for this delivery.
	// Exactly one of a set of concurrent callers with the same hash gets
	// ClaimWon; a claim goes stale and becomes reclaimable after the lease
	// window, so gateway retries of a failed attempt are reprocessed.
	RecordAttempt(ctx context.Context, event *domain.WebhookEvent) (ClaimOutcome, error)
	// UpdatePayload stores the decoded payload or decode diagnostics.
	UpdatePayload(ctx context.Context, eventHash string, payload []byte) error
	MarkProcessed(ctx context.Context, eventHash string) error
	Get(ctx context.Context, eventHash string) (*domain.WebhookEvent, error)
}

// TransactionRepository defines persistence for the append-only monetary
// event ledger.
type TransactionRepository interface {
	Create(ctx context.Context, txn *domain.Transaction) error
	CreateTx(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	ListByOrder(ctx context.Context, orderNo string) ([]domain.Transaction, error)
}

// NotificationRepository defines persistence for the downstream-callback
// outbox.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	Update(ctx context.Context, n *domain.Notification) error
	// ListDue returns pending notifications whose next_retry_at has passed.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
}

// AuditRepository defines persistence for operator audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management for flows that
// write multiple rows atomically (cancellation).
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
