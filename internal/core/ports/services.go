package ports

import (
	"context"
	"time"

	"subscription-engine/internal/core/domain"
)

// --- Gateway codec ports ---

// DecryptResult is a successful decryption, retaining the combination of
// encoding and padding strategy that succeeded for ledger diagnostics.
type DecryptResult struct {
	Plaintext string
	Encoding  string // "hex" | "base64"
	Padding   string // "pkcs7" | "trim"
}

// CipherService decrypts gateway ciphertext with the pre-shared key/IV,
// tolerating both historical ciphertext encodings and both padding
// conventions.
type CipherService interface {
	Decrypt(ciphertext string) (*DecryptResult, error)
}

// VerifyResult is the outcome of an authenticity check.
type VerifyResult string

const (
	VerifyPass    VerifyResult = "pass"
	VerifyFail    VerifyResult = "fail"
	VerifySkipped VerifyResult = "skipped"
)

// Verifier recomputes the expected signature over candidate canonical
// strings. Skipped when no signature was provided; advisory unless strict
// mode is configured.
type Verifier interface {
	Verify(ciphertext string, providedSignature string) VerifyResult
}

// --- Downstream callback ---

// Notifier delivers a signed grant/revoke callback to the access-control
// collaborator. Returns true only on a 2xx response within the timeout.
type Notifier interface {
	Notify(ctx context.Context, n *domain.Notification) bool
}

// --- Webhook pipeline ---

// WebhookOutcome is the text token answered to the gateway.
type WebhookOutcome string

const (
	OutcomeOK      WebhookOutcome = "OK"
	OutcomeIgnored WebhookOutcome = "IGNORED"
)

// WebhookProcessor runs the full ingest pipeline for one gateway delivery:
// decode, ledger pre-insert, advisory verification, decryption, and the
// order/subscription state machine. A returned error means the ledger or
// state-machine write failed and the delivery should be retried.
type WebhookProcessor interface {
	Process(ctx context.Context, body []byte, contentType string) (WebhookOutcome, error)
}

// --- Business services ---

// CreateOrderRequest holds validated input for order creation.
type CreateOrderRequest struct {
	OrderNo         string
	UserID          string
	Plan            string
	Period          string
	Amount          int64
	Currency        string
	TrialStart      *time.Time
	TrialEnd        *time.Time
	FirstChargeDate *time.Time
	PeriodType      string
	PeriodPoint     string
}

// OrderService defines order creation and the status poll consumed by the
// collaborator result page.
type OrderService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, orderNo string) (*domain.Order, error)
}

// SubscriptionService defines the explicit cancellation flow.
type SubscriptionService interface {
	// Cancel terminates the recurring mandate at the gateway and records
	// the local cancellation unconditionally once the call has been placed.
	Cancel(ctx context.Context, userID, plan string) (*domain.Subscription, error)
}

// SweepResult summarizes one reconciliation pass.
type SweepResult struct {
	Checked int `json:"checked"`
	Revoked int `json:"revoked"`
}

// Sweeper is the periodic reconciliation pass that revokes access past the
// grace window, independent of webhook delivery.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time, grace time.Duration) (SweepResult, error)
}

// AuthService defines operator authentication.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Username string
}

// TokenService handles JWT token operations for the operator API.
type TokenService interface {
	Generate(username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// HashService handles operator password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// AuditService records audited operator actions (fire-and-forget).
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// ProcessedCache is the Redis-layer fast path in front of the ledger: it
// remembers fingerprints whose processing already completed.
type ProcessedCache interface {
	// IsProcessed returns true if the fingerprint completed processing
	// recently. Errors degrade to false (fall through to the ledger).
	IsProcessed(ctx context.Context, fingerprint string) (bool, error)
	MarkProcessed(ctx context.Context, fingerprint string, ttl time.Duration) error
}
