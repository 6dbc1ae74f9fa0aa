package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"subscription-engine/internal/core/domain"
	"subscription-engine/internal/core/ports"
)

// WebhookEventRepo implements ports.WebhookEventRepository, the durable
// idempotency ledger keyed by ciphertext fingerprint.
type WebhookEventRepo struct {
	pool Pool
}

// NewWebhookEventRepo creates a new WebhookEventRepo.
func NewWebhookEventRepo(pool Pool) *WebhookEventRepo {
	return &WebhookEventRepo{pool: pool}
}

// claimLease bounds how long an unprocessed ledger entry is considered
// in flight. Gateway retry intervals are minutes apart, so a retried
// delivery of a failed attempt always lands after the lease expired and
// gets reprocessed.
const claimLease = 2 * time.Minute

// RecordAttempt atomically upserts the ledger entry before decryption and
// claims it. The conflict clause only touches rows that are processed or
// whose claim went stale, so of any set of concurrent duplicates exactly
// one statement returns an unprocessed row and wins the state-machine run.
func (r *WebhookEventRepo) RecordAttempt(ctx context.Context, event *domain.WebhookEvent) (ports.ClaimOutcome, error) {
	query := `INSERT INTO webhook_events (event_hash, event_source, raw_enc, signature, processed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, false, $5, $5)
		ON CONFLICT (event_hash) DO UPDATE SET updated_at = $5
		WHERE webhook_events.processed OR webhook_events.updated_at < $6
		RETURNING processed`

	now := time.Now().UTC()
	var processed bool
	err := r.pool.QueryRow(ctx, query,
		event.EventHash, event.EventSource, event.RawEnc, event.Signature, now, now.Add(-claimLease),
	).Scan(&processed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.ClaimHeld, nil
		}
		return "", fmt.Errorf("record webhook attempt: %w", err)
	}
	if processed {
		return ports.ClaimDone, nil
	}
	return ports.ClaimWon, nil
}

// UpdatePayload stores the decoded payload or decode diagnostics.
func (r *WebhookEventRepo) UpdatePayload(ctx context.Context, eventHash string, payload []byte) error {
	query := `UPDATE webhook_events SET payload = $1, updated_at = $2 WHERE event_hash = $3`

	tag, err := r.pool.Exec(ctx, query, payload, time.Now().UTC(), eventHash)
	if err != nil {
		return fmt.Errorf("update webhook payload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook event not found: %s", eventHash)
	}
	return nil
}

// MarkProcessed flips the processed flag after the state machine completed.
func (r *WebhookEventRepo) MarkProcessed(ctx context.Context, eventHash string) error {
	query := `UPDATE webhook_events SET processed = true, updated_at = $1 WHERE event_hash = $2`

	tag, err := r.pool.Exec(ctx, query, time.Now().UTC(), eventHash)
	if err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook event not found: %s", eventHash)
	}
	return nil
}

// Get fetches a ledger entry by fingerprint.
func (r *WebhookEventRepo) Get(ctx context.Context, eventHash string) (*domain.WebhookEvent, error) {
	query := `SELECT event_hash, event_source, raw_enc, signature, payload, processed, created_at, updated_at
		FROM webhook_events WHERE event_hash = $1`

	e := &domain.WebhookEvent{}
	err := r.pool.QueryRow(ctx, query, eventHash).Scan(
		&e.EventHash, &e.EventSource, &e.RawEnc, &e.Signature, &e.Payload,
		&e.Processed, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	return e, nil
}
