package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"subscription-engine/internal/core/domain"
)

const subscriptionColumns = `id, user_id, plan, period, status, trial_start, trial_end,
	current_period_start, current_period_end, period_token, created_at, updated_at`

// SubscriptionRepo implements ports.SubscriptionRepository.
//
// The subscriptions table carries a partial unique index on (user_id, plan)
// restricted to active-lineage statuses, which is what makes Upsert atomic.
type SubscriptionRepo struct {
	pool Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepo.
func NewSubscriptionRepo(pool Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

// GetActiveLineage fetches the single active-lineage row for (user, plan).
func (r *SubscriptionRepo) GetActiveLineage(ctx context.Context, userID, plan string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE user_id = $1 AND plan = $2 AND status IN ('trialing', 'active', 'past_due')
		LIMIT 1`

	s := &domain.Subscription{}
	err := r.pool.QueryRow(ctx, query, userID, plan).Scan(
		&s.ID, &s.UserID, &s.Plan, &s.Period, &s.Status, &s.TrialStart, &s.TrialEnd,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.PeriodToken, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active subscription: %w", err)
	}
	return s, nil
}

// Upsert inserts the subscription, or refreshes the existing active-lineage
// row for (user, plan). The existing row keeps its id.
func (r *SubscriptionRepo) Upsert(ctx context.Context, s *domain.Subscription) error {
	query := `INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, plan) WHERE status IN ('trialing', 'active', 'past_due')
		DO UPDATE SET
			period = EXCLUDED.period,
			status = EXCLUDED.status,
			trial_start = EXCLUDED.trial_start,
			trial_end = EXCLUDED.trial_end,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			period_token = EXCLUDED.period_token,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.UserID, s.Plan, s.Period, s.Status, s.TrialStart, s.TrialEnd,
		s.CurrentPeriodStart, s.CurrentPeriodEnd, s.PeriodToken, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// UpdateStatus updates a subscription's status.
func (r *SubscriptionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) error {
	query := `UPDATE subscriptions SET status = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription not found: %s", id)
	}
	return nil
}

// UpdateStatusTx updates a subscription's status within a database transaction.
func (r *SubscriptionRepo) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.SubscriptionStatus) error {
	query := `UPDATE subscriptions SET status = $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription not found: %s", id)
	}
	return nil
}

// ListAll returns every subscription row for the sweeper's full scan.
func (r *SubscriptionRepo) ListAll(ctx context.Context) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Plan, &s.Period, &s.Status, &s.TrialStart, &s.TrialEnd,
			&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.PeriodToken, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
