package postgres

import (
	"context"
	"fmt"
	"time"

	"subscription-engine/internal/core/domain"
)

const notificationColumns = `id, intent, user_id, plan, order_no, reason, idempotency_key,
	status, attempt, next_retry_at, last_error, created_at, updated_at`

// NotificationRepo implements ports.NotificationRepository, the downstream
// callback outbox.
type NotificationRepo struct {
	pool Pool
}

// NewNotificationRepo creates a new NotificationRepo.
func NewNotificationRepo(pool Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

// Create inserts an outbox row.
func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	query := `INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		n.ID, n.Intent, n.UserID, n.Plan, n.OrderNo, n.Reason, n.IdempotencyKey,
		n.Status, n.Attempt, n.NextRetryAt, n.LastError, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// Update persists the delivery state after a dispatcher attempt.
func (r *NotificationRepo) Update(ctx context.Context, n *domain.Notification) error {
	query := `UPDATE notifications
		SET status = $1, attempt = $2, next_retry_at = $3, last_error = $4, updated_at = $5
		WHERE id = $6`

	tag, err := r.pool.Exec(ctx, query, n.Status, n.Attempt, n.NextRetryAt, n.LastError, n.UpdatedAt, n.ID)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification not found: %s", n.ID)
	}
	return nil
}

// ListDue returns pending notifications whose retry time has passed.
func (r *NotificationRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY created_at LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due notifications: %w", err)
	}
	defer rows.Close()

	var due []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID, &n.Intent, &n.UserID, &n.Plan, &n.OrderNo, &n.Reason, &n.IdempotencyKey,
			&n.Status, &n.Attempt, &n.NextRetryAt, &n.LastError, &n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		due = append(due, n)
	}
	return due, rows.Err()
}
