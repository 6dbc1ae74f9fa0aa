package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscription-engine/internal/core/domain"
)

var notificationCols = []string{
	"id", "intent", "user_id", "plan", "order_no", "reason", "idempotency_key",
	"status", "attempt", "next_retry_at", "last_error", "created_at", "updated_at",
}

func TestNotificationRepo_CreateAndUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewNotificationRepo(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)
	n := &domain.Notification{
		ID: uuid.New(), Intent: domain.IntentGrant, UserID: "user-1", Plan: "pro",
		OrderNo: "ORD-1", IdempotencyKey: "ORD-1",
		Status: domain.NotificationStatusDelivered, Attempt: 1,
		CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(n.ID, n.Intent, n.UserID, n.Plan, n.OrderNo, n.Reason, n.IdempotencyKey,
			n.Status, n.Attempt, n.NextRetryAt, n.LastError, n.CreatedAt, n.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), n))

	n.Status = domain.NotificationStatusPending
	n.Attempt = 2
	mock.ExpectExec("UPDATE notifications").
		WithArgs(n.Status, n.Attempt, n.NextRetryAt, n.LastError, n.UpdatedAt, n.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), n))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepo_ListDue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewNotificationRepo(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)
	retryAt := now.Add(-time.Minute)

	mock.ExpectQuery("SELECT .+ FROM notifications").
		WithArgs(now, 50).
		WillReturnRows(pgxmock.NewRows(notificationCols).AddRow(
			uuid.New(), domain.IntentRevoke, "user-1", "pro", "", "expired", "user-1",
			domain.NotificationStatusPending, 2, &retryAt, nil, now.Add(-time.Hour), now.Add(-time.Minute),
		))

	due, err := repo.ListDue(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, domain.IntentRevoke, due[0].Intent)
	assert.Equal(t, 2, due[0].Attempt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
