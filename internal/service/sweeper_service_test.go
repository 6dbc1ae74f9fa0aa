package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"subscription-engine/internal/core/domain"
	"subscription-engine/internal/core/ports/mocks"
	"subscription-engine/pkg/logger"
)

const sweepGrace = 3 * 24 * time.Hour

func TestSweep(t *testing.T) {
	ctrl := gomock.NewController(t)
	subs := mocks.NewMockSubscriptionRepository(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	svc := NewSweeperService(subs, notifier, logger.New("disabled", false))

	now := time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)
	healthy := domain.Subscription{
		ID: uuid.New(), UserID: "u-keep", Plan: "pro",
		Status:           domain.SubscriptionStatusActive,
		CurrentPeriodEnd: now.Add(24 * time.Hour),
	}
	inGrace := domain.Subscription{
		ID: uuid.New(), UserID: "u-grace", Plan: "pro",
		Status:           domain.SubscriptionStatusPastDue,
		CurrentPeriodEnd: now.Add(-2 * 24 * time.Hour),
	}
	lapsed := domain.Subscription{
		ID: uuid.New(), UserID: "u-lapsed", Plan: "pro",
		Status:           domain.SubscriptionStatusTrialing,
		CurrentPeriodEnd: now.Add(-5 * 24 * time.Hour),
	}
	canceled := domain.Subscription{
		ID: uuid.New(), UserID: "u-canceled", Plan: "pro",
		Status:           domain.SubscriptionStatusCanceled,
		CurrentPeriodEnd: now.Add(24 * time.Hour),
	}

	subs.EXPECT().ListAll(gomock.Any()).
		Return([]domain.Subscription{healthy, inGrace, lapsed, canceled}, nil)
	subs.EXPECT().UpdateStatus(gomock.Any(), lapsed.ID, domain.SubscriptionStatusExpired).Return(nil)

	var notified []domain.Notification
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(2).DoAndReturn(
		func(_ context.Context, n *domain.Notification) bool {
			notified = append(notified, *n)
			return true
		})

	res, err := svc.Sweep(context.Background(), now, sweepGrace)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Checked)
	assert.Equal(t, 2, res.Revoked)

	require.Len(t, notified, 2)
	assert.Equal(t, "u-lapsed", notified[0].UserID)
	assert.Equal(t, "expired", notified[0].Reason)
	assert.Equal(t, "u-canceled", notified[1].UserID)
	assert.Equal(t, "canceled", notified[1].Reason)
}

func TestSweep_GraceBoundary(t *testing.T) {
	ctrl := gomock.NewController(t)
	subs := mocks.NewMockSubscriptionRepository(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	svc := NewSweeperService(subs, notifier, logger.New("disabled", false))

	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	// period_end + grace exactly equals now: no longer covered
	boundary := domain.Subscription{
		ID: uuid.New(), UserID: "u-boundary", Plan: "pro",
		Status:           domain.SubscriptionStatusActive,
		CurrentPeriodEnd: now.Add(-sweepGrace),
	}

	subs.EXPECT().ListAll(gomock.Any()).Return([]domain.Subscription{boundary}, nil)
	subs.EXPECT().UpdateStatus(gomock.Any(), boundary.ID, domain.SubscriptionStatusExpired).Return(nil)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(true)

	res, err := svc.Sweep(context.Background(), now, sweepGrace)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Revoked)
}

func TestSweep_RowFailureDoesNotAbort(t *testing.T) {
	ctrl := gomock.NewController(t)
	subs := mocks.NewMockSubscriptionRepository(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	svc := NewSweeperService(subs, notifier, logger.New("disabled", false))

	now := time.Now().UTC()
	bad := domain.Subscription{
		ID: uuid.New(), UserID: "u-bad", Plan: "pro",
		Status:           domain.SubscriptionStatusActive,
		CurrentPeriodEnd: now.Add(-30 * 24 * time.Hour),
	}
	good := domain.Subscription{
		ID: uuid.New(), UserID: "u-good", Plan: "pro",
		Status:           domain.SubscriptionStatusActive,
		CurrentPeriodEnd: now.Add(-30 * 24 * time.Hour),
	}

	subs.EXPECT().ListAll(gomock.Any()).Return([]domain.Subscription{bad, good}, nil)
	subs.EXPECT().UpdateStatus(gomock.Any(), bad.ID, gomock.Any()).Return(errors.New("write failed"))
	subs.EXPECT().UpdateStatus(gomock.Any(), good.ID, domain.SubscriptionStatusExpired).Return(nil)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(true)

	res, err := svc.Sweep(context.Background(), now, sweepGrace)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 1, res.Revoked)
}

func TestSweep_ListFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	subs := mocks.NewMockSubscriptionRepository(ctrl)
	svc := NewSweeperService(subs, mocks.NewMockNotifier(ctrl), logger.New("disabled", false))

	subs.EXPECT().ListAll(gomock.Any()).Return(nil, errors.New("db down"))

	_, err := svc.Sweep(context.Background(), time.Now(), sweepGrace)
	assert.Error(t, err)
}
