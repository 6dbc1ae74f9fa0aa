package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"subscription-engine/internal/core/domain"
	"subscription-engine/internal/core/ports"
	"subscription-engine/pkg/apperror"
)

// SubscriptionServiceImpl implements the explicit cancellation flow: a
// gateway termination call followed by an atomic local state change and a
// revoke callback.
type SubscriptionServiceImpl struct {
	subs       ports.SubscriptionRepository
	orders     ports.OrderRepository
	txns       ports.TransactionRepository
	transactor ports.DBTransactor
	gateway    MandateTerminator
	notifier   ports.Notifier
	log        zerolog.Logger
	now        func() time.Time
}

func NewSubscriptionService(
	subs ports.SubscriptionRepository,
	orders ports.OrderRepository,
	txns ports.TransactionRepository,
	transactor ports.DBTransactor,
	gateway MandateTerminator,
	notifier ports.Notifier,
	log zerolog.Logger,
) *SubscriptionServiceImpl {
	return &SubscriptionServiceImpl{
		subs:       subs,
		orders:     orders,
		txns:       txns,
		transactor: transactor,
		gateway:    gateway,
		notifier:   notifier,
		log:        log.With().Str("component", "subscription_service").Logger(),
		now:        time.Now,
	}
}

// Cancel terminates the active subscription for (user, plan). The local
// cancellation is recorded even when the gateway call fails: once we have
// asked the gateway to stop charging, leaving access granted is the worse
// failure mode, and the sweeper reconciles any divergence.
func (s *SubscriptionServiceImpl) Cancel(ctx context.Context, userID, plan string) (*domain.Subscription, error) {
	sub, err := s.subs.GetActiveLineage(ctx, userID, plan)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if sub == nil {
		return nil, apperror.ErrNoActiveSubscription()
	}
	if sub.PeriodToken == nil || *sub.PeriodToken == "" {
		return nil, apperror.ErrNoMandate()
	}

	if err := s.gateway.TerminateMandate(ctx, *sub.PeriodToken); err != nil {
		s.log.Error().Err(err).
			Str("user_id", userID).
			Str("plan", plan).
			Msg("gateway termination failed, recording local cancellation anyway")
	}

	order, err := s.orders.GetLatestPaidByUserPlan(ctx, userID, plan)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	defer tx.Rollback(ctx)

	if err := s.subs.UpdateStatusTx(ctx, tx, sub.ID, domain.SubscriptionStatusCanceled); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	now := s.now().UTC()
	txn := &domain.Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		TxType:    domain.TransactionTypeCancel,
		Status:    domain.TransactionStatusSucceeded,
		CreatedAt: now,
	}
	if order != nil {
		if err := s.orders.UpdateStatusTx(ctx, tx, order.OrderNo, domain.OrderStatusCanceled); err != nil {
			return nil, apperror.ErrDatabaseError(err)
		}
		txn.OrderNo = order.OrderNo
		txn.Amount = order.Amount
		txn.Currency = order.Currency
	}

	detail, _ := json.Marshal(map[string]string{"reason": "user_cancel", "period_no": *sub.PeriodToken})
	txn.RawPayload = detail
	if err := s.txns.CreateTx(ctx, tx, txn); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	sub.Status = domain.SubscriptionStatusCanceled
	sub.UpdatedAt = now

	s.log.Info().Str("user_id", userID).Str("plan", plan).Msg("subscription canceled")

	s.notifier.Notify(ctx, &domain.Notification{
		ID:      uuid.New(),
		Intent:  domain.IntentRevoke,
		UserID:  userID,
		Plan:    plan,
		OrderNo: txn.OrderNo,
		Reason:  "canceled",
	})
	return sub, nil
}
