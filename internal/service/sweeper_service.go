package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"subscription-engine/internal/core/domain"
	"subscription-engine/internal/core/ports"
	"subscription-engine/pkg/apperror"
)

// SweeperService is the reconciliation pass: it revokes access for every
// subscription that is no longer in an active-lineage status or whose paid
// period, extended by the grace window, has lapsed. Webhook loss therefore
// degrades to delayed revocation, never to indefinite free access.
type SweeperService struct {
	subs     ports.SubscriptionRepository
	notifier ports.Notifier
	log      zerolog.Logger
}

func NewSweeperService(subs ports.SubscriptionRepository, notifier ports.Notifier, log zerolog.Logger) *SweeperService {
	return &SweeperService{
		subs:     subs,
		notifier: notifier,
		log:      log.With().Str("component", "sweeper").Logger(),
	}
}

func (s *SweeperService) Sweep(ctx context.Context, now time.Time, grace time.Duration) (ports.SweepResult, error) {
	subs, err := s.subs.ListAll(ctx)
	if err != nil {
		return ports.SweepResult{}, apperror.ErrDatabaseError(err)
	}

	var res ports.SweepResult
	for i := range subs {
		sub := &subs[i]
		res.Checked++
		if sub.ShouldKeep(now, grace) {
			continue
		}

		reason := sub.RevokeReason()
		if sub.IsActiveLineage() {
			// Lapsed past the grace window without a cancellation.
			if err := s.subs.UpdateStatus(ctx, sub.ID, domain.SubscriptionStatusExpired); err != nil {
				// One bad row must not abort the rest of the pass.
				s.log.Error().Err(err).
					Str("user_id", sub.UserID).
					Str("plan", sub.Plan).
					Msg("failed to expire lapsed subscription")
				continue
			}
		}

		s.log.Info().
			Str("user_id", sub.UserID).
			Str("plan", sub.Plan).
			Str("reason", reason).
			Time("period_end", sub.CurrentPeriodEnd).
			Msg("revoking access")

		// Durable via the outbox; non-delivery never aborts the sweep.
		s.notifier.Notify(ctx, &domain.Notification{
			ID:     uuid.New(),
			Intent: domain.IntentRevoke,
			UserID: sub.UserID,
			Plan:   sub.Plan,
			Reason: reason,
		})
		res.Revoked++
	}

	s.log.Info().Int("checked", res.Checked).Int("revoked", res.Revoked).Msg("sweep completed")
	return res, nil
}
