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

// processedCacheTTL bounds how long the fast-path cache remembers completed
// fingerprints. The ledger remains the durable layer underneath.
const processedCacheTTL = 24 * time.Hour

// WebhookProcessorService runs the full ingest pipeline for gateway
// deliveries. The contract with the gateway is strict: every decodable
// failure of the payload itself is acknowledged (IGNORED) so the gateway
// stops retrying, and only ledger or state-machine write failures surface
// as errors inviting a retry.
type WebhookProcessorService struct {
	decoder  *FormDecoder
	cipher   ports.CipherService
	verifier ports.Verifier
	orders   ports.OrderRepository
	subs     ports.SubscriptionRepository
	txns     ports.TransactionRepository
	ledger   ports.WebhookEventRepository
	cache    ports.ProcessedCache
	notifier ports.Notifier
	strict   bool
	log      zerolog.Logger
	now      func() time.Time
}

func NewWebhookProcessorService(
	decoder *FormDecoder,
	cipher ports.CipherService,
	verifier ports.Verifier,
	orders ports.OrderRepository,
	subs ports.SubscriptionRepository,
	txns ports.TransactionRepository,
	ledger ports.WebhookEventRepository,
	cache ports.ProcessedCache,
	notifier ports.Notifier,
	strictSignature bool,
	log zerolog.Logger,
) *WebhookProcessorService {
	return &WebhookProcessorService{
		decoder:  decoder,
		cipher:   cipher,
		verifier: verifier,
		orders:   orders,
		subs:     subs,
		txns:     txns,
		ledger:   ledger,
		cache:    cache,
		notifier: notifier,
		strict:   strictSignature,
		log:      log.With().Str("component", "webhook_processor").Logger(),
		now:      time.Now,
	}
}

func (s *WebhookProcessorService) Process(ctx context.Context, body []byte, contentType string) (ports.WebhookOutcome, error) {
	env, err := s.decoder.Decode(body, contentType)
	if err != nil {
		// Non-actionable noise: no ciphertext under any alias.
		s.log.Warn().Err(err).Str("content_type", contentType).
			Int("body_len", len(body)).
			Msg("webhook carried no recognizable payload")
		return ports.OutcomeIgnored, nil
	}

	hash := domain.Fingerprint(env.Ciphertext)
	logger := s.log.With().Str("event_hash", hash).Logger()

	// Layer 1: cache of completed fingerprints. Errors degrade to the
	// ledger check, never block ingestion.
	if done, err := s.cache.IsProcessed(ctx, hash); err != nil {
		logger.Warn().Err(err).Msg("processed cache unavailable, falling through to ledger")
	} else if done {
		logger.Info().Msg("duplicate delivery short-circuited by cache")
		return ports.OutcomeOK, nil
	}

	// Layer 2: ledger upsert, before any decryption attempt. This is the
	// serialization point for concurrent duplicate deliveries.
	event := &domain.WebhookEvent{
		EventHash:   hash,
		EventSource: domain.EventSourcePeriod,
		RawEnc:      env.Ciphertext,
		Signature:   env.Signature,
	}
	claim, err := s.ledger.RecordAttempt(ctx, event)
	if err != nil {
		logger.Error().Err(err).Msg("idempotency ledger unavailable")
		return "", apperror.ErrLedgerUnavailable(err)
	}
	switch claim {
	case ports.ClaimDone:
		logger.Info().Msg("duplicate delivery short-circuited by ledger")
		s.markProcessedCache(ctx, hash, logger)
		return ports.OutcomeOK, nil
	case ports.ClaimHeld:
		logger.Info().Msg("concurrent delivery holds the claim, deferring to redelivery")
		return "", apperror.ErrEventInFlight()
	}

	// Advisory authenticity check. A mismatch is recorded loudly; it only
	// rejects the delivery in strict mode.
	providedSig := ""
	if env.Signature != nil {
		providedSig = *env.Signature
	}
	switch s.verifier.Verify(env.Ciphertext, providedSig) {
	case ports.VerifyFail:
		logger.Warn().Bool("strict", s.strict).Msg("signature verification failed")
		if s.strict {
			// Definitively handled: the signature will not change on
			// redelivery.
			s.storeDiagnostics(ctx, hash, map[string]any{
				"decrypt_ok": false,
				"rejected":   "signature_mismatch",
			}, logger)
			return s.finish(ctx, hash, ports.OutcomeIgnored, logger)
		}
	case ports.VerifySkipped:
		logger.Debug().Msg("no signature provided, verification skipped")
	}

	res, err := s.cipher.Decrypt(env.Ciphertext)
	if err != nil {
		// Undecodable with current key material. Acknowledged so the
		// gateway stops retrying, but left unprocessed: a later identical
		// delivery after a key fix may still decode and run.
		logger.Warn().Err(err).Msg("ciphertext could not be decrypted")
		s.storeDiagnostics(ctx, hash, decryptDiagnostics(env.Ciphertext, err), logger)
		return ports.OutcomeIgnored, nil
	}

	payload := ParseResultPayload(res.Plaintext)
	s.storePayload(ctx, hash, payload, res, logger)

	orderNo, ok := payload.OrderNo()
	if !ok {
		logger.Warn().Msg("decrypted payload carries no order identifier")
		return s.finish(ctx, hash, ports.OutcomeIgnored, logger)
	}
	logger = logger.With().Str("order_no", orderNo).Logger()

	outcome, err := s.applyTransition(ctx, orderNo, payload, logger)
	if err != nil {
		return "", err
	}
	return s.finish(ctx, hash, outcome, logger)
}

// finish marks the ledger row processed and mirrors it into the cache.
// Failing to persist the processed flag invites a retry, because the state
// machine already ran and the ledger must not claim otherwise forever.
func (s *WebhookProcessorService) finish(ctx context.Context, hash string, outcome ports.WebhookOutcome, logger zerolog.Logger) (ports.WebhookOutcome, error) {
	if err := s.ledger.MarkProcessed(ctx, hash); err != nil {
		logger.Error().Err(err).Msg("failed to mark ledger entry processed")
		return "", apperror.ErrLedgerUnavailable(err)
	}
	s.markProcessedCache(ctx, hash, logger)
	return outcome, nil
}

func (s *WebhookProcessorService) markProcessedCache(ctx context.Context, hash string, logger zerolog.Logger) {
	if err := s.cache.MarkProcessed(ctx, hash, processedCacheTTL); err != nil {
		logger.Warn().Err(err).Msg("failed to mark fingerprint in processed cache")
	}
}

func (s *WebhookProcessorService) storeDiagnostics(ctx context.Context, hash string, diag map[string]any, logger zerolog.Logger) {
	b, err := json.Marshal(diag)
	if err != nil {
		return
	}
	if err := s.ledger.UpdatePayload(ctx, hash, b); err != nil {
		logger.Warn().Err(err).Msg("failed to store ledger diagnostics")
	}
}

func (s *WebhookProcessorService) storePayload(ctx context.Context, hash string, payload domain.ResultPayload, res *ports.DecryptResult, logger zerolog.Logger) {
	stored := map[string]any{
		"decrypt_ok": true,
		"enc_fmt":    res.Encoding,
		"pad_mode":   res.Padding,
	}
	for k, v := range payload {
		stored[k] = v
	}
	s.storeDiagnostics(ctx, hash, stored, logger)
}

// decryptDiagnostics captures enough shape information to debug a decode
// failure without persisting the full ciphertext twice.
func decryptDiagnostics(ciphertext string, err error) map[string]any {
	head := ciphertext
	if len(head) > 16 {
		head = head[:16]
	}
	return map[string]any{
		"decrypt_ok": false,
		"error":      err.Error(),
		"enc_len":    len(ciphertext),
		"enc_is_hex": len(ciphertext)%2 == 0 && strictHexRe.MatchString(ciphertext),
		"enc_head":   head,
	}
}

// applyTransition runs the order/subscription state machine for a decoded
// result. Returned errors are storage failures and invite a gateway retry;
// business-rule rejections return IGNORED.
func (s *WebhookProcessorService) applyTransition(ctx context.Context, orderNo string, payload domain.ResultPayload, logger zerolog.Logger) (ports.WebhookOutcome, error) {
	order, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return "", apperror.ErrDatabaseError(err)
	}
	if order == nil {
		logger.Warn().Msg("webhook references unknown order")
		return ports.OutcomeIgnored, nil
	}

	if payload.IsSuccess() {
		return s.applySuccess(ctx, order, payload, logger)
	}
	return s.applyFailure(ctx, order, payload, logger)
}

func (s *WebhookProcessorService) applySuccess(ctx context.Context, order *domain.Order, payload domain.ResultPayload, logger zerolog.Logger) (ports.WebhookOutcome, error) {
	resume := order.Status == domain.OrderStatusPaid
	if !resume && !order.CanTransition(domain.OrderStatusPaid) {
		logger.Warn().Str("status", string(order.Status)).
			Msg("ignoring success event for terminal order")
		return ports.OutcomeIgnored, nil
	}

	now := s.now().UTC()
	token, _ := payload.PeriodToken()

	if resume {
		// An earlier delivery may have failed between marking the order
		// paid and finishing the downstream writes; the ledger row only
		// flips to processed after all of them. Re-run the remainder with
		// the values recorded at payment time so every derived row comes
		// out identical.
		logger.Info().Msg("order already paid, resuming unfinished steps")
		if order.PaidAt != nil {
			now = *order.PaidAt
		}
		if token == "" && order.PeriodToken != nil {
			token = *order.PeriodToken
		}
	} else if err := s.orders.MarkPaid(ctx, order.OrderNo, now, token); err != nil {
		return "", apperror.ErrDatabaseError(err)
	}

	sub := s.buildSubscription(order, token, now)
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return "", apperror.ErrDatabaseError(err)
	}

	if err := s.recordInitialTransaction(ctx, order, payload, now, domain.TransactionStatusSucceeded, resume); err != nil {
		return "", apperror.ErrDatabaseError(err)
	}

	logger.Info().Str("user_id", order.UserID).Str("plan", order.Plan).
		Msg("order paid, subscription granted")

	// Best effort: delivery failures land in the outbox, never fail
	// ingestion.
	s.notifier.Notify(ctx, &domain.Notification{
		ID:      uuid.New(),
		Intent:  domain.IntentGrant,
		UserID:  order.UserID,
		Plan:    order.Plan,
		OrderNo: order.OrderNo,
	})
	return ports.OutcomeOK, nil
}

func (s *WebhookProcessorService) applyFailure(ctx context.Context, order *domain.Order, payload domain.ResultPayload, logger zerolog.Logger) (ports.WebhookOutcome, error) {
	resume := order.Status == domain.OrderStatusFailed
	if !resume && !order.CanTransition(domain.OrderStatusFailed) {
		// An out-of-order failure must never claw back a paid order.
		logger.Warn().Str("status", string(order.Status)).
			Msg("ignoring failure event for non-pending order")
		return ports.OutcomeIgnored, nil
	}

	if resume {
		logger.Info().Msg("order already failed, resuming unfinished steps")
	} else if err := s.orders.UpdateStatus(ctx, order.OrderNo, domain.OrderStatusFailed); err != nil {
		return "", apperror.ErrDatabaseError(err)
	}

	if err := s.recordInitialTransaction(ctx, order, payload, s.now().UTC(), domain.TransactionStatusFailed, resume); err != nil {
		return "", apperror.ErrDatabaseError(err)
	}

	logger.Info().Msg("order marked failed")
	return ports.OutcomeOK, nil
}

// buildSubscription constructs the active-lineage row for a freshly paid
// order. The current period covers the trial when one is configured,
// otherwise it starts now and runs to the first scheduled charge.
// recordInitialTransaction appends the initial monetary event. On a resumed
// delivery the row may already exist from the interrupted run, so the insert
// is skipped when an initial transaction is on record for the order.
func (s *WebhookProcessorService) recordInitialTransaction(ctx context.Context, order *domain.Order, payload domain.ResultPayload, now time.Time, status domain.TransactionStatus, resume bool) error {
	if resume {
		existing, err := s.txns.ListByOrder(ctx, order.OrderNo)
		if err != nil {
			return err
		}
		for _, tx := range existing {
			if tx.TxType == domain.TransactionTypeInitial {
				return nil
			}
		}
	}

	raw, _ := json.Marshal(payload)
	txn := &domain.Transaction{
		ID:         uuid.New(),
		OrderNo:    order.OrderNo,
		UserID:     order.UserID,
		TxType:     domain.TransactionTypeInitial,
		Status:     status,
		Amount:     order.Amount,
		Currency:   order.Currency,
		RawPayload: raw,
		CreatedAt:  now,
	}
	if code, ok := payload.AuthCode(); ok {
		txn.AuthCode = &code
	}
	return s.txns.Create(ctx, txn)
}

func (s *WebhookProcessorService) buildSubscription(order *domain.Order, token string, now time.Time) *domain.Subscription {
	periodStart := now
	if order.TrialStart != nil {
		periodStart = *order.TrialStart
	}
	periodEnd := now
	switch {
	case order.TrialEnd != nil:
		periodEnd = *order.TrialEnd
	case order.FirstChargeDate != nil:
		periodEnd = *order.FirstChargeDate
	}

	sub := &domain.Subscription{
		ID:                 uuid.New(),
		UserID:             order.UserID,
		Plan:               order.Plan,
		Period:             order.Period,
		Status:             domain.SubscriptionStatusTrialing,
		TrialStart:         order.TrialStart,
		TrialEnd:           order.TrialEnd,
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if order.TrialEnd == nil {
		sub.Status = domain.SubscriptionStatusActive
	}
	if token != "" {
		sub.PeriodToken = &token
	}
	return sub
}
