package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"subscription-engine/internal/core/domain"
	"subscription-engine/internal/core/ports"
)

// HTTPClient abstracts the HTTP transport so tests can intercept outbound
// calls.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Retry schedule for failed downstream deliveries. After the last interval
// the notification is dead-lettered.
var notifyRetryIntervals = []time.Duration{
	15 * time.Second,
	1 * time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// notifyBody is the callback payload. Field order is fixed because the
// signature is computed over the exact serialized bytes.
type notifyBody struct {
	TS      int64  `json:"ts"`
	Action  string `json:"action"`
	UserID  string `json:"user_id"`
	Plan    string `json:"plan"`
	OrderNo string `json:"order_no,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// HTTPNotifier delivers entitlement callbacks to the downstream consumer
// with an HMAC-SHA256 signature over the body.
type HTTPNotifier struct {
	client  HTTPClient
	url     string
	secret  []byte
	timeout time.Duration
	log     zerolog.Logger
}

func NewHTTPNotifier(client HTTPClient, url, secret string, timeout time.Duration, log zerolog.Logger) *HTTPNotifier {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &HTTPNotifier{
		client:  client,
		url:     url,
		secret:  []byte(secret),
		timeout: timeout,
		log:     log.With().Str("component", "notifier").Logger(),
	}
}

// Notify posts the callback once. Returns true only on a 2xx response.
// A missing URL disables delivery without being treated as a failure.
func (n *HTTPNotifier) Notify(ctx context.Context, notification *domain.Notification) bool {
	if n.url == "" {
		n.log.Debug().Msg("notifier url not configured, skipping delivery")
		return true
	}

	body, err := json.Marshal(notifyBody{
		TS:      time.Now().Unix(),
		Action:  string(notification.Intent),
		UserID:  notification.UserID,
		Plan:    notification.Plan,
		OrderNo: notification.OrderNo,
		Reason:  notification.Reason,
	})
	if err != nil {
		n.log.Error().Err(err).Msg("failed to marshal notification body")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.log.Error().Err(err).Msg("failed to build notification request")
		return false
	}

	mac := hmac.New(sha256.New, n.secret)
	mac.Write(body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
	req.Header.Set("X-Idempotency-Key", notification.IdempotencyKey)

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn().Err(err).
			Str("intent", string(notification.Intent)).
			Str("user_id", notification.UserID).
			Msg("notification delivery failed")
		return false
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.log.Warn().Int("status", resp.StatusCode).
			Str("user_id", notification.UserID).
			Msg("notification rejected by consumer")
		return false
	}
	return true
}

// OutboxNotifier decorates a Notifier with a durable outbox. Every
// notification gets a row; failed inline deliveries are scheduled for the
// dispatcher, so a consumer outage only delays entitlement changes.
type OutboxNotifier struct {
	inner  ports.Notifier
	outbox ports.NotificationRepository
	log    zerolog.Logger
	now    func() time.Time
}

func NewOutboxNotifier(inner ports.Notifier, outbox ports.NotificationRepository, log zerolog.Logger) *OutboxNotifier {
	return &OutboxNotifier{
		inner:  inner,
		outbox: outbox,
		log:    log.With().Str("component", "outbox").Logger(),
		now:    time.Now,
	}
}

func (o *OutboxNotifier) Notify(ctx context.Context, notification *domain.Notification) bool {
	now := o.now().UTC()
	if notification.IdempotencyKey == "" {
		notification.IdempotencyKey = notification.DefaultIdempotencyKey()
	}
	notification.CreatedAt = now
	notification.UpdatedAt = now

	delivered := o.inner.Notify(ctx, notification)
	if delivered {
		notification.Status = domain.NotificationStatusDelivered
		notification.Attempt = 1
	} else {
		notification.Status = domain.NotificationStatusPending
		notification.Attempt = 1
		retryAt := now.Add(notifyRetryIntervals[0])
		notification.NextRetryAt = &retryAt
	}

	if err := o.outbox.Create(ctx, notification); err != nil {
		// The inline attempt already ran; losing the row only loses
		// retries, not the entitlement change itself.
		o.log.Error().Err(err).
			Str("idempotency_key", notification.IdempotencyKey).
			Msg("failed to persist notification outbox row")
	}
	return delivered
}

// Dispatcher drains the outbox in the background, retrying pending
// notifications on the backoff schedule and dead-lettering the rest.
type Dispatcher struct {
	notifier ports.Notifier
	outbox   ports.NotificationRepository
	interval time.Duration
	batch    int
	log      zerolog.Logger
	now      func() time.Time
}

func NewDispatcher(notifier ports.Notifier, outbox ports.NotificationRepository, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		outbox:   outbox,
		interval: 15 * time.Second,
		batch:    50,
		log:      log.With().Str("component", "dispatcher").Logger(),
		now:      time.Now,
	}
}

// Run blocks until ctx is canceled, polling for due notifications.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info().Dur("interval", d.interval).Msg("outbox dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("outbox dispatcher stopped")
			return
		case <-ticker.C:
			d.DrainOnce(ctx)
		}
	}
}

// DrainOnce processes one batch of due notifications.
func (d *Dispatcher) DrainOnce(ctx context.Context) {
	now := d.now().UTC()
	due, err := d.outbox.ListDue(ctx, now, d.batch)
	if err != nil {
		d.log.Error().Err(err).Msg("failed to list due notifications")
		return
	}

	for i := range due {
		n := &due[i]
		delivered := d.notifier.Notify(ctx, n)
		n.Attempt++
		n.UpdatedAt = d.now().UTC()

		switch {
		case delivered:
			n.Status = domain.NotificationStatusDelivered
			n.NextRetryAt = nil
			n.LastError = nil
		case n.Attempt > len(notifyRetryIntervals):
			n.Status = domain.NotificationStatusDead
			n.NextRetryAt = nil
			d.log.Error().
				Str("idempotency_key", n.IdempotencyKey).
				Int("attempts", n.Attempt).
				Msg("notification dead-lettered")
		default:
			retryAt := n.UpdatedAt.Add(notifyRetryIntervals[n.Attempt-1])
			n.NextRetryAt = &retryAt
			lastErr := "delivery failed"
			n.LastError = &lastErr
		}

		if err := d.outbox.Update(ctx, n); err != nil {
			d.log.Error().Err(err).
				Str("idempotency_key", n.IdempotencyKey).
				Msg("failed to update notification")
		}
	}
}
