package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"subscription-engine/internal/core/domain"
	"subscription-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Order Repo ---

type inMemoryOrderRepo struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func newInMemoryOrderRepo() *inMemoryOrderRepo {
	return &inMemoryOrderRepo{orders: make(map[string]*domain.Order)}
}

func (r *inMemoryOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.OrderNo]; ok {
		return fmt.Errorf("order number already exists")
	}
	cp := *o
	r.orders[o.OrderNo] = &cp
	return nil
}

func (r *inMemoryOrderRepo) GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[orderNo]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *inMemoryOrderRepo) MarkPaid(ctx context.Context, orderNo string, paidAt time.Time, periodToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderNo]
	if !ok {
		return fmt.Errorf("order not found")
	}
	o.Status = domain.OrderStatusPaid
	o.PaidAt = &paidAt
	if periodToken != "" {
		o.PeriodToken = &periodToken
	}
	o.UpdatedAt = paidAt
	return nil
}

func (r *inMemoryOrderRepo) UpdateStatus(ctx context.Context, orderNo string, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderNo]
	if !ok {
		return fmt.Errorf("order not found")
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryOrderRepo) UpdateStatusTx(ctx context.Context, tx pgx.Tx, orderNo string, status domain.OrderStatus) error {
	return r.UpdateStatus(ctx, orderNo, status)
}

func (r *inMemoryOrderRepo) GetLatestPaidByUserPlan(ctx context.Context, userID, plan string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var candidates []*domain.Order
	for _, o := range r.orders {
		if o.UserID == userID && o.Plan == plan && o.Status == domain.OrderStatusPaid {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	cp := *candidates[0]
	return &cp, nil
}

// --- In-Memory Subscription Repo ---

type inMemorySubscriptionRepo struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*domain.Subscription
}

func newInMemorySubscriptionRepo() *inMemorySubscriptionRepo {
	return &inMemorySubscriptionRepo{subs: make(map[uuid.UUID]*domain.Subscription)}
}

func (r *inMemorySubscriptionRepo) GetActiveLineage(ctx context.Context, userID, plan string) (*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeLineageLocked(userID, plan), nil
}

func (r *inMemorySubscriptionRepo) activeLineageLocked(userID, plan string) *domain.Subscription {
	for _, s := range r.subs {
		if s.UserID == userID && s.Plan == plan && s.IsActiveLineage() {
			cp := *s
			return &cp
		}
	}
	return nil
}

func (r *inMemorySubscriptionRepo) Upsert(ctx context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Mirror the partial-unique-index upsert: an existing active-lineage
	// row for (user, plan) is updated in place and keeps its id.
	for _, s := range r.subs {
		if s.UserID == sub.UserID && s.Plan == sub.Plan && s.IsActiveLineage() {
			sub.ID = s.ID
			cp := *sub
			r.subs[s.ID] = &cp
			return nil
		}
	}
	cp := *sub
	r.subs[sub.ID] = &cp
	return nil
}

func (r *inMemorySubscriptionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return fmt.Errorf("subscription not found")
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	return nil
}

func (r *inMemorySubscriptionRepo) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.SubscriptionStatus) error {
	return r.UpdateStatus(ctx, id, status)
}

func (r *inMemorySubscriptionRepo) ListAll(ctx context.Context) ([]domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, *s)
	}
	return out, nil
}

// --- In-Memory Webhook Event Repo (idempotency ledger) ---

type inMemoryWebhookEventRepo struct {
	mu     sync.Mutex
	events map[string]*domain.WebhookEvent
}

func newInMemoryWebhookEventRepo() *inMemoryWebhookEventRepo {
	return &inMemoryWebhookEventRepo{events: make(map[string]*domain.WebhookEvent)}
}

const claimLease = 2 * time.Minute

func (r *inMemoryWebhookEventRepo) RecordAttempt(ctx context.Context, event *domain.WebhookEvent) (ports.ClaimOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if existing, ok := r.events[event.EventHash]; ok {
		if existing.Processed {
			return ports.ClaimDone, nil
		}
		if existing.UpdatedAt != nil && existing.UpdatedAt.After(now.Add(-claimLease)) {
			return ports.ClaimHeld, nil
		}
		existing.UpdatedAt = &now
		return ports.ClaimWon, nil
	}
	cp := *event
	cp.CreatedAt = now
	cp.UpdatedAt = &now
	r.events[event.EventHash] = &cp
	return ports.ClaimWon, nil
}

func (r *inMemoryWebhookEventRepo) UpdatePayload(ctx context.Context, eventHash string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventHash]
	if !ok {
		return fmt.Errorf("event not found")
	}
	e.Payload = payload
	return nil
}

func (r *inMemoryWebhookEventRepo) MarkProcessed(ctx context.Context, eventHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventHash]
	if !ok {
		return fmt.Errorf("event not found")
	}
	e.Processed = true
	return nil
}

func (r *inMemoryWebhookEventRepo) Get(ctx context.Context, eventHash string) (*domain.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventHash]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{transactions: make(map[uuid.UUID]*domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, txn *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *txn
	r.transactions[txn.ID] = &cp
	return nil
}

func (r *inMemoryTransactionRepo) CreateTx(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	return r.Create(ctx, txn)
}

func (r *inMemoryTransactionRepo) ListByOrder(ctx context.Context, orderNo string) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Transaction
	for _, t := range r.transactions {
		if t.OrderNo == orderNo {
			out = append(out, *t)
		}
	}
	return out, nil
}

// --- In-Memory Notification Repo (outbox) ---

type inMemoryNotificationRepo struct {
	mu    sync.RWMutex
	notes map[uuid.UUID]*domain.Notification
}

func newInMemoryNotificationRepo() *inMemoryNotificationRepo {
	return &inMemoryNotificationRepo{notes: make(map[uuid.UUID]*domain.Notification)}
}

func (r *inMemoryNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.notes[n.ID] = &cp
	return nil
}

func (r *inMemoryNotificationRepo) Update(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[n.ID]; !ok {
		return fmt.Errorf("notification not found")
	}
	cp := *n
	r.notes[n.ID] = &cp
	return nil
}

func (r *inMemoryNotificationRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Notification
	for _, n := range r.notes {
		if n.Status != domain.NotificationStatusPending {
			continue
		}
		if n.NextRetryAt != nil && n.NextRetryAt.After(now) {
			continue
		}
		out = append(out, *n)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *inMemoryNotificationRepo) byIntent(intent domain.NotificationIntent) []domain.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Notification
	for _, n := range r.notes {
		if n.Intent == intent {
			out = append(out, *n)
		}
	}
	return out
}

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu   sync.Mutex
	logs []domain.AuditLog
}

func newInMemoryAuditRepo() *inMemoryAuditRepo {
	return &inMemoryAuditRepo{}
}

func (r *inMemoryAuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
