package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"subscription-engine/internal/core/domain"
)

const orderColumns = `order_no, user_id, plan, period, amount, currency, status,
	trial_start, trial_end, first_charge_date, period_type, period_point,
	period_token, paid_at, created_at, updated_at`

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// Create inserts a new order.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.pool.Exec(ctx, query,
		o.OrderNo, o.UserID, o.Plan, o.Period, o.Amount, o.Currency, o.Status,
		o.TrialStart, o.TrialEnd, o.FirstChargeDate, o.PeriodType, o.PeriodPoint,
		o.PeriodToken, o.PaidAt, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByOrderNo fetches an order by its caller-generated number.
func (r *OrderRepo) GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_no = $1`

	return r.scanOrder(r.pool.QueryRow(ctx, query, orderNo))
}

// GetLatestPaidByUserPlan fetches the most recent paid order for (user, plan).
func (r *OrderRepo) GetLatestPaidByUserPlan(ctx context.Context, userID, plan string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 AND plan = $2 AND status = 'paid'
		ORDER BY created_at DESC LIMIT 1`

	return r.scanOrder(r.pool.QueryRow(ctx, query, userID, plan))
}

// MarkPaid transitions the order to paid, stamping paid_at and the mandate
// id. Repeating with the same values changes nothing observable.
func (r *OrderRepo) MarkPaid(ctx context.Context, orderNo string, paidAt time.Time, periodToken string) error {
	query := `UPDATE orders SET status = 'paid', paid_at = $1, period_token = NULLIF($2, ''), updated_at = $1
		WHERE order_no = $3`

	tag, err := r.pool.Exec(ctx, query, paidAt, periodToken, orderNo)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", orderNo)
	}
	return nil
}

// UpdateStatus updates an order's status.
func (r *OrderRepo) UpdateStatus(ctx context.Context, orderNo string, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE order_no = $3`

	tag, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), orderNo)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", orderNo)
	}
	return nil
}

// UpdateStatusTx updates an order's status within a database transaction.
func (r *OrderRepo) UpdateStatusTx(ctx context.Context, tx pgx.Tx, orderNo string, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE order_no = $3`

	tag, err := tx.Exec(ctx, query, status, time.Now().UTC(), orderNo)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", orderNo)
	}
	return nil
}

func (r *OrderRepo) scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.OrderNo, &o.UserID, &o.Plan, &o.Period, &o.Amount, &o.Currency, &o.Status,
		&o.TrialStart, &o.TrialEnd, &o.FirstChargeDate, &o.PeriodType, &o.PeriodPoint,
		&o.PeriodToken, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}
