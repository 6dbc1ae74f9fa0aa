package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"subscription-engine/internal/core/domain"
)

const transactionColumns = `id, order_no, user_id, tx_type, status, amount, currency, auth_code, raw_payload, created_at`

// TransactionRepo implements ports.TransactionRepository. The table is
// append-only; rows are never updated or deleted.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a transaction row.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.OrderNo, t.UserID, t.TxType, t.Status, t.Amount, t.Currency, t.AuthCode, t.RawPayload, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// CreateTx inserts a transaction row within a database transaction.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.OrderNo, t.UserID, t.TxType, t.Status, t.Amount, t.Currency, t.AuthCode, t.RawPayload, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListByOrder returns the monetary history of one order, oldest first.
func (r *TransactionRepo) ListByOrder(ctx context.Context, orderNo string) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE order_no = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, orderNo)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID, &t.OrderNo, &t.UserID, &t.TxType, &t.Status, &t.Amount, &t.Currency, &t.AuthCode, &t.RawPayload, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
