package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketline/orders-service/internal/domain"
	"github.com/marketline/orders-service/internal/logger"
)

type PaymentRepo interface {
	// RecordSuccess applies a successful gateway outcome as one unit:
	// transaction insert, order payment update, stock decrement, cart clear.
	// Returns false when the transaction code was already processed.
	RecordSuccess(ctx context.Context, txn *domain.Transaction) (bool, error)
	// RecordFailure records a failed outcome and marks the order failed.
	RecordFailure(ctx context.Context, txn *domain.Transaction) (bool, error)
	TransactionByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Transaction, error)
}

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// insertTransaction relies on the unique constraint on transaction_code: a
// duplicate callback inserts nothing, and the caller skips every side effect.
func insertTransaction(ctx context.Context, tx pgx.Tx, t *domain.Transaction) (bool, error) {
	t.CreatedAt = time.Now().UTC()
	err := tx.QueryRow(ctx,
		`INSERT INTO transactions
			(order_id, transaction_code, amount, payment_method, gateway, status, response_data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (transaction_code) DO NOTHING
		 RETURNING id`,
		t.OrderID, t.TransactionCode, t.Amount, t.PaymentMethod, t.Gateway,
		t.Status, t.ResponseData, t.CreatedAt,
	).Scan(&t.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *PaymentRepository) RecordSuccess(ctx context.Context, txn *domain.Transaction) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	// The row lock keeps the status read stable until commit, so the
	// transition decision can live in domain code instead of a WHERE clause.
	var customerID uuid.UUID
	var current domain.PaymentStatus
	err = tx.QueryRow(ctx,
		`SELECT customer_id, payment_status FROM orders WHERE id = $1 FOR UPDATE`, txn.OrderID,
	).Scan(&customerID, &current)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, domain.ErrOrderNotFound
	}
	if err != nil {
		return false, err
	}

	inserted, err := insertTransaction(ctx, tx, txn)
	if err != nil {
		return false, err
	}
	if !inserted {
		logger.Info("duplicate callback skipped", "transaction_code", txn.TransactionCode)
		return false, nil
	}

	// Terminal payment status is never overwritten. If the order already left
	// pending, keep the transaction record but skip inventory and cart.
	if current.CanTransitionTo(domain.PaymentSuccess) {
		if _, err = tx.Exec(ctx,
			`UPDATE orders
			 SET payment_status = $2,
			     payment_method = $3,
			     payment_transaction_id = $4,
			     updated_at = now()
			 WHERE id = $1`,
			txn.OrderID, domain.PaymentSuccess, txn.Gateway, txn.ID); err != nil {
			return false, err
		}

		// Single-statement counter updates, no read-modify-write: concurrent
		// reconciliations of different orders cannot lose increments.
		if _, err = tx.Exec(ctx,
			`UPDATE products p
			 SET stock = p.stock - i.quantity,
			     quantity_sold = p.quantity_sold + i.quantity
			 FROM order_items i
			 WHERE i.order_id = $1 AND i.product_id = p.id`,
			txn.OrderID); err != nil {
			return false, err
		}

		if _, err = tx.Exec(ctx,
			`DELETE FROM customer_items WHERE customer_id = $1 AND type = 'cart'`,
			customerID); err != nil {
			return false, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *PaymentRepository) RecordFailure(ctx context.Context, txn *domain.Transaction) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var current domain.PaymentStatus
	err = tx.QueryRow(ctx,
		`SELECT payment_status FROM orders WHERE id = $1 FOR UPDATE`, txn.OrderID,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, domain.ErrOrderNotFound
	}
	if err != nil {
		return false, err
	}

	inserted, err := insertTransaction(ctx, tx, txn)
	if err != nil {
		return false, err
	}
	if !inserted {
		logger.Info("duplicate callback skipped", "transaction_code", txn.TransactionCode)
		return false, nil
	}

	if current.CanTransitionTo(domain.PaymentFailed) {
		if _, err = tx.Exec(ctx,
			`UPDATE orders
			 SET payment_status = $2,
			     payment_method = $3,
			     payment_transaction_id = $4,
			     updated_at = now()
			 WHERE id = $1`,
			txn.OrderID, domain.PaymentFailed, txn.Gateway, txn.ID); err != nil {
			return false, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *PaymentRepository) TransactionByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Transaction, error) {
	var t domain.Transaction
	err := r.pool.QueryRow(ctx,
		`SELECT t.id, t.order_id, t.transaction_code, t.amount, t.payment_method,
		        t.gateway, t.status, t.response_data, t.created_at
		 FROM transactions t
		 JOIN orders o ON o.payment_transaction_id = t.id
		 WHERE o.id = $1`, orderID,
	).Scan(
		&t.ID, &t.OrderID, &t.TransactionCode, &t.Amount, &t.PaymentMethod,
		&t.Gateway, &t.Status, &t.ResponseData, &t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
