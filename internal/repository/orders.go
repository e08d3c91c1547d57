package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketline/orders-service/internal/domain"
	"github.com/marketline/orders-service/internal/logger"
)

type ListFilter struct {
	Status string
	Page   int
	Limit  int
}

type OrderRepo interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, f ListFilter) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, reason string) error
}

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateOrder persists the order and its items atomically. The order code
// comes from a dedicated sequence, so concurrent creations never mint the
// same code (gaps are fine, duplicates are not).
func (r *OrderRepository) CreateOrder(ctx context.Context, o *domain.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var seq int64
	if err = tx.QueryRow(ctx, `SELECT nextval('order_code_seq')`).Scan(&seq); err != nil {
		logger.Warn("order code sequence failed", "err", err)
		return err
	}
	o.OrderCode = domain.FormatOrderCode(seq)

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	err = tx.QueryRow(ctx,
		`INSERT INTO orders
			(order_code, customer_id, subtotal, shipping_fee, tax_amount, discount_amount,
			 total_amount, shipping_address, billing_address, payment_method, payment_status,
			 status, created_at, updated_at)
		 VALUES
			($1, $2, $3, $4, $5, $6,
			 $7, $8, $9, $10, $11,
			 $12, $13, $14)
		 RETURNING id
		`, o.OrderCode,
		o.CustomerID,
		o.Subtotal,
		o.ShippingFee,
		o.TaxAmount,
		o.DiscountAmount,
		o.TotalAmount,
		o.ShippingAddress,
		o.BillingAddress,
		o.PaymentMethod,
		o.PaymentStatus,
		o.Status,
		o.CreatedAt,
		o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		logger.Warn("order insert failed", "err", err)
		return err
	}

	batch := &pgx.Batch{}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		it.Status = domain.ItemActive
		it.TotalPrice = it.Quantity * it.UnitPrice
		it.CreatedAt = now
		batch.Queue(`
			INSERT INTO order_items
				(order_id, product_id, quantity, unit_price, total_price, discount, status, created_at)
			VALUES
				($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`,
			it.OrderID,
			it.ProductID,
			it.Quantity,
			it.UnitPrice,
			it.TotalPrice,
			it.Discount,
			it.Status,
			it.CreatedAt,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for i := range o.Items {
		if err = br.QueryRow().Scan(&o.Items[i].ID); err != nil {
			_ = br.Close()
			logger.Warn("order item insert failed", "err", err)
			return err
		}
	}
	if err = br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *OrderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx,
		`SELECT id, order_code, customer_id, subtotal, shipping_fee, tax_amount, discount_amount,
		        total_amount, shipping_address, billing_address, payment_method, payment_status,
		        payment_transaction_id, status, COALESCE(rejection_reason, ''), created_at, updated_at
		 FROM orders WHERE id = $1`, id,
	).Scan(
		&o.ID, &o.OrderCode, &o.CustomerID, &o.Subtotal, &o.ShippingFee, &o.TaxAmount,
		&o.DiscountAmount, &o.TotalAmount, &o.ShippingAddress, &o.BillingAddress,
		&o.PaymentMethod, &o.PaymentStatus, &o.TransactionID, &o.Status,
		&o.RejectionReason, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := r.itemsForOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *OrderRepository) itemsForOrder(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT i.id, i.order_id, i.product_id, i.quantity, i.unit_price, i.total_price,
		        i.discount, i.status, COALESCE(p.name, ''), i.created_at
		 FROM order_items i
		 LEFT JOIN products p ON p.id = i.product_id
		 WHERE i.order_id = $1
		 ORDER BY i.created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice,
			&it.TotalPrice, &it.Discount, &it.Status, &it.ProductName, &it.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, f ListFilter) ([]domain.Order, error) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := `SELECT id, order_code, customer_id, subtotal, shipping_fee, tax_amount, discount_amount,
	                 total_amount, shipping_address, billing_address, payment_method, payment_status,
	                 payment_transaction_id, status, COALESCE(rejection_reason, ''), created_at, updated_at
	          FROM orders WHERE customer_id = $1`
	args := []any{customerID}
	if f.Status != "" {
		query += ` AND status = $2`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.OrderCode, &o.CustomerID, &o.Subtotal, &o.ShippingFee, &o.TaxAmount,
			&o.DiscountAmount, &o.TotalAmount, &o.ShippingAddress, &o.BillingAddress,
			&o.PaymentMethod, &o.PaymentStatus, &o.TransactionID, &o.Status,
			&o.RejectionReason, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := r.itemsForOrder(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, reason string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders
		 SET status = $2,
		     rejection_reason = NULLIF($3, ''),
		     updated_at = now()
		 WHERE id = $1`, id, status, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
