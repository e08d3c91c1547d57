package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketline/orders-service/internal/domain"
)

type NotificationRepo interface {
	Add(ctx context.Context, n *domain.Notification) error
}

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Add(ctx context.Context, n *domain.Notification) error {
	n.CreatedAt = time.Now().UTC()
	return r.pool.QueryRow(ctx,
		`INSERT INTO notifications (customer_id, kind, payload, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		n.CustomerID, n.Kind, n.Payload, n.CreatedAt,
	).Scan(&n.ID)
}
