package application

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/marketline/orders-service/internal/domain"
	"github.com/marketline/orders-service/internal/events"
	"github.com/marketline/orders-service/internal/logger"
	"github.com/marketline/orders-service/internal/repository"
)

type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type ItemInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
	Discount  int64     `json:"discount"`
}

type CreateOrderInput struct {
	Items           []ItemInput    `json:"items"`
	ShippingAddress domain.Address `json:"shipping_address"`
	BillingAddress  domain.Address `json:"billing_address"`
	PaymentMethod   string         `json:"payment_method"`
}

type OrdersService struct {
	repo        repository.OrderRepo
	pub         Publisher
	shippingFee int64
}

func NewOrdersService(r repository.OrderRepo, pub Publisher, shippingFee int64) *OrdersService {
	return &OrdersService{repo: r, pub: pub, shippingFee: shippingFee}
}

func (s *OrdersService) Create(ctx context.Context, customerID uuid.UUID, in CreateOrderInput) (*domain.Order, error) {
	if customerID == uuid.Nil {
		return nil, domain.Invalid("customer_id", "is required")
	}
	if len(in.Items) == 0 {
		return nil, domain.Invalid("items", "must not be empty")
	}
	for i, it := range in.Items {
		if it.ProductID == uuid.Nil {
			return nil, domain.Invalid("items", "product_id is required at index "+strconv.Itoa(i))
		}
		if it.Quantity < 1 {
			return nil, domain.Invalid("items", "quantity must be >= 1 at index "+strconv.Itoa(i))
		}
		if it.UnitPrice < 0 {
			return nil, domain.Invalid("items", "unit_price must be >= 0 at index "+strconv.Itoa(i))
		}
		if it.Discount < 0 {
			return nil, domain.Invalid("items", "discount must be >= 0 at index "+strconv.Itoa(i))
		}
	}

	order := &domain.Order{
		CustomerID:      customerID,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   domain.PaymentPending,
		Status:          domain.OrderPending,
	}
	for _, it := range in.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Discount:  it.Discount,
		})
	}
	order.ComputeTotals(s.shippingFee)

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		logger.Warn("order create failed", "err", err)
		return nil, err
	}

	s.publish(ctx, events.OrderCreated, order)
	return order, nil
}

func (s *OrdersService) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.repo.GetOrderByID(ctx, id)
}

func (s *OrdersService) ListByCustomer(ctx context.Context, customerID uuid.UUID, f repository.ListFilter) ([]domain.Order, error) {
	return s.repo.ListByCustomer(ctx, customerID, f)
}

// UpdateStatus enforces the fulfillment transition table. Any status not
// reachable from the current one is rejected, so terminal states stay final.
func (s *OrdersService) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus, reason string) (*domain.Order, error) {
	if !next.Valid() {
		return nil, domain.Invalid("status", "unknown status "+string(next))
	}
	if next == domain.OrderRejected && reason == "" {
		return nil, domain.Invalid("rejection_reason", "is required when rejecting")
	}

	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, domain.ErrInvalidTransition
	}

	if err := s.repo.UpdateOrderStatus(ctx, id, next, reason); err != nil {
		return nil, err
	}
	order.Status = next
	order.RejectionReason = reason

	s.publish(ctx, events.OrderStatusChanged, order)
	return order, nil
}

// publish is advisory: the database is the source of truth and a broker
// outage must not fail the request.
func (s *OrdersService) publish(ctx context.Context, kind string, o *domain.Order) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, events.ForOrder(kind, o)); err != nil {
		logger.Warn("event publish failed", "type", kind, "order_code", o.OrderCode, "err", err)
	}
}
