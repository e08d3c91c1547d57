package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/marketline/orders-service/internal/domain"
	"github.com/marketline/orders-service/internal/events"
	"github.com/marketline/orders-service/internal/gateway"
	"github.com/marketline/orders-service/internal/logger"
	"github.com/marketline/orders-service/internal/repository"
)

type GatewayClient interface {
	CreatePaymentRequest(ctx context.Context, orderID string, amount int64) (json.RawMessage, error)
	VerifyCallback(cb *gateway.Callback) error
}

type PaymentsService struct {
	orders   repository.OrderRepo
	payments repository.PaymentRepo
	gw       GatewayClient
	pub      Publisher
}

func NewPaymentsService(orders repository.OrderRepo, payments repository.PaymentRepo, gw GatewayClient, pub Publisher) *PaymentsService {
	return &PaymentsService{orders: orders, payments: payments, gw: gw, pub: pub}
}

// CreatePaymentURL signs a gateway request for an existing pending order. The
// order must be created before the payment URL is requested; the callback
// handler looks the order up by the id the gateway echoes back.
func (s *PaymentsService) CreatePaymentURL(ctx context.Context, orderID uuid.UUID, amount int64) (json.RawMessage, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != domain.PaymentPending {
		return nil, domain.Invalid("payment_status", "order payment already "+string(order.PaymentStatus))
	}
	if amount != order.TotalAmount {
		return nil, domain.Invalid("amount", "does not match order total")
	}
	return s.gw.CreatePaymentRequest(ctx, order.ID.String(), amount)
}

// HandleCallback applies one gateway outcome. All side effects run as one
// database transaction keyed by the gateway transaction code, so duplicate
// delivery is a no-op. Returns whether this delivery was the first.
func (s *PaymentsService) HandleCallback(ctx context.Context, cb *gateway.Callback) (bool, error) {
	if err := s.gw.VerifyCallback(cb); err != nil {
		return false, err
	}
	if cb.TransID == "" {
		return false, domain.Invalid("transId", "is required")
	}
	orderID, err := uuid.Parse(cb.OrderID)
	if err != nil {
		return false, domain.Invalid("orderId", "must be a uuid")
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return false, err
	}

	raw, _ := json.Marshal(cb)
	txn := &domain.Transaction{
		OrderID:         order.ID,
		TransactionCode: cb.TransID,
		Amount:          cb.Amount,
		PaymentMethod:   cb.OrderType,
		Gateway:         gateway.Name,
		ResponseData:    raw,
	}

	var applied bool
	record := s.payments.RecordFailure
	kind := events.PaymentFailed
	txn.Status = domain.PaymentFailed
	if cb.Succeeded() {
		record = s.payments.RecordSuccess
		kind = events.PaymentSucceeded
		txn.Status = domain.PaymentSuccess
	} else {
		logger.Error("gateway reported failed payment",
			"order_code", order.OrderCode, "result_code", cb.ResultCode, "message", cb.Message)
	}

	// Transient storage failures are retried; the dedup key makes that safe.
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(100*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var rerr error
		applied, rerr = record(ctx, txn)
		if rerr != nil && !errors.Is(rerr, domain.ErrOrderNotFound) {
			return retry.RetryableError(rerr)
		}
		return rerr
	})
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	if s.pub != nil {
		if perr := s.pub.Publish(ctx, events.ForOrder(kind, order)); perr != nil {
			logger.Warn("event publish failed", "type", kind, "order_code", order.OrderCode, "err", perr)
		}
	}
	return true, nil
}

type PaymentStatusView struct {
	OrderID       uuid.UUID `json:"orderId,omitempty"`
	TransactionID uuid.UUID `json:"transactionId,omitempty"`
	Status        string    `json:"status"`
	Amount        int64     `json:"amount,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
}

// CheckStatus is a polling view. A missing order or missing linked
// transaction both surface as "draft" rather than an error.
func (s *PaymentsService) CheckStatus(ctx context.Context, orderID uuid.UUID) (*PaymentStatusView, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return &PaymentStatusView{Status: "draft"}, nil
	}
	if err != nil {
		return nil, err
	}

	txn, err := s.payments.TransactionByOrder(ctx, order.ID)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return &PaymentStatusView{Status: "draft"}, nil
	}
	if err != nil {
		return nil, err
	}

	return &PaymentStatusView{
		OrderID:       order.ID,
		TransactionID: txn.ID,
		Status:        string(txn.Status),
		Amount:        txn.Amount,
		PaymentMethod: txn.PaymentMethod,
	}, nil
}
