package application

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketline/orders-service/internal/domain"
	"github.com/marketline/orders-service/internal/events"
	"github.com/marketline/orders-service/internal/gateway"
)

// fakePaymentRepo mirrors the real reconciliation unit: transaction-code
// dedup, the payment transition decided by domain.PaymentStatus, and stock
// application gated on that transition.
type fakePaymentRepo struct {
	mu           sync.Mutex
	orders       *fakeOrderRepo
	processed    map[string]*domain.Transaction
	byOrder      map[uuid.UUID]*domain.Transaction
	successCalls int
	failureCalls int
	stockApplied int
}

func newFakePaymentRepo(orders *fakeOrderRepo) *fakePaymentRepo {
	return &fakePaymentRepo{
		orders:    orders,
		processed: make(map[string]*domain.Transaction),
		byOrder:   make(map[uuid.UUID]*domain.Transaction),
	}
}

func (f *fakePaymentRepo) record(txn *domain.Transaction, next domain.PaymentStatus) (bool, error) {
	f.orders.mu.Lock()
	defer f.orders.mu.Unlock()

	order, ok := f.orders.orders[txn.OrderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if _, dup := f.processed[txn.TransactionCode]; dup {
		return false, nil
	}
	txn.ID = uuid.New()
	cp := *txn
	f.processed[txn.TransactionCode] = &cp

	if order.PaymentStatus.CanTransitionTo(next) {
		order.PaymentStatus = next
		order.TransactionID = &cp.ID
		f.byOrder[txn.OrderID] = &cp
		if next == domain.PaymentSuccess {
			f.stockApplied++
		}
	}
	return true, nil
}

func (f *fakePaymentRepo) RecordSuccess(_ context.Context, txn *domain.Transaction) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successCalls++
	return f.record(txn, domain.PaymentSuccess)
}

func (f *fakePaymentRepo) RecordFailure(_ context.Context, txn *domain.Transaction) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failureCalls++
	return f.record(txn, domain.PaymentFailed)
}

func (f *fakePaymentRepo) TransactionByOrder(_ context.Context, orderID uuid.UUID) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byOrder[orderID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

type fakeGateway struct {
	payload    json.RawMessage
	err        error
	lastOrder  string
	lastAmount int64
}

func (f *fakeGateway) CreatePaymentRequest(_ context.Context, orderID string, amount int64) (json.RawMessage, error) {
	f.lastOrder = orderID
	f.lastAmount = amount
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *fakeGateway) VerifyCallback(cb *gateway.Callback) error {
	if cb.Signature == "forged" {
		return domain.ErrBadSignature
	}
	return nil
}

func paymentsFixture(t *testing.T) (*PaymentsService, *fakeOrderRepo, *fakePaymentRepo, *fakePublisher, *domain.Order) {
	t.Helper()
	orders := newFakeOrderRepo()
	payments := newFakePaymentRepo(orders)
	pub := &fakePublisher{}
	gw := &fakeGateway{payload: json.RawMessage(`{"payUrl":"https://gw.example/pay"}`)}
	svc := NewPaymentsService(orders, payments, gw, pub)

	ordersSvc := NewOrdersService(orders, nil, 10000)
	order, err := ordersSvc.Create(context.Background(), uuid.New(), CreateOrderInput{
		Items: []ItemInput{{ProductID: uuid.New(), Quantity: 2, UnitPrice: 100000}},
	})
	require.NoError(t, err)
	return svc, orders, payments, pub, order
}

func successCallback(orderID uuid.UUID) *gateway.Callback {
	return &gateway.Callback{
		PartnerCode: "MOMO",
		OrderID:     orderID.String(),
		Amount:      230000,
		TransID:     "T1",
		ResultCode:  0,
		OrderType:   "momo_wallet",
		Message:     "Successful.",
	}
}

func TestHandleCallbackSuccess(t *testing.T) {
	svc, _, payments, pub, order := paymentsFixture(t)

	applied, err := svc.HandleCallback(context.Background(), successCallback(order.ID))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 1, payments.successCalls)
	assert.Equal(t, 0, payments.failureCalls)

	txn := payments.processed["T1"]
	require.NotNil(t, txn)
	assert.Equal(t, domain.PaymentSuccess, txn.Status)
	assert.Equal(t, order.ID, txn.OrderID)
	assert.Equal(t, int64(230000), txn.Amount)
	assert.Equal(t, gateway.Name, txn.Gateway)

	succeeded := pub.byType(events.PaymentSucceeded)
	require.Len(t, succeeded, 1)
	assert.Equal(t, order.ID, succeeded[0].OrderID)
}

func TestHandleCallbackDuplicateIsNoOp(t *testing.T) {
	svc, _, payments, pub, order := paymentsFixture(t)

	applied, err := svc.HandleCallback(context.Background(), successCallback(order.ID))
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = svc.HandleCallback(context.Background(), successCallback(order.ID))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Len(t, payments.processed, 1)
	assert.Len(t, pub.byType(events.PaymentSucceeded), 1)
}

func TestHandleCallbackFailure(t *testing.T) {
	svc, _, payments, pub, order := paymentsFixture(t)

	cb := successCallback(order.ID)
	cb.ResultCode = 99
	cb.Message = "Transaction denied"

	applied, err := svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 0, payments.successCalls)
	assert.Equal(t, 1, payments.failureCalls)

	txn := payments.processed["T1"]
	require.NotNil(t, txn)
	assert.Equal(t, domain.PaymentFailed, txn.Status)
	assert.Len(t, pub.byType(events.PaymentFailed), 1)
}

// Authorization-only (resultCode 9000) is not a captured payment: the
// transaction is recorded as failed and no stock or cart side effect runs.
func TestHandleCallbackAuthorizedIsNotPaid(t *testing.T) {
	svc, orders, payments, pub, order := paymentsFixture(t)

	cb := successCallback(order.ID)
	cb.ResultCode = 9000

	applied, err := svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 0, payments.successCalls)
	assert.Equal(t, 1, payments.failureCalls)
	assert.Equal(t, 0, payments.stockApplied)

	txn := payments.processed["T1"]
	require.NotNil(t, txn)
	assert.Equal(t, domain.PaymentFailed, txn.Status)
	assert.Len(t, pub.byType(events.PaymentFailed), 1)

	got, err := orders.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, got.PaymentStatus)
}

// A settled order never changes payment status again: later callbacks are
// recorded but apply no order, stock or cart side effect.
func TestHandleCallbackKeepsTerminalPaymentStatus(t *testing.T) {
	svc, orders, payments, _, order := paymentsFixture(t)

	applied, err := svc.HandleCallback(context.Background(), successCallback(order.ID))
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, 1, payments.stockApplied)

	// second success with a fresh transaction code
	cb := successCallback(order.ID)
	cb.TransID = "T2"
	applied, err = svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 1, payments.stockApplied)

	// a late failure does not demote the paid order
	cb = successCallback(order.ID)
	cb.TransID = "T3"
	cb.ResultCode = 99
	_, err = svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)

	got, err := orders.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSuccess, got.PaymentStatus)
	assert.Equal(t, 1, payments.stockApplied)
}

func TestHandleCallbackUnknownOrder(t *testing.T) {
	svc, _, _, _, _ := paymentsFixture(t)

	_, err := svc.HandleCallback(context.Background(), successCallback(uuid.New()))
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestHandleCallbackBadSignature(t *testing.T) {
	svc, _, payments, _, order := paymentsFixture(t)

	cb := successCallback(order.ID)
	cb.Signature = "forged"
	_, err := svc.HandleCallback(context.Background(), cb)
	assert.ErrorIs(t, err, domain.ErrBadSignature)
	assert.Empty(t, payments.processed)
}

func TestHandleCallbackRequiresTransID(t *testing.T) {
	svc, _, _, _, order := paymentsFixture(t)

	cb := successCallback(order.ID)
	cb.TransID = ""
	_, err := svc.HandleCallback(context.Background(), cb)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCreatePaymentURL(t *testing.T) {
	svc, _, _, _, order := paymentsFixture(t)

	payload, err := svc.CreatePaymentURL(context.Background(), order.ID, order.TotalAmount)
	require.NoError(t, err)
	assert.JSONEq(t, `{"payUrl":"https://gw.example/pay"}`, string(payload))
}

func TestCreatePaymentURLAmountMismatch(t *testing.T) {
	svc, _, _, _, order := paymentsFixture(t)

	_, err := svc.CreatePaymentURL(context.Background(), order.ID, order.TotalAmount+1)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCreatePaymentURLUnknownOrder(t *testing.T) {
	svc, _, _, _, _ := paymentsFixture(t)

	_, err := svc.CreatePaymentURL(context.Background(), uuid.New(), 1000)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCreatePaymentURLAlreadyPaid(t *testing.T) {
	svc, _, _, _, order := paymentsFixture(t)

	_, err := svc.HandleCallback(context.Background(), successCallback(order.ID))
	require.NoError(t, err)

	_, err = svc.CreatePaymentURL(context.Background(), order.ID, order.TotalAmount)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCheckStatus(t *testing.T) {
	svc, _, _, _, order := paymentsFixture(t)

	// no transaction yet: polling sees draft
	view, err := svc.CheckStatus(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", view.Status)

	// unknown order: also draft
	view, err = svc.CheckStatus(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "draft", view.Status)

	_, err = svc.HandleCallback(context.Background(), successCallback(order.ID))
	require.NoError(t, err)

	view, err = svc.CheckStatus(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "success", view.Status)
	assert.Equal(t, int64(230000), view.Amount)
	assert.Equal(t, "momo_wallet", view.PaymentMethod)
}
