package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotals(t *testing.T) {
	o := &Order{
		Items: []OrderItem{
			{Quantity: 2, UnitPrice: 100000},
		},
	}
	o.ComputeTotals(10000)

	assert.Equal(t, int64(200000), o.Subtotal)
	assert.Equal(t, int64(10000), o.ShippingFee)
	assert.Equal(t, int64(20000), o.TaxAmount)
	assert.Equal(t, int64(230000), o.TotalAmount)
}

func TestComputeTotalsInvariant(t *testing.T) {
	cases := []struct {
		name     string
		items    []OrderItem
		discount int64
	}{
		{"single line", []OrderItem{{Quantity: 1, UnitPrice: 50000}}, 0},
		{"several lines", []OrderItem{{Quantity: 3, UnitPrice: 19990}, {Quantity: 1, UnitPrice: 120000}}, 0},
		{"with discount", []OrderItem{{Quantity: 2, UnitPrice: 75000}}, 5000},
		{"free item", []OrderItem{{Quantity: 4, UnitPrice: 0}}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := &Order{Items: tc.items, DiscountAmount: tc.discount}
			o.ComputeTotals(10000)

			var subtotal int64
			for _, it := range tc.items {
				subtotal += it.Quantity * it.UnitPrice
			}
			require.Equal(t, subtotal, o.Subtotal)
			assert.Equal(t, subtotal/10, o.TaxAmount)
			assert.Equal(t, o.Subtotal+o.ShippingFee+o.TaxAmount-o.DiscountAmount, o.TotalAmount)
		})
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	allowed := []struct {
		from, to OrderStatus
	}{
		{OrderPending, OrderProcessing},
		{OrderPending, OrderRejected},
		{OrderPending, OrderCancelled},
		{OrderProcessing, OrderShipped},
		{OrderProcessing, OrderCancelled},
		{OrderShipped, OrderDelivered},
		{OrderShipped, OrderCancelled},
		{OrderDelivered, OrderDone},
		{OrderDelivered, OrderCancelled},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct {
		from, to OrderStatus
	}{
		{OrderDone, OrderProcessing},
		{OrderDone, OrderCancelled},
		{OrderCancelled, OrderPending},
		{OrderRejected, OrderProcessing},
		{OrderPending, OrderShipped},
		{OrderPending, OrderDone},
		{OrderShipped, OrderProcessing},
		{OrderProcessing, OrderRejected},
	}
	for _, tc := range denied {
		assert.False(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	assert.True(t, PaymentPending.CanTransitionTo(PaymentSuccess))
	assert.True(t, PaymentPending.CanTransitionTo(PaymentFailed))

	// success and failed are final
	for _, from := range []PaymentStatus{PaymentSuccess, PaymentFailed} {
		for _, to := range []PaymentStatus{PaymentPending, PaymentSuccess, PaymentFailed} {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s should be denied", from, to)
		}
	}
	assert.False(t, PaymentPending.CanTransitionTo(PaymentPending))
}

func TestOrderStatusValid(t *testing.T) {
	for _, s := range []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderDone, OrderCancelled, OrderRejected} {
		assert.True(t, s.Valid())
	}
	assert.False(t, OrderStatus("shipped-back").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestFormatOrderCode(t *testing.T) {
	assert.Equal(t, "ORDER-001", FormatOrderCode(1))
	assert.Equal(t, "ORDER-042", FormatOrderCode(42))
	assert.Equal(t, "ORDER-1234", FormatOrderCode(1234))
}
