package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderDone       OrderStatus = "done"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRejected   OrderStatus = "rejected"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// CanTransitionTo reports whether a payment status change is permitted.
// pending is the only non-terminal payment state; success and failed stay
// as they are once reached.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == PaymentPending && (next == PaymentSuccess || next == PaymentFailed)
}

// transitions is the closed fulfillment table. done, cancelled and rejected
// are terminal; cancelled is reachable from every non-terminal state.
var transitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderRejected, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered, OrderCancelled},
	OrderDelivered:  {OrderDone, OrderCancelled},
	OrderDone:       {},
	OrderCancelled:  {},
	OrderRejected:   {},
}

func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order money fields are int64 minor currency units.
type Order struct {
	ID              uuid.UUID     `json:"id"`
	OrderCode       string        `json:"order_code"`
	CustomerID      uuid.UUID     `json:"customer_id"`
	Subtotal        int64         `json:"subtotal"`
	ShippingFee     int64         `json:"shipping_fee"`
	TaxAmount       int64         `json:"tax_amount"`
	DiscountAmount  int64         `json:"discount_amount"`
	TotalAmount     int64         `json:"total_amount"`
	ShippingAddress Address       `json:"shipping_address"`
	BillingAddress  Address       `json:"billing_address"`
	PaymentMethod   string        `json:"payment_method"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	TransactionID   *uuid.UUID    `json:"payment_transaction_id,omitempty"`
	Status          OrderStatus   `json:"status"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	Items           []OrderItem   `json:"items,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type ItemStatus string

const (
	ItemActive    ItemStatus = "active"
	ItemCancelled ItemStatus = "cancelled"
)

type OrderItem struct {
	ID         uuid.UUID  `json:"id"`
	OrderID    uuid.UUID  `json:"order_id"`
	ProductID  uuid.UUID  `json:"product_id"`
	Quantity   int64      `json:"quantity"`
	UnitPrice  int64      `json:"unit_price"`
	TotalPrice int64      `json:"total_price"`
	Discount   int64      `json:"discount"`
	Status     ItemStatus `json:"status"`
	// ProductName is resolved from the products table on reads.
	ProductName string    `json:"product_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ComputeTotals fills the monetary breakdown from the item lines. Tax is a
// flat 10% of the subtotal; amounts stay exact because money is integral.
func (o *Order) ComputeTotals(shippingFee int64) {
	var subtotal int64
	for _, it := range o.Items {
		subtotal += it.Quantity * it.UnitPrice
	}
	o.Subtotal = subtotal
	o.ShippingFee = shippingFee
	o.TaxAmount = subtotal / 10
	o.TotalAmount = o.Subtotal + o.ShippingFee + o.TaxAmount - o.DiscountAmount
}

// FormatOrderCode renders the nth sequence value as a human-readable code.
func FormatOrderCode(n int64) string {
	return fmt.Sprintf("ORDER-%03d", n)
}
