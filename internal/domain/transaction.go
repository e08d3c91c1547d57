package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Transaction is an immutable record of one gateway outcome. TransactionCode
// is the gateway's transId and is unique, which makes it the dedup key for
// duplicate callback delivery.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"order_id"`
	TransactionCode string          `json:"transaction_code"`
	Amount          int64           `json:"amount"`
	PaymentMethod   string          `json:"payment_method"`
	Gateway         string          `json:"gateway"`
	Status          PaymentStatus   `json:"status"`
	ResponseData    json.RawMessage `json:"response_data,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type Notification struct {
	ID         uuid.UUID       `json:"id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}
