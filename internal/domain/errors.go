package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrGateway             = errors.New("payment gateway error")
	ErrGatewayTimeout      = errors.New("payment gateway timeout")
	ErrBadSignature        = errors.New("callback signature mismatch")
)

// ValidationError reports malformed client input. The field name is kept so
// handlers can surface which part of the payload was rejected.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}
