package domain

import (
	"errors"
	"fmt"
)

const (
	MsgBodyRequired  = "Request body is required"
	MsgCustomerID    = "customerId is required and must be a string"
	MsgCustomerEmail = "customerEmail is required and must be a string"
	MsgItems         = "items is required and must be a non-empty array"
	MsgProductID     = "Each item must have a valid productId"
	MsgProductName   = "Each item must have a valid productName"
	MsgQuantity      = "Each item must have a valid quantity (positive number)"
	MsgPrice         = "Each item must have a valid price (non-negative number)"
	MsgTotalOverflow = "Order total exceeds the supported amount"
)

var (
	ErrNotFound  = errors.New("order_not_found")
	ErrInvalidID = errors.New("invalid_order_id")
)

// ValidationError names the first request field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// PublishError means the order was persisted but its event was not placed
// on the bus. The reconciler republishes such orders later.
type PublishError struct {
	OrderID string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish order %s: %v", e.OrderID, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
