package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports an envelope that can never be processed.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return "invalid envelope: " + e.Reason
	}
	return fmt.Sprintf("invalid envelope: %s %s", e.Field, e.Reason)
}

// Parse decodes and validates an envelope body.
func Parse(body []byte) (Envelope, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Envelope{}, &ParseError{Reason: "body is empty"}
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, &ParseError{Reason: err.Error()}
	}

	if env.EventType != EventOrderCreated {
		return Envelope{}, &ParseError{Field: "eventType", Reason: fmt.Sprintf("unsupported value %q", env.EventType)}
	}
	if strings.TrimSpace(env.Order.OrderID) == "" {
		return Envelope{}, &ParseError{Field: "order.orderId", Reason: "is required"}
	}
	if len(env.Order.Items) == 0 {
		return Envelope{}, &ParseError{Field: "order.items", Reason: "is empty"}
	}
	for i, item := range env.Order.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return Envelope{}, &ParseError{Field: fmt.Sprintf("order.items[%d].productId", i), Reason: "is required"}
		}
		if item.Quantity <= 0 {
			return Envelope{}, &ParseError{Field: fmt.Sprintf("order.items[%d].quantity", i), Reason: "must be positive"}
		}
		if item.Price < 0 {
			return Envelope{}, &ParseError{Field: fmt.Sprintf("order.items[%d].price", i), Reason: "must be non-negative"}
		}
	}
	if env.Order.TotalAmount < 0 {
		return Envelope{}, &ParseError{Field: "order.totalAmount", Reason: "must be non-negative"}
	}
	return env, nil
}
