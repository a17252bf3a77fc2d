// Package events defines the order event envelope carried on the bus.
package events

import (
	"encoding/json"
	"time"
)

const EventOrderCreated = "ORDER_CREATED"

// SubjectOrderCreated is the subject attached to every queued copy.
const SubjectOrderCreated = "New Order Created"

const (
	AttrEventType = "eventType"
	AttrOrderID   = "orderId"
)

// Envelope is immutable once published. Consumers must tolerate receiving
// the same envelope more than once.
type Envelope struct {
	EventType string        `json:"eventType"`
	Order     OrderSnapshot `json:"order"`
	Timestamp time.Time     `json:"timestamp"`
}

type OrderSnapshot struct {
	OrderID       string      `json:"orderId"`
	CustomerID    string      `json:"customerId"`
	CustomerEmail string      `json:"customerEmail"`
	Items         []OrderItem `json:"items"`
	Status        string      `json:"status"`
	TotalAmount   int64       `json:"totalAmount"`
	CreatedAt     time.Time   `json:"createdAt"`
}

type OrderItem struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	Price       int64  `json:"price"`
}

// LineTotal is price × quantity in minor units.
func (i OrderItem) LineTotal() int64 {
	return i.Price * i.Quantity
}

func NewOrderCreated(order OrderSnapshot, now time.Time) Envelope {
	return Envelope{
		EventType: EventOrderCreated,
		Order:     order,
		Timestamp: now.UTC(),
	}
}

func (e Envelope) Marshal() (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Attributes are the message attributes published alongside the body.
func (e Envelope) Attributes() map[string]string {
	return map[string]string{
		AttrEventType: e.EventType,
		AttrOrderID:   e.Order.OrderID,
	}
}
