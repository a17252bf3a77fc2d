package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEnvelope() Envelope {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return NewOrderCreated(OrderSnapshot{
		OrderID:       "1893219928123",
		CustomerID:    "cust-1",
		CustomerEmail: "jane@example.com",
		Items: []OrderItem{
			{ProductID: "prod-001", ProductName: "Laptop", Quantity: 1, Price: 99999},
			{ProductID: "prod-002", ProductName: "Mouse", Quantity: 2, Price: 2999},
		},
		Status:      "pending",
		TotalAmount: 105997,
		CreatedAt:   created,
	}, created.Add(time.Second))
}

func TestParseRoundTrip(t *testing.T) {
	env := sampleEnvelope()
	body, err := env.Marshal()
	require.NoError(t, err)
	assert.Contains(t, body, `"eventType":"ORDER_CREATED"`)
	assert.Contains(t, body, `"orderId":"1893219928123"`)

	parsed, err := Parse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, env, parsed)
	assert.Equal(t, map[string]string{"eventType": "ORDER_CREATED", "orderId": "1893219928123"}, parsed.Attributes())
}

func TestParseRejectsBadEnvelopes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "empty", body: "  "},
		{name: "not json", body: "{oops"},
		{name: "wrong type", body: `{"eventType":"ORDER_SHIPPED","order":{"orderId":"1","items":[{"productId":"p","quantity":1}]}}`, field: "eventType"},
		{name: "missing order id", body: `{"eventType":"ORDER_CREATED","order":{"items":[{"productId":"p","quantity":1}]}}`, field: "order.orderId"},
		{name: "no items", body: `{"eventType":"ORDER_CREATED","order":{"orderId":"1","items":[]}}`, field: "order.items"},
		{name: "zero quantity", body: `{"eventType":"ORDER_CREATED","order":{"orderId":"1","items":[{"productId":"p","quantity":0}]}}`, field: "order.items[0].quantity"},
		{name: "negative price", body: `{"eventType":"ORDER_CREATED","order":{"orderId":"1","items":[{"productId":"p","quantity":1,"price":-1}]}}`, field: "order.items[0].price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, int64(5998), OrderItem{Quantity: 2, Price: 2999}.LineTotal())
}
