package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

type CreateOrderRequest struct {
	CustomerID    string
	CustomerEmail string
	Items         []Item
}

type rawRequest struct {
	CustomerID    json.RawMessage `json:"customerId"`
	CustomerEmail json.RawMessage `json:"customerEmail"`
	Items         json.RawMessage `json:"items"`
}

type rawItem struct {
	ProductID   json.RawMessage `json:"productId"`
	ProductName json.RawMessage `json:"productName"`
	Quantity    json.RawMessage `json:"quantity"`
	Price       json.RawMessage `json:"price"`
}

// DecodeCreateOrderRequest decodes a request body and validates it, failing
// on the first violated rule. Wrong JSON types fail the same way as missing
// values.
func DecodeCreateOrderRequest(body []byte) (CreateOrderRequest, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return CreateOrderRequest{}, invalid("body", MsgBodyRequired)
	}

	var raw rawRequest
	if err := json.Unmarshal(body, &raw); err != nil {
		return CreateOrderRequest{}, invalid("body", "Request body must be a JSON object")
	}

	var req CreateOrderRequest
	var ok bool
	if req.CustomerID, ok = nonEmptyString(raw.CustomerID); !ok {
		return CreateOrderRequest{}, invalid("customerId", MsgCustomerID)
	}
	if req.CustomerEmail, ok = nonEmptyString(raw.CustomerEmail); !ok {
		return CreateOrderRequest{}, invalid("customerEmail", MsgCustomerEmail)
	}

	var rawItems []json.RawMessage
	if !isArray(raw.Items) || json.Unmarshal(raw.Items, &rawItems) != nil || len(rawItems) == 0 {
		return CreateOrderRequest{}, invalid("items", MsgItems)
	}

	req.Items = make([]Item, 0, len(rawItems))
	for _, ri := range rawItems {
		var fields rawItem
		if !isObject(ri) || json.Unmarshal(ri, &fields) != nil {
			return CreateOrderRequest{}, invalid("items.productId", MsgProductID)
		}
		var item Item
		if item.ProductID, ok = nonEmptyString(fields.ProductID); !ok {
			return CreateOrderRequest{}, invalid("items.productId", MsgProductID)
		}
		if item.ProductName, ok = nonEmptyString(fields.ProductName); !ok {
			return CreateOrderRequest{}, invalid("items.productName", MsgProductName)
		}
		if item.Quantity, ok = integer(fields.Quantity); !ok || item.Quantity <= 0 {
			return CreateOrderRequest{}, invalid("items.quantity", MsgQuantity)
		}
		if item.Price, ok = integer(fields.Price); !ok || item.Price < 0 {
			return CreateOrderRequest{}, invalid("items.price", MsgPrice)
		}
		req.Items = append(req.Items, item)
	}

	return req, nil
}

// Validate re-checks a request built in code rather than decoded from JSON.
func (r CreateOrderRequest) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return invalid("customerId", MsgCustomerID)
	}
	if strings.TrimSpace(r.CustomerEmail) == "" {
		return invalid("customerEmail", MsgCustomerEmail)
	}
	if len(r.Items) == 0 {
		return invalid("items", MsgItems)
	}
	for _, item := range r.Items {
		switch {
		case strings.TrimSpace(item.ProductID) == "":
			return invalid("items.productId", MsgProductID)
		case strings.TrimSpace(item.ProductName) == "":
			return invalid("items.productName", MsgProductName)
		case item.Quantity <= 0:
			return invalid("items.quantity", MsgQuantity)
		case item.Price < 0:
			return invalid("items.price", MsgPrice)
		}
	}
	return nil
}

// TotalAmount sums price × quantity, reporting overflow as a validation error.
func TotalAmount(items []Item) (int64, error) {
	var total int64
	for _, item := range items {
		if item.Quantity != 0 && item.Price > math.MaxInt64/item.Quantity {
			return 0, invalid("items", MsgTotalOverflow)
		}
		line := item.Price * item.Quantity
		if total > math.MaxInt64-line {
			return 0, invalid("items", MsgTotalOverflow)
		}
		total += line
	}
	return total, nil
}

func nonEmptyString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}

func integer(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	v, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return v, true
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
