package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound   = errors.New("product_not_found")
	ErrInsufficientStock = errors.New("insufficient_stock")
)

// StockError carries the product details behind ErrProductNotFound and
// ErrInsufficientStock.
type StockError struct {
	Kind        error
	ProductID   string
	ProductName string
	Available   int64
	Requested   int64
}

func (e *StockError) Error() string {
	if errors.Is(e.Kind, ErrProductNotFound) {
		return fmt.Sprintf("Product not found: %s", e.ProductID)
	}
	return fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d", e.ProductName, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error {
	return e.Kind
}
