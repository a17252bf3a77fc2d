package domain

import (
	"context"
)

type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (Order, error)
	GetByID(ctx context.Context, id string) (Order, error)
	List(ctx context.Context, limit int) ([]Order, error)
}

// ReconcileSummary reports one reconciliation sweep.
type ReconcileSummary struct {
	Scanned     int
	Republished int
	Failed      int
}
