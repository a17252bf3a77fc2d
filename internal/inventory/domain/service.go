package domain

import (
	"context"

	"github.com/smallbiznis/orderflow/internal/events"
)

type Service interface {
	Handle(ctx context.Context, env events.Envelope) error
	Get(ctx context.Context, productID string) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Seed(ctx context.Context, records []Record) error
}
