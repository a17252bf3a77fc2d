package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/orderflow/internal/events"
)

var (
	ErrNotFound      = errors.New("billing_record_not_found")
	ErrTotalOverflow = errors.New("billing_total_overflow")
)

type Service interface {
	Handle(ctx context.Context, env events.Envelope) error
	GetByOrderID(ctx context.Context, orderID string) (Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
}
