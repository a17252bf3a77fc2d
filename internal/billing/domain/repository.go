package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfAbsent reports false when a record for the order already exists.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, record *Record) (bool, error)
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Record, error)
	List(ctx context.Context, db *gorm.DB, limit int) ([]Record, error)
}
