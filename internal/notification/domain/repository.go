package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Record, error)
	List(ctx context.Context, db *gorm.DB, limit int) ([]Record, error)
	Upsert(ctx context.Context, db *gorm.DB, record *Record) error
}
