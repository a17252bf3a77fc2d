package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertApplication reports false when the (order, product) pair was already applied.
	InsertApplication(ctx context.Context, db *gorm.DB, app *Application) (bool, error)
	// Decrement reports false when the product is missing or has too little stock.
	Decrement(ctx context.Context, db *gorm.DB, productID string, quantity int64, orderID string, at time.Time) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, productID string) (*Record, error)
	// List returns every product ordered by name.
	List(ctx context.Context, db *gorm.DB) ([]Record, error)
	Upsert(ctx context.Context, db *gorm.DB, record *Record) error
}
