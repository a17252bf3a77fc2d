package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	// List returns the newest orders first.
	List(ctx context.Context, db *gorm.DB, limit int) ([]Order, error)
	ListUnpublished(ctx context.Context, db *gorm.DB, createdBefore time.Time, maxAttempts, limit int) ([]Order, error)
	MarkPublished(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	IncrementPublishAttempts(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
