package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, msgs []*Message) error
	// ListVisible returns candidates for leasing, oldest first.
	ListVisible(ctx context.Context, db *gorm.DB, queue string, now time.Time, limit int) ([]Message, error)
	// ListExhausted returns visible messages that already used every delivery.
	ListExhausted(ctx context.Context, db *gorm.DB, queue string, now time.Time, maxReceiveCount int, limit int) ([]Message, error)
	// Lease claims a message if it is still in the state the caller observed.
	Lease(ctx context.Context, db *gorm.DB, msg Message, receipt string, now, visibleAt time.Time) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID, receipt string) (bool, error)
	Release(ctx context.Context, db *gorm.DB, id snowflake.ID, receipt string, visibleAt time.Time, lastError string) (bool, error)
	InsertDeadLetter(ctx context.Context, db *gorm.DB, dl *DeadLetter) error
	ListDeadLetters(ctx context.Context, db *gorm.DB, filter DeadLetterFilter) ([]DeadLetter, error)
	CountVisible(ctx context.Context, db *gorm.DB, queue string, now time.Time) (int64, error)
	CountInFlight(ctx context.Context, db *gorm.DB, queue string, now time.Time) (int64, error)
	CountDeadLetters(ctx context.Context, db *gorm.DB, queue string) (int64, error)
}
