package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderflow/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *repo) ListUnpublished(ctx context.Context, db *gorm.DB, createdBefore time.Time, maxAttempts, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	stmt := db.WithContext(ctx).
		Where("status = ? AND published_at IS NULL AND created_at <= ?", domain.StatusPending, createdBefore)
	if maxAttempts > 0 {
		stmt = stmt.Where("publish_attempts < ?", maxAttempts)
	}
	err := stmt.
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *repo) MarkPublished(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND published_at IS NULL", id).
		Updates(map[string]any{
			"published_at": at,
			"updated_at":   at,
		}).Error
}

func (r *repo) IncrementPublishAttempts(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"publish_attempts": gorm.Expr("publish_attempts + 1"),
			"updated_at":       at,
		}).Error
}
