package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/orderflow/internal/inventory/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertApplication(ctx context.Context, db *gorm.DB, app *domain.Application) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(app)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Decrement(ctx context.Context, db *gorm.DB, productID string, quantity int64, orderID string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE inventory
		 SET stock = stock - ?, last_updated = ?, last_order_id = ?
		 WHERE product_id = ? AND stock >= ?`,
		quantity,
		at,
		orderID,
		productID,
		quantity,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, productID string) (*domain.Record, error) {
	var record domain.Record
	err := db.WithContext(ctx).Where("product_id = ?", productID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, record *domain.Record) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"product_name", "price", "stock", "last_updated"}),
		}).
		Create(record).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Record, error) {
	var records []domain.Record
	err := db.WithContext(ctx).
		Order("LOWER(product_name) ASC").
		Order("product_id ASC").
		Find(&records).Error
	return records, err
}
