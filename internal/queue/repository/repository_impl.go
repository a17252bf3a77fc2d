package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderflow/internal/queue/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, msgs []*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&msgs).Error
}

func (r *repo) ListVisible(ctx context.Context, db *gorm.DB, queue string, now time.Time, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("queue = ? AND visible_at <= ?", queue, now).
		Order("visible_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *repo) ListExhausted(ctx context.Context, db *gorm.DB, queue string, now time.Time, maxReceiveCount int, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("queue = ? AND visible_at <= ? AND receive_count >= ?", queue, now, maxReceiveCount).
		Order("visible_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Lease is a compare-and-swap on receive_count: concurrent receivers that
// observed the same row race on this single UPDATE and only one wins.
func (r *repo) Lease(ctx context.Context, db *gorm.DB, msg domain.Message, receipt string, now, visibleAt time.Time) (bool, error) {
	firstReceivedAt := msg.FirstReceivedAt
	if firstReceivedAt == nil {
		firstReceivedAt = &now
	}
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND receive_count = ? AND visible_at <= ?", msg.ID, msg.ReceiveCount, now).
		Updates(map[string]any{
			"receive_count":     gorm.Expr("receive_count + 1"),
			"visible_at":        visibleAt,
			"receipt":           receipt,
			"first_received_at": firstReceivedAt,
			"updated_at":        now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID, receipt string) (bool, error) {
	res := db.WithContext(ctx).
		Where("id = ? AND receipt = ?", id, receipt).
		Delete(&domain.Message{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Release(ctx context.Context, db *gorm.DB, id snowflake.ID, receipt string, visibleAt time.Time, lastError string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND receipt = ?", id, receipt).
		Updates(map[string]any{
			"visible_at": visibleAt,
			"receipt":    "",
			"last_error": lastError,
			"updated_at": visibleAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) InsertDeadLetter(ctx context.Context, db *gorm.DB, dl *domain.DeadLetter) error {
	return db.WithContext(ctx).Create(dl).Error
}

func (r *repo) ListDeadLetters(ctx context.Context, db *gorm.DB, filter domain.DeadLetterFilter) ([]domain.DeadLetter, error) {
	stmt := db.WithContext(ctx).Model(&domain.DeadLetter{})
	if filter.Queue != "" {
		stmt = stmt.Where("source_queue = ?", filter.Queue)
	}
	if filter.Before != nil {
		if filter.BeforeID != 0 {
			stmt = stmt.Where("(dead_lettered_at < ? OR (dead_lettered_at = ? AND id < ?))", *filter.Before, *filter.Before, filter.BeforeID)
		} else {
			stmt = stmt.Where("dead_lettered_at < ?", *filter.Before)
		}
	}

	var out []domain.DeadLetter
	err := stmt.
		Order("dead_lettered_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Find(&out).Error
	return out, err
}

func (r *repo) CountVisible(ctx context.Context, db *gorm.DB, queue string, now time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Message{}).
		Where("queue = ? AND visible_at <= ?", queue, now).
		Count(&n).Error
	return n, err
}

func (r *repo) CountInFlight(ctx context.Context, db *gorm.DB, queue string, now time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Message{}).
		Where("queue = ? AND visible_at > ? AND receipt <> ''", queue, now).
		Count(&n).Error
	return n, err
}

func (r *repo) CountDeadLetters(ctx context.Context, db *gorm.DB, queue string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.DeadLetter{}).
		Where("source_queue = ?", queue).
		Count(&n).Error
	return n, err
}
