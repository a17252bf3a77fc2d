package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/smallbiznis/orderflow/internal/clock"
	"github.com/smallbiznis/orderflow/internal/events"
	"github.com/smallbiznis/orderflow/internal/inventory/domain"
	queuedomain "github.com/smallbiznis/orderflow/internal/queue/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("inventory.consumer"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Handle applies every product of the order independently. Items that fail
// do not undo items that succeeded; on redelivery the applied ones are skipped.
func (s *Service) Handle(ctx context.Context, env events.Envelope) error {
	orderID := env.Order.OrderID

	var errs []error
	for _, item := range mergeLines(env.Order.Items) {
		res := s.applyItem(ctx, orderID, item)
		switch {
		case res.Err != nil:
			s.log.Warn("inventory item failed",
				zap.String("order_id", orderID),
				zap.String("product_id", item.ProductID),
				zap.Int64("quantity", item.Quantity),
				zap.Bool("terminal", queuedomain.Classify(res.Err) == queuedomain.OutcomeTerminal),
				zap.Error(res.Err),
			)
			errs = append(errs, res.Err)
		case res.Skipped:
			s.log.Info("inventory item already applied",
				zap.String("order_id", orderID),
				zap.String("product_id", item.ProductID),
			)
		default:
			s.log.Info("inventory updated",
				zap.String("order_id", orderID),
				zap.String("product_id", item.ProductID),
				zap.Int64("quantity", item.Quantity),
			)
		}
	}
	return errors.Join(errs...)
}

// mergeLines sums the quantities of lines naming the same product, keeping
// first-seen order. The ledger holds one row per (order, product).
func mergeLines(items []events.OrderItem) []events.OrderItem {
	merged := make([]events.OrderItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			if merged[i].Quantity > math.MaxInt64-item.Quantity {
				merged[i].Quantity = math.MaxInt64
			} else {
				merged[i].Quantity += item.Quantity
			}
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

func (s *Service) applyItem(ctx context.Context, orderID string, item events.OrderItem) domain.ItemResult {
	result := domain.ItemResult{ProductID: item.ProductID}
	now := s.clock.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertApplication(ctx, tx, &domain.Application{
			OrderID:   orderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AppliedAt: now,
		})
		if err != nil {
			return fmt.Errorf("record application: %w", err)
		}
		if !inserted {
			result.Skipped = true
			return nil
		}

		ok, err := s.repo.Decrement(ctx, tx, item.ProductID, item.Quantity, orderID, now)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if ok {
			result.Applied = true
			return nil
		}

		record, err := s.repo.FindByID(ctx, tx, item.ProductID)
		if err != nil {
			return fmt.Errorf("lookup product: %w", err)
		}
		if record == nil {
			return queuedomain.Terminal(&domain.StockError{
				Kind:      domain.ErrProductNotFound,
				ProductID: item.ProductID,
			})
		}
		return queuedomain.Terminal(&domain.StockError{
			Kind:        domain.ErrInsufficientStock,
			ProductID:   item.ProductID,
			ProductName: record.ProductName,
			Available:   record.Stock,
			Requested:   item.Quantity,
		})
	})
	if err != nil {
		result.Applied = false
		result.Skipped = false
		result.Err = err
	}
	return result
}

func (s *Service) Get(ctx context.Context, productID string) (domain.Record, error) {
	record, err := s.repo.FindByID(ctx, s.db, strings.TrimSpace(productID))
	if err != nil {
		return domain.Record{}, err
	}
	if record == nil {
		return domain.Record{}, domain.ErrProductNotFound
	}
	return *record, nil
}

// Seed creates or resets stock levels, used by bootstrap and tests.
func (s *Service) Seed(ctx context.Context, records []domain.Record) error {
	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range records {
			rec := records[i]
			if rec.LastUpdated.IsZero() {
				rec.LastUpdated = now
			}
			if err := s.repo.Upsert(ctx, tx, &rec); err != nil {
				return fmt.Errorf("seed %s: %w", rec.ProductID, err)
			}
		}
		return nil
	})
}

func (s *Service) List(ctx context.Context) ([]domain.Record, error) {
	return s.repo.List(ctx, s.db)
}
