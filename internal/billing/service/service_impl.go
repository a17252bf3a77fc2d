package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderflow/internal/billing/domain"
	"github.com/smallbiznis/orderflow/internal/clock"
	"github.com/smallbiznis/orderflow/internal/events"
	queuedomain "github.com/smallbiznis/orderflow/internal/queue/domain"
	"github.com/smallbiznis/orderflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billing.consumer"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Handle creates the bill for an order. The subtotal is the order total as
// computed at intake.
func (s *Service) Handle(ctx context.Context, env events.Envelope) error {
	order := env.Order

	subtotal := order.TotalAmount
	tax := domain.Tax(subtotal)
	if subtotal > math.MaxInt64-tax {
		return queuedomain.Terminal(fmt.Errorf("%w: order %s", domain.ErrTotalOverflow, order.OrderID))
	}

	items := make([]domain.LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, domain.LineItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.Price,
			Subtotal:    item.LineTotal(),
		})
	}

	record := domain.Record{
		ID:            s.genID.Generate(),
		OrderID:       order.OrderID,
		CustomerID:    order.CustomerID,
		CustomerEmail: order.CustomerEmail,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         subtotal + tax,
		TaxRate:       domain.TaxRateBasisPoints,
		Items:         items,
		Status:        domain.StatusPending,
		CreatedAt:     s.clock.Now(),
	}

	inserted, err := s.repo.InsertIfAbsent(ctx, s.db, &record)
	if err != nil {
		return fmt.Errorf("insert billing record: %w", err)
	}
	if !inserted {
		s.log.Info("billing record already exists", zap.String("order_id", order.OrderID))
		return nil
	}

	s.log.Info("billing record created",
		zap.String("order_id", order.OrderID),
		zap.String("billing_id", record.ID.String()),
		zap.Int64("subtotal", record.Subtotal),
		zap.Int64("tax", record.Tax),
		zap.Int64("total", record.Total),
	)
	return nil
}

func (s *Service) GetByOrderID(ctx context.Context, orderID string) (domain.Record, error) {
	record, err := s.repo.FindByOrderID(ctx, s.db, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Record{}, err
	}
	if record == nil {
		return domain.Record{}, domain.ErrNotFound
	}
	return *record, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]domain.Record, error) {
	return s.repo.List(ctx, s.db, pagination.ClampLimit(limit))
}
