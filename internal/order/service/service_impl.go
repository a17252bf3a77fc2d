package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderflow/internal/bus"
	"github.com/smallbiznis/orderflow/internal/clock"
	"github.com/smallbiznis/orderflow/internal/events"
	obsctx "github.com/smallbiznis/orderflow/internal/observability/context"
	"github.com/smallbiznis/orderflow/internal/observability/metrics"
	"github.com/smallbiznis/orderflow/internal/order/domain"
	"github.com/smallbiznis/orderflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Bus     bus.Publisher
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	bus     bus.Publisher
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return newService(p)
}

func newService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("order.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		bus:     p.Bus,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	if err := req.Validate(); err != nil {
		return domain.Order{}, err
	}

	total, err := domain.TotalAmount(req.Items)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:            s.genID.Generate(),
		CustomerID:    strings.TrimSpace(req.CustomerID),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		Items:         append([]domain.Item(nil), req.Items...),
		Status:        domain.StatusPending,
		TotalAmount:   total,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, &order)
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}
	s.metrics.RecordOrderCreated(ctx, total)

	ctx = obsctx.WithOrderID(ctx, order.ID.String())
	if err := s.publish(ctx, &order); err != nil {
		s.metrics.RecordPublishFailure(ctx, "intake")
		if incErr := s.repo.IncrementPublishAttempts(ctx, s.db, order.ID, s.clock.Now()); incErr != nil {
			s.log.Warn("failed to record publish attempt",
				zap.String("order_id", order.ID.String()),
				zap.Error(incErr),
			)
		}
		s.log.Error("order persisted but event not published",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		order.PublishAttempts++
		return order, &domain.PublishError{OrderID: order.ID.String(), Err: err}
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("customer_id", order.CustomerID),
		zap.Int("items", len(order.Items)),
		zap.Int64("total_amount", order.TotalAmount),
	)
	return order, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Order, error) {
	orderID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || orderID == 0 {
		return domain.Order{}, domain.ErrInvalidID
	}

	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrNotFound
	}
	return *order, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]domain.Order, error) {
	return s.repo.List(ctx, s.db, pagination.ClampLimit(limit))
}

// publish places the envelope on the bus and stamps published_at. The
// envelope timestamp is the order creation time, so a republished event is
// identical to the first one.
func (s *Service) publish(ctx context.Context, order *domain.Order) error {
	env := events.NewOrderCreated(order.Snapshot(), order.CreatedAt)
	if err := s.bus.Publish(ctx, env); err != nil {
		return err
	}

	publishedAt := s.clock.Now()
	if err := s.repo.MarkPublished(ctx, s.db, order.ID, publishedAt); err != nil {
		// The event is already on the bus; a later sweep may publish a
		// duplicate, which consumers tolerate.
		s.log.Warn("failed to mark order published",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil
	}
	order.PublishedAt = &publishedAt
	return nil
}
