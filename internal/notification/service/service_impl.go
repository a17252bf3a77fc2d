package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderflow/internal/clock"
	"github.com/smallbiznis/orderflow/internal/events"
	"github.com/smallbiznis/orderflow/internal/notification/domain"
	"github.com/smallbiznis/orderflow/internal/providers/email"
	"github.com/smallbiznis/orderflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Provider email.Provider
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	provider email.Provider
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("notification.consumer"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		provider: p.Provider,
	}
}

func (s *Service) Handle(ctx context.Context, env events.Envelope) error {
	order := env.Order

	existing, err := s.repo.FindByOrderID(ctx, s.db, order.OrderID)
	if err != nil {
		return fmt.Errorf("load notification: %w", err)
	}
	if existing != nil && existing.Status == domain.StatusSent {
		s.log.Info("notification already sent", zap.String("order_id", order.OrderID))
		return nil
	}

	content := domain.Compose(order)
	sendErr := s.provider.Send(ctx, email.Message{
		To:       []string{content.To},
		Subject:  content.Subject,
		TextBody: content.Body,
	})

	now := s.clock.Now()
	record := domain.Record{
		OrderID:       order.OrderID,
		CustomerID:    order.CustomerID,
		CustomerEmail: order.CustomerEmail,
		Type:          domain.TypeOrderConfirmation,
		Subject:       content.Subject,
		Message:       content.Body,
		Status:        domain.StatusSent,
		Provider:      s.provider.Name(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if existing != nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	} else {
		record.ID = s.genID.Generate()
	}
	if sendErr != nil {
		record.Status = domain.StatusFailed
		record.LastError = sendErr.Error()
	} else {
		record.SentAt = &now
	}

	if err := s.repo.Upsert(ctx, s.db, &record); err != nil {
		if sendErr != nil {
			return fmt.Errorf("dispatch notification: %w", sendErr)
		}
		return fmt.Errorf("record notification: %w", err)
	}

	if sendErr != nil {
		s.log.Warn("notification dispatch failed",
			zap.String("order_id", order.OrderID),
			zap.String("provider", s.provider.Name()),
			zap.Error(sendErr),
		)
		return fmt.Errorf("dispatch notification: %w", sendErr)
	}

	s.log.Info("notification sent",
		zap.String("order_id", order.OrderID),
		zap.String("notification_id", record.ID.String()),
		zap.String("provider", s.provider.Name()),
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
