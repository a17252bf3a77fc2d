package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/orderflow/internal/clock"
	"github.com/smallbiznis/orderflow/internal/observability/metrics"
	"github.com/smallbiznis/orderflow/internal/queue/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
	maxErrorLength         = 2000
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *metrics.QueueMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *metrics.QueueMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("queue"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Open(name string, cfg domain.ConfigFunc) domain.Queue {
	if cfg == nil {
		cfg = domain.Static(domain.DefaultConfig())
	}
	return &queue{
		svc:  s,
		name: strings.TrimSpace(name),
		cfg:  cfg,
		log:  s.log.With(zap.String("queue", name)),
	}
}

func (s *Service) Enqueue(ctx context.Context, outgoing []domain.OutgoingMessage) ([]domain.Message, error) {
	if len(outgoing) == 0 {
		return nil, nil
	}

	now := s.clock.Now()
	rows := make([]*domain.Message, 0, len(outgoing))
	for _, out := range outgoing {
		if strings.TrimSpace(out.Queue) == "" {
			return nil, domain.ErrEmptyQueueName
		}
		if out.Body == "" {
			return nil, domain.ErrEmptyBody
		}
		attrs := datatypes.JSONMap{}
		for k, v := range out.Attributes {
			attrs[k] = v
		}
		rows = append(rows, &domain.Message{
			ID:         s.genID.Generate(),
			Queue:      strings.TrimSpace(out.Queue),
			Subject:    out.Subject,
			Attributes: attrs,
			Body:       out.Body,
			VisibleAt:  now,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, rows)
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}

	out := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}

func (s *Service) ListDeadLetters(ctx context.Context, filter domain.DeadLetterFilter) ([]domain.DeadLetter, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultDeadLetterLimit
	}
	if filter.Limit > maxDeadLetterLimit {
		filter.Limit = maxDeadLetterLimit
	}
	filter.Queue = strings.TrimSpace(filter.Queue)
	return s.repo.ListDeadLetters(ctx, s.db, filter)
}

func (s *Service) Stats(ctx context.Context, name string) (domain.Stats, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Stats{}, domain.ErrEmptyQueueName
	}
	now := s.clock.Now()

	visible, err := s.repo.CountVisible(ctx, s.db, name, now)
	if err != nil {
		return domain.Stats{}, err
	}
	inFlight, err := s.repo.CountInFlight(ctx, s.db, name, now)
	if err != nil {
		return domain.Stats{}, err
	}
	dead, err := s.repo.CountDeadLetters(ctx, s.db, name)
	if err != nil {
		return domain.Stats{}, err
	}

	s.metrics.SetDepth(name, visible, inFlight)
	return domain.Stats{Queue: name, Visible: visible, InFlight: inFlight, DeadLetters: dead}, nil
}

type queue struct {
	svc  *Service
	name string
	cfg  domain.ConfigFunc
	log  *zap.Logger
}

func (q *queue) Name() string { return q.name }

func (q *queue) Config() domain.Config { return q.cfg().WithDefaults() }

func (q *queue) Receive(ctx context.Context, max int) ([]domain.Message, error) {
	cfg := q.Config()
	if max <= 0 || max > cfg.BatchSize {
		max = cfg.BatchSize
	}
	now := q.svc.clock.Now()

	if err := q.sweepExhausted(ctx, cfg, max); err != nil {
		return nil, err
	}

	// Over-fetch so messages lost to concurrent receivers do not leave the batch short.
	candidates, err := q.svc.repo.ListVisible(ctx, q.svc.db, q.name, now, max*2)
	if err != nil {
		return nil, fmt.Errorf("list visible: %w", err)
	}

	leased := make([]domain.Message, 0, max)
	for _, msg := range candidates {
		if len(leased) == max {
			break
		}
		if msg.ReceiveCount >= cfg.MaxReceiveCount {
			continue
		}
		receipt := ulid.Make().String()
		visibleAt := now.Add(cfg.VisibilityTimeout)
		ok, err := q.svc.repo.Lease(ctx, q.svc.db, msg, receipt, now, visibleAt)
		if err != nil {
			if len(leased) == 0 {
				return nil, fmt.Errorf("lease %s: %w", msg.ID, err)
			}
			// Already leased messages are handed out; the rest stay visible.
			q.log.Warn("lease failed, returning partial batch",
				zap.String("message_id", msg.ID.String()),
				zap.Int("leased", len(leased)),
				zap.Error(err),
			)
			break
		}
		if !ok {
			continue
		}
		msg.ReceiveCount++
		msg.Receipt = receipt
		msg.VisibleAt = visibleAt
		if msg.FirstReceivedAt == nil {
			first := now
			msg.FirstReceivedAt = &first
		}
		leased = append(leased, msg)
	}

	q.svc.metrics.Received(q.name, len(leased))
	return leased, nil
}

// sweepExhausted quarantines messages whose last allowed delivery expired
// without an ack, such as a worker crashing mid-message.
func (q *queue) sweepExhausted(ctx context.Context, cfg domain.Config, limit int) error {
	now := q.svc.clock.Now()
	rows, err := q.svc.repo.ListExhausted(ctx, q.svc.db, q.name, now, cfg.MaxReceiveCount, limit)
	if err != nil {
		return fmt.Errorf("list exhausted: %w", err)
	}
	for _, msg := range rows {
		moved, err := q.moveToDeadLetter(ctx, msg, domain.ReasonExhausted, msg.LastError, false)
		if err != nil {
			return err
		}
		if moved {
			q.log.Warn("message exhausted without ack, dead-lettered",
				zap.String("message_id", msg.ID.String()),
				zap.Int("receive_count", msg.ReceiveCount),
			)
		}
	}
	return nil
}

func (q *queue) Ack(ctx context.Context, msg domain.Message) error {
	ok, err := q.svc.repo.Delete(ctx, q.svc.db, msg.ID, msg.Receipt)
	if err != nil {
		return fmt.Errorf("ack %s: %w", msg.ID, err)
	}
	if !ok {
		return domain.ErrLeaseLost
	}
	q.svc.metrics.Completed(q.name, metrics.OutcomeAcked)
	return nil
}

func (q *queue) Retry(ctx context.Context, msg domain.Message, cause error) error {
	cfg := q.Config()
	if msg.ReceiveCount >= cfg.MaxReceiveCount {
		return q.DeadLetter(ctx, msg, domain.ReasonExhausted, cause)
	}

	visibleAt := q.svc.clock.Now().Add(cfg.RetryDelay)
	ok, err := q.svc.repo.Release(ctx, q.svc.db, msg.ID, msg.Receipt, visibleAt, errorText(cause))
	if err != nil {
		return fmt.Errorf("release %s: %w", msg.ID, err)
	}
	if !ok {
		return domain.ErrLeaseLost
	}
	q.svc.metrics.Completed(q.name, metrics.OutcomeRetried)
	return nil
}

func (q *queue) DeadLetter(ctx context.Context, msg domain.Message, reason domain.DeadLetterReason, cause error) error {
	moved, err := q.moveToDeadLetter(ctx, msg, reason, errorText(cause), true)
	if err != nil {
		return err
	}
	if !moved {
		return domain.ErrLeaseLost
	}
	q.log.Warn("message dead-lettered",
		zap.String("message_id", msg.ID.String()),
		zap.String("reason", string(reason)),
		zap.Int("receive_count", msg.ReceiveCount),
		zap.Error(cause),
	)
	return nil
}

// moveToDeadLetter deletes the row and records it in the sink in one
// transaction. The insert only happens when the delete removed the row, so a
// message is quarantined at most once.
func (q *queue) moveToDeadLetter(ctx context.Context, msg domain.Message, reason domain.DeadLetterReason, lastError string, leased bool) (bool, error) {
	moved := false
	err := q.svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Where("id = ?", msg.ID)
		if leased {
			res = res.Where("receipt = ?", msg.Receipt)
		} else {
			res = res.Where("receive_count = ?", msg.ReceiveCount)
		}
		res = res.Delete(&domain.Message{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}

		if err := q.svc.repo.InsertDeadLetter(ctx, tx, &domain.DeadLetter{
			ID:                q.svc.genID.Generate(),
			MessageID:         msg.ID,
			SourceQueue:       q.name,
			Subject:           msg.Subject,
			Attributes:        msg.Attributes,
			Body:              msg.Body,
			ReceiveCount:      msg.ReceiveCount,
			Reason:            reason,
			LastError:         lastError,
			OriginalCreatedAt: msg.CreatedAt,
			DeadLetteredAt:    q.svc.clock.Now(),
		}); err != nil {
			return err
		}
		moved = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("dead-letter %s: %w", msg.ID, err)
	}
	if moved {
		q.svc.metrics.DeadLettered(q.name, string(reason))
	}
	return moved, nil
}

func (q *queue) Complete(ctx context.Context, batch []domain.Message, report domain.BatchReport) (domain.CompletionSummary, error) {
	var summary domain.CompletionSummary

	failures := make(map[snowflake.ID]domain.Failure, len(report.Failures))
	for _, f := range report.Failures {
		failures[f.MessageID] = f
	}

	var errs []error
	for _, msg := range batch {
		f, failed := failures[msg.ID]

		var err error
		switch {
		case !failed:
			err = q.Ack(ctx, msg)
		case f.Outcome == domain.OutcomeTerminal:
			err = q.DeadLetter(ctx, msg, domain.ReasonTerminal, f.Err)
		default:
			exhausted := msg.ReceiveCount >= q.Config().MaxReceiveCount
			err = q.Retry(ctx, msg, f.Err)
			if err == nil && exhausted {
				summary.DeadLettered++
				continue
			}
		}

		switch {
		case errors.Is(err, domain.ErrLeaseLost):
			summary.LeaseLost++
			q.log.Info("lease lost before completion",
				zap.String("message_id", msg.ID.String()),
			)
		case err != nil:
			errs = append(errs, err)
		case !failed:
			summary.Acked++
		case f.Outcome == domain.OutcomeTerminal:
			summary.DeadLettered++
		default:
			summary.Retried++
		}
	}

	return summary, errors.Join(errs...)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorLength {
		msg = msg[:maxErrorLength]
	}
	return msg
}
