package service

import (
	"context"
	"time"

	"github.com/smallbiznis/orderflow/internal/bus"
	"github.com/smallbiznis/orderflow/internal/clock"
	"github.com/smallbiznis/orderflow/internal/config"
	obsctx "github.com/smallbiznis/orderflow/internal/observability/context"
	"github.com/smallbiznis/orderflow/internal/observability/metrics"
	"github.com/smallbiznis/orderflow/internal/order/domain"
	"github.com/smallbiznis/orderflow/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReconcilerConfig controls the sweep that republishes orders whose event
// never reached the bus.
type ReconcilerConfig struct {
	Interval    time.Duration
	GracePeriod time.Duration
	BatchSize   int
	MaxAttempts int
	RunTimeout  time.Duration
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval:    30 * time.Second,
		GracePeriod: time.Minute,
		BatchSize:   50,
		MaxAttempts: 20,
		RunTimeout:  20 * time.Second,
	}
}

func ReconcilerConfigFrom(cfg config.Config) ReconcilerConfig {
	return ReconcilerConfig{
		Interval:    cfg.Reconciler.Interval,
		GracePeriod: cfg.Reconciler.GracePeriod,
		BatchSize:   cfg.Reconciler.BatchSize,
		MaxAttempts: cfg.Reconciler.MaxAttempts,
	}.withDefaults()
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	defaults := DefaultReconcilerConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = defaults.GracePeriod
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaults.RunTimeout
	}
	return c
}

type ReconcilerParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Bus     bus.Publisher
	Config  ReconcilerConfig  `optional:"true"`
	Metrics *metrics.Metrics  `optional:"true"`
	Locker  *ratelimit.Locker `optional:"true"`
}

const reconcileLockKey = "orderflow:order:reconcile"

type Reconciler struct {
	svc    *Service
	log    *zap.Logger
	cfg    ReconcilerConfig
	locker *ratelimit.Locker
}

func NewReconciler(p ReconcilerParams) *Reconciler {
	svc := newService(Params{
		DB:      p.DB,
		Log:     p.Log,
		Clock:   p.Clock,
		Repo:    p.Repo,
		Bus:     p.Bus,
		Metrics: p.Metrics,
	})
	return &Reconciler{
		svc:    svc,
		log:    p.Log.Named("order.reconciler"),
		cfg:    p.Config.withDefaults(),
		locker: p.Locker,
	}
}

func (r *Reconciler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Warn("order reconciliation run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce republishes one batch of pending orders older than the grace period.
func (r *Reconciler) RunOnce(parentCtx context.Context) (domain.ReconcileSummary, error) {
	ctx, cancel := context.WithTimeout(parentCtx, r.cfg.RunTimeout)
	defer cancel()

	var summary domain.ReconcileSummary
	if r.locker.Enabled() {
		token, ok, err := r.locker.TryLock(ctx, reconcileLockKey, r.cfg.RunTimeout)
		if err != nil {
			return summary, err
		}
		if !ok {
			r.log.Debug("reconciliation running on another replica")
			return summary, nil
		}
		defer func() {
			if err := r.locker.Release(context.Background(), reconcileLockKey, token); err != nil {
				r.log.Warn("failed to release reconcile lock", zap.Error(err))
			}
		}()
	}

	cutoff := r.svc.clock.Now().Add(-r.cfg.GracePeriod)
	orders, err := r.svc.repo.ListUnpublished(ctx, r.svc.db, cutoff, r.cfg.MaxAttempts, r.cfg.BatchSize)
	if err != nil {
		return summary, err
	}
	summary.Scanned = len(orders)

	for i := range orders {
		order := &orders[i]
		orderCtx := obsctx.WithOrderID(ctx, order.ID.String())

		if err := r.svc.publish(orderCtx, order); err != nil {
			summary.Failed++
			r.svc.metrics.RecordPublishFailure(orderCtx, "reconcile")
			r.svc.metrics.RecordReconciled(orderCtx, "failed")
			if incErr := r.svc.repo.IncrementPublishAttempts(orderCtx, r.svc.db, order.ID, r.svc.clock.Now()); incErr != nil {
				r.log.Warn("failed to record publish attempt", zap.String("order_id", order.ID.String()), zap.Error(incErr))
			}
			r.log.Warn("order republish failed",
				zap.String("order_id", order.ID.String()),
				zap.Int("publish_attempts", order.PublishAttempts+1),
				zap.Error(err),
			)
			continue
		}

		summary.Republished++
		r.svc.metrics.RecordReconciled(orderCtx, "republished")
		r.log.Info("order event republished", zap.String("order_id", order.ID.String()))
	}

	return summary, nil
}
