package consumer

import (
	"context"
	"fmt"
	"strings"

	billingdomain "github.com/smallbiznis/orderflow/internal/billing/domain"
	"github.com/smallbiznis/orderflow/internal/config"
	inventorydomain "github.com/smallbiznis/orderflow/internal/inventory/domain"
	notificationdomain "github.com/smallbiznis/orderflow/internal/notification/domain"
	"github.com/smallbiznis/orderflow/internal/observability/metrics"
	queuedomain "github.com/smallbiznis/orderflow/internal/queue/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Params struct {
	fx.In

	Cfg          config.Config
	Log          *zap.Logger
	Queue        queuedomain.Service
	QueueConfig  *config.QueueConfigHolder
	Inventory    inventorydomain.Service
	Notification notificationdomain.Service
	Billing      billingdomain.Service
	Metrics      *metrics.QueueMetrics `optional:"true"`
}

// Pool owns one Worker per consumed queue.
type Pool struct {
	workers []*Worker
	log     *zap.Logger
}

func NewPool(p Params) (*Pool, error) {
	handlers := map[string]Handler{
		config.QueueInventory:    p.Inventory,
		config.QueueNotification: p.Notification,
		config.QueueBilling:      p.Billing,
	}

	cfg := ConfigFrom(p.Cfg)
	workers := make([]*Worker, 0, len(p.Cfg.Consumer.Queues))
	for _, name := range p.Cfg.Consumer.Queues {
		name = strings.TrimSpace(name)
		handler, ok := handlers[name]
		if !ok {
			return nil, fmt.Errorf("no consumer registered for queue %q", name)
		}
		q := p.Queue.Open(name, queueConfig(p.QueueConfig, name))
		workers = append(workers, NewWorker(q, handler, cfg, p.Log, p.Metrics))
	}

	return &Pool{workers: workers, log: p.Log.Named("consumer.pool")}, nil
}

func queueConfig(holder *config.QueueConfigHolder, name string) queuedomain.ConfigFunc {
	return func() queuedomain.Config {
		return queuedomain.ConfigFromSettings(holder.Get(name))
	}
}

func (p *Pool) Workers() []*Worker {
	return p.workers
}

func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		worker := w
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}
	return g.Wait()
}
