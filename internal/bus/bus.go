// Package bus fans an order event out to every subscribed queue.
package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/orderflow/internal/config"
	"github.com/smallbiznis/orderflow/internal/events"
	"github.com/smallbiznis/orderflow/internal/observability/tracing"
	queuedomain "github.com/smallbiznis/orderflow/internal/queue/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrNoSubscriptions = errors.New("bus_no_subscriptions")

// Publisher places one copy of an envelope on each subscribed queue.
type Publisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Queue queuedomain.Service
}

type Bus struct {
	topic  string
	queues []string
	log    *zap.Logger
	queue  queuedomain.Service
	tracer trace.Tracer
}

func New(p Params) *Bus {
	return NewWithQueues(p.Cfg.Topic, p.Cfg.Queues, p.Queue, p.Log)
}

func NewWithQueues(topic string, queues []string, svc queuedomain.Service, log *zap.Logger) *Bus {
	seen := make(map[string]struct{}, len(queues))
	subscribed := make([]string, 0, len(queues))
	for _, q := range queues {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		subscribed = append(subscribed, q)
	}
	return &Bus{
		topic:  topic,
		queues: subscribed,
		log:    log.Named("bus"),
		queue:  svc,
		tracer: otel.Tracer("orderflow/bus"),
	}
}

func (b *Bus) Subscriptions() []string {
	return append([]string(nil), b.queues...)
}

func (b *Bus) Publish(ctx context.Context, env events.Envelope) error {
	if len(b.queues) == 0 {
		return ErrNoSubscriptions
	}

	ctx, span := b.tracer.Start(ctx, "bus.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", b.topic),
			attribute.String("order.id", env.Order.OrderID),
			attribute.Int("messaging.fanout", len(b.queues)),
		),
	)
	defer span.End()

	body, err := env.Marshal()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal envelope: %w", err)
	}

	outgoing := make([]queuedomain.OutgoingMessage, 0, len(b.queues))
	for _, q := range b.queues {
		attrs := env.Attributes()
		tracing.InjectAttributes(ctx, attrs)
		outgoing = append(outgoing, queuedomain.OutgoingMessage{
			Queue:      q,
			Subject:    events.SubjectOrderCreated,
			Attributes: attrs,
			Body:       body,
		})
	}

	if _, err := b.queue.Enqueue(ctx, outgoing); err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish to %s: %w", b.topic, err)
	}

	b.log.Debug("order event published",
		zap.String("topic", b.topic),
		zap.String("order_id", env.Order.OrderID),
		zap.Strings("queues", b.queues),
	)
	return nil
}
