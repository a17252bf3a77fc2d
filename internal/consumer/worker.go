package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/orderflow/internal/events"
	obsctx "github.com/smallbiznis/orderflow/internal/observability/context"
	"github.com/smallbiznis/orderflow/internal/observability/metrics"
	"github.com/smallbiznis/orderflow/internal/observability/tracing"
	queuedomain "github.com/smallbiznis/orderflow/internal/queue/domain"
	pkgdb "github.com/smallbiznis/orderflow/pkg/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Handler processes one decoded envelope. Errors wrapped with
// queuedomain.Terminal are dead-lettered without further retries.
type Handler interface {
	Handle(ctx context.Context, env events.Envelope) error
}

type HandlerFunc func(ctx context.Context, env events.Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env events.Envelope) error {
	return f(ctx, env)
}

type Worker struct {
	queue   queuedomain.Queue
	handler Handler
	log     *zap.Logger
	metrics *metrics.QueueMetrics
	tracer  trace.Tracer
	cfg     Config
}

func NewWorker(q queuedomain.Queue, h Handler, cfg Config, log *zap.Logger, m *metrics.QueueMetrics) *Worker {
	return &Worker{
		queue:   q,
		handler: h,
		log:     log.Named("consumer").With(zap.String("queue", q.Name())),
		metrics: m,
		tracer:  otel.Tracer("orderflow/consumer"),
		cfg:     cfg.withDefaults(),
	}
}

func (w *Worker) Queue() string { return w.queue.Name() }

// Run starts the configured number of replicas and blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Replicas; i++ {
		replica := i
		g.Go(func() error {
			w.log.Info("consumer replica started", zap.Int("replica", replica))
			w.RunForever(gctx)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		summary, received, err := w.runOnce(ctx)
		if err != nil {
			w.log.Warn("consumer run failed", zap.Error(err))
		}

		if ctx.Err() != nil {
			return
		}
		// A full batch suggests a backlog, so poll again straight away.
		if err == nil && received > 0 && received >= w.queue.Config().BatchSize {
			w.log.Debug("batch full, polling again",
				zap.Int("acked", summary.Acked),
				zap.Int("retried", summary.Retried),
			)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce receives and processes a single batch.
func (w *Worker) RunOnce(ctx context.Context) (queuedomain.CompletionSummary, error) {
	summary, _, err := w.runOnce(ctx)
	return summary, err
}

func (w *Worker) runOnce(ctx context.Context) (queuedomain.CompletionSummary, int, error) {
	batch, err := w.queue.Receive(ctx, 0)
	if err != nil {
		return queuedomain.CompletionSummary{}, 0, fmt.Errorf("receive: %w", err)
	}
	if len(batch) == 0 {
		return queuedomain.CompletionSummary{}, 0, nil
	}

	report := w.Process(batch)

	completeCtx, cancel := context.WithTimeout(context.Background(), w.cfg.CompleteTimeout)
	defer cancel()
	summary, err := w.queue.Complete(completeCtx, batch, report)

	w.log.Info("batch completed",
		zap.Int("received", len(batch)),
		zap.Int("acked", summary.Acked),
		zap.Int("retried", summary.Retried),
		zap.Int("dead_lettered", summary.DeadLettered),
		zap.Int("lease_lost", summary.LeaseLost),
	)
	return summary, len(batch), err
}

// Process runs the handler for each message in order and reports exactly the
// messages that failed.
func (w *Worker) Process(batch []queuedomain.Message) queuedomain.BatchReport {
	var report queuedomain.BatchReport
	for _, msg := range batch {
		if err := w.processMessage(msg); err != nil {
			report.Fail(msg.ID, err)
			w.log.Warn("message failed",
				zap.String("message_id", msg.ID.String()),
				zap.String("order_id", msg.Attribute(events.AttrOrderID)),
				zap.Int("receive_count", msg.ReceiveCount),
				zap.String("outcome", queuedomain.Classify(err).String()),
				zap.Bool("transient", pkgdb.IsTransient(err)),
				zap.Error(err),
			)
		}
	}
	return report
}

// processMessage gives each message its own timeout rooted in a background
// context, so shutdown does not cancel work mid-flight.
func (w *Worker) processMessage(msg queuedomain.Message) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.MessageTimeout)
	defer cancel()

	ctx = tracing.ExtractAttributes(ctx, msg.StringAttributes())
	ctx = obsctx.WithMessageID(ctx, msg.ID.String())
	if orderID := msg.Attribute(events.AttrOrderID); orderID != "" {
		ctx = obsctx.WithOrderID(ctx, orderID)
	}

	ctx, span := w.tracer.Start(ctx, "consume "+w.queue.Name(),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", w.queue.Name()),
			attribute.String("messaging.message.id", msg.ID.String()),
			attribute.Int("messaging.receive_count", msg.ReceiveCount),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, queuedomain.Classify(err).String())
		}
		span.End()
	}()

	env, perr := events.Parse([]byte(msg.Body))
	if perr != nil {
		return queuedomain.Terminal(perr)
	}

	start := time.Now()
	defer func() {
		w.metrics.ObserveHandler(w.queue.Name(), time.Since(start))
		if r := recover(); r != nil {
			w.log.Error("handler panic",
				zap.String("message_id", msg.ID.String()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return w.handler.Handle(ctx, env)
}
