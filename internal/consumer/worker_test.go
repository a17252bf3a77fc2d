package consumer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderflow/internal/clock"
	"github.com/smallbiznis/orderflow/internal/events"
	queuedomain "github.com/smallbiznis/orderflow/internal/queue/domain"
	queuerepo "github.com/smallbiznis/orderflow/internal/queue/repository"
	queueservice "github.com/smallbiznis/orderflow/internal/queue/service"
	"github.com/smallbiznis/orderflow/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testQueue = "billing-queue"

type fixture struct {
	svc   queuedomain.Service
	queue queuedomain.Queue
	clock *clock.FakeClock
	db    *gorm.DB
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t, &queuedomain.Message{}, &queuedomain.DeadLetter{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := queueservice.New(queueservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  queuerepo.Provide(),
	})
	q := svc.Open(testQueue, queuedomain.Static(queuedomain.Config{
		MaxReceiveCount:   3,
		VisibilityTimeout: 30 * time.Second,
		BatchSize:         10,
		RetryDelay:        5 * time.Second,
	}))
	return fixture{svc: svc, queue: q, clock: clk, db: db}
}

func (f fixture) publish(t *testing.T, orderIDs ...string) {
	t.Helper()
	out := make([]queuedomain.OutgoingMessage, 0, len(orderIDs))
	for _, id := range orderIDs {
		env := events.NewOrderCreated(events.OrderSnapshot{
			OrderID:     id,
			Items:       []events.OrderItem{{ProductID: "prod-001", ProductName: "Pen", Quantity: 1, Price: 100}},
			Status:      "pending",
			TotalAmount: 100,
		}, time.Now())
		body, err := env.Marshal()
		require.NoError(t, err)
		out = append(out, queuedomain.OutgoingMessage{
			Queue:      testQueue,
			Subject:    events.SubjectOrderCreated,
			Attributes: env.Attributes(),
			Body:       body,
		})
	}
	_, err := f.svc.Enqueue(context.Background(), out)
	require.NoError(t, err)
}

func (f fixture) remainingOrderIDs(t *testing.T) map[string]bool {
	t.Helper()
	var rows []queuedomain.Message
	require.NoError(t, f.db.Where("queue = ?", testQueue).Find(&rows).Error)
	out := map[string]bool{}
	for _, row := range rows {
		out[row.Attribute(events.AttrOrderID)] = true
	}
	return out
}

func TestPartialBatchFailureReportsOnlyFailedMessages(t *testing.T) {
	f := setup(t)
	ids := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		ids = append(ids, fmt.Sprintf("order-%d", i))
	}
	f.publish(t, ids...)

	failing := map[string]bool{"order-2": true, "order-5": true, "order-8": true}
	handler := HandlerFunc(func(ctx context.Context, env events.Envelope) error {
		if failing[env.Order.OrderID] {
			return errors.New("downstream timeout")
		}
		return nil
	})
	w := NewWorker(f.queue, handler, Config{Replicas: 1}, zap.NewNop(), nil)

	batch, err := f.queue.Receive(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, batch, 10)

	report := w.Process(batch)
	require.Len(t, report.Failures, 3)
	for _, failure := range report.Failures {
		assert.Equal(t, queuedomain.OutcomeRetryable, failure.Outcome)
	}

	summary, err := f.queue.Complete(context.Background(), batch, report)
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Acked)
	assert.Equal(t, 3, summary.Retried)
	assert.Equal(t, failing, f.remainingOrderIDs(t))
}

func TestRunOnceDeadLettersAfterRepeatedFailures(t *testing.T) {
	f := setup(t)
	f.publish(t, "order-1")

	calls := 0
	handler := HandlerFunc(func(ctx context.Context, env events.Envelope) error {
		calls++
		return errors.New("storage unavailable")
	})
	w := NewWorker(f.queue, handler, Config{Replicas: 1}, zap.NewNop(), nil)

	for i := 0; i < 5; i++ {
		_, err := w.RunOnce(context.Background())
		require.NoError(t, err)
		f.clock.Advance(6 * time.Second)
	}

	assert.Equal(t, 3, calls)
	letters, err := f.svc.ListDeadLetters(context.Background(), queuedomain.DeadLetterFilter{Queue: testQueue})
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, queuedomain.ReasonExhausted, letters[0].Reason)
	assert.Empty(t, f.remainingOrderIDs(t))
}

func TestMalformedEnvelopeIsDeadLetteredImmediately(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Enqueue(context.Background(), []queuedomain.OutgoingMessage{
		{Queue: testQueue, Subject: events.SubjectOrderCreated, Body: `{"eventType":"ORDER_CREATED","order":{}}`},
	})
	require.NoError(t, err)

	called := false
	w := NewWorker(f.queue, HandlerFunc(func(context.Context, events.Envelope) error {
		called = true
		return nil
	}), Config{Replicas: 1}, zap.NewNop(), nil)

	summary, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, 1, summary.DeadLettered)

	letters, err := f.svc.ListDeadLetters(context.Background(), queuedomain.DeadLetterFilter{})
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, queuedomain.ReasonTerminal, letters[0].Reason)
	assert.Contains(t, letters[0].LastError, "order.orderId")
}

func TestHandlerPanicIsRetried(t *testing.T) {
	f := setup(t)
	f.publish(t, "order-1", "order-2")

	w := NewWorker(f.queue, HandlerFunc(func(ctx context.Context, env events.Envelope) error {
		if env.Order.OrderID == "order-1" {
			panic("nil map write")
		}
		return nil
	}), Config{Replicas: 1}, zap.NewNop(), nil)

	summary, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queuedomain.CompletionSummary{Acked: 1, Retried: 1}, summary)
	assert.Equal(t, map[string]bool{"order-1": true}, f.remainingOrderIDs(t))
}

func TestTerminalHandlerErrorSkipsRetries(t *testing.T) {
	f := setup(t)
	f.publish(t, "order-1")

	w := NewWorker(f.queue, HandlerFunc(func(context.Context, events.Envelope) error {
		return queuedomain.Terminal(errors.New("product_not_found"))
	}), Config{Replicas: 1}, zap.NewNop(), nil)

	summary, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DeadLettered)
	assert.Empty(t, f.remainingOrderIDs(t))
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	f := setup(t)
	w := NewWorker(f.queue, HandlerFunc(func(context.Context, events.Envelope) error { return nil }),
		Config{Replicas: 3, PollInterval: 10 * time.Millisecond}, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
