package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderflow/internal/clock"
	"github.com/smallbiznis/orderflow/internal/queue/domain"
	"github.com/smallbiznis/orderflow/internal/queue/repository"
	"github.com/smallbiznis/orderflow/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testConfig = domain.Config{
	MaxReceiveCount:   3,
	VisibilityTimeout: 30 * time.Second,
	BatchSize:         10,
	RetryDelay:        5 * time.Second,
}

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t, &domain.Message{}, &domain.DeadLetter{})
	svc, clk := newTestServiceWith(t, db, repository.Provide())
	return svc, clk, db
}

func newTestServiceWith(t *testing.T, db *gorm.DB, repo domain.Repository) (domain.Service, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repo,
	})
	return svc, clk
}

func enqueueN(t *testing.T, svc domain.Service, queue string, n int) []domain.Message {
	t.Helper()
	out := make([]domain.OutgoingMessage, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.OutgoingMessage{
			Queue:      queue,
			Subject:    "New Order Created",
			Attributes: map[string]string{"orderId": fmt.Sprintf("order-%d", i)},
			Body:       fmt.Sprintf(`{"n":%d}`, i),
		})
	}
	msgs, err := svc.Enqueue(context.Background(), out)
	require.NoError(t, err)
	return msgs
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestReceiveLeasesAndHidesMessages(t *testing.T) {
	svc, clk, _ := newTestService(t)
	q := svc.Open("billing-queue", domain.Static(testConfig))
	enqueueN(t, svc, "billing-queue", 12)

	ctx := context.Background()
	batch, err := q.Receive(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, batch, 10)
	for _, msg := range batch {
		assert.Equal(t, 1, msg.ReceiveCount)
		assert.NotEmpty(t, msg.Receipt)
		assert.Equal(t, "New Order Created", msg.Subject)
	}

	rest, err := q.Receive(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	none, err := q.Receive(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	clk.Advance(31 * time.Second)
	again, err := q.Receive(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, again, 10)
	assert.Equal(t, 2, again[0].ReceiveCount)
}

func TestQueuesAreIsolated(t *testing.T) {
	svc, _, _ := newTestService(t)
	enqueueN(t, svc, "inventory-queue", 1)

	batch, err := svc.Open("billing-queue", domain.Static(testConfig)).Receive(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestAckRemovesMessage(t *testing.T) {
	svc, clk, db := newTestService(t)
	q := svc.Open("billing-queue", domain.Static(testConfig))
	enqueueN(t, svc, "billing-queue", 1)

	ctx := context.Background()
	batch, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	require.NoError(t, q.Ack(ctx, batch[0]))
	assert.Equal(t, int64(0), countRows(t, db, &domain.Message{}))

	clk.Advance(time.Hour)
	again, err := q.Receive(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestAckWithStaleReceiptIsRejected(t *testing.T) {
	svc, clk, db := newTestService(t)
	q := svc.Open("billing-queue", domain.Static(testConfig))
	enqueueN(t, svc, "billing-queue", 1)

	ctx := context.Background()
	first, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	clk.Advance(31 * time.Second)
	second, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)

	err = q.Ack(ctx, first[0])
	assert.ErrorIs(t, err, domain.ErrLeaseLost)
	assert.Equal(t, int64(1), countRows(t, db, &domain.Message{}))

	require.NoError(t, q.Ack(ctx, second[0]))
	assert.Equal(t, int64(0), countRows(t, db, &domain.Message{}))
}

func TestFailingMessageDeadLettersExactlyOnceAfterMaxAttempts(t *testing.T) {
	svc, clk, db := newTestService(t)
	q := svc.Open("inventory-queue", domain.Static(testConfig))
	enqueued := enqueueN(t, svc, "inventory-queue", 1)

	ctx := context.Background()
	cause := errors.New("storage unavailable")
	attempts := 0
	for i := 0; i < 5; i++ {
		batch, err := q.Receive(ctx, 0)
		require.NoError(t, err)
		for _, msg := range batch {
			attempts++
			require.NoError(t, q.Retry(ctx, msg, cause))
		}
		clk.Advance(testConfig.RetryDelay + time.Second)
	}

	assert.Equal(t, 3, attempts)
	assert.Equal(t, int64(0), countRows(t, db, &domain.Message{}))
	assert.Equal(t, int64(1), countRows(t, db, &domain.DeadLetter{}))

	letters, err := svc.ListDeadLetters(ctx, domain.DeadLetterFilter{Queue: "inventory-queue"})
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, enqueued[0].ID, letters[0].MessageID)
	assert.Equal(t, domain.ReasonExhausted, letters[0].Reason)
	assert.Equal(t, 3, letters[0].ReceiveCount)
	assert.Equal(t, "storage unavailable", letters[0].LastError)
	assert.Equal(t, "order-0", letters[0].Attributes["orderId"])
}

func TestTerminalFailureSkipsRetries(t *testing.T) {
	svc, _, db := newTestService(t)
	q := svc.Open("inventory-queue", domain.Static(testConfig))
	enqueueN(t, svc, "inventory-queue", 1)

	ctx := context.Background()
	batch, err := q.Receive(ctx, 0)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	var report domain.BatchReport
	report.Fail(batch[0].ID, domain.Terminal(errors.New("product_not_found")))
	summary, err := q.Complete(ctx, batch, report)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DeadLettered)

	letters, err := svc.ListDeadLetters(ctx, domain.DeadLetterFilter{})
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, domain.ReasonTerminal, letters[0].Reason)
	assert.Equal(t, 1, letters[0].ReceiveCount)
	assert.Equal(t, int64(0), countRows(t, db, &domain.Message{}))
}

func TestCompleteAcksOnlySuccesses(t *testing.T) {
	svc, clk, db := newTestService(t)
	q := svc.Open("notification-queue", domain.Static(testConfig))
	enqueueN(t, svc, "notification-queue", 10)

	ctx := context.Background()
	batch, err := q.Receive(ctx, 0)
	require.NoError(t, err)
	require.Len(t, batch, 10)

	var report domain.BatchReport
	failed := map[snowflake.ID]bool{}
	for _, i := range []int{1, 4, 7} {
		report.Fail(batch[i].ID, errors.New("dispatch timeout"))
		failed[batch[i].ID] = true
	}

	summary, err := q.Complete(ctx, batch, report)
	require.NoError(t, err)
	assert.Equal(t, domain.CompletionSummary{Acked: 7, Retried: 3}, summary)
	assert.Equal(t, int64(3), countRows(t, db, &domain.Message{}))

	clk.Advance(testConfig.RetryDelay)
	redelivered, err := q.Receive(ctx, 0)
	require.NoError(t, err)
	require.Len(t, redelivered, 3)
	for _, msg := range redelivered {
		assert.True(t, failed[msg.ID])
		assert.Equal(t, 2, msg.ReceiveCount)
	}
}

func TestExpiredLastAttemptIsSweptToDeadLetters(t *testing.T) {
	svc, clk, db := newTestService(t)
	q := svc.Open("billing-queue", domain.Static(testConfig))
	enqueueN(t, svc, "billing-queue", 1)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		batch, err := q.Receive(ctx, 0)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		clk.Advance(testConfig.VisibilityTimeout + time.Second)
	}

	batch, err := q.Receive(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, int64(0), countRows(t, db, &domain.Message{}))
	assert.Equal(t, int64(1), countRows(t, db, &domain.DeadLetter{}))
}

func TestConcurrentReceiversNeverShareALease(t *testing.T) {
	db := dbtest.OpenFile(t, 8, &domain.Message{}, &domain.DeadLetter{})
	svc, _ := newTestServiceWith(t, db, repository.Provide())
	enqueueN(t, svc, "inventory-queue", 40)

	ctx := context.Background()
	start := make(chan struct{})
	var (
		mu   sync.Mutex
		seen = map[snowflake.ID]int{}
		errs []error
		wg   sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := svc.Open("inventory-queue", domain.Static(testConfig))
			<-start
			for {
				batch, err := q.Receive(ctx, 0)
				mu.Lock()
				if err != nil {
					errs = append(errs, err)
				}
				for _, msg := range batch {
					seen[msg.ID]++
				}
				mu.Unlock()
				if err != nil || len(batch) == 0 {
					return
				}
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, errs)
	assert.Len(t, seen, 40)
	for id, n := range seen {
		assert.Equal(t, 1, n, "message %s leased %d times", id, n)
	}
}

func TestStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	q := svc.Open("billing-queue", domain.Static(testConfig))
	enqueueN(t, svc, "billing-queue", 3)

	ctx := context.Background()
	batch, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.NoError(t, q.DeadLetter(ctx, batch[0], domain.ReasonTerminal, errors.New("bad")))

	_, err = q.Receive(ctx, 1)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "billing-queue")
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Queue: "billing-queue", Visible: 1, InFlight: 1, DeadLetters: 1}, stats)
}

func TestEnqueueRejectsEmptyBody(t *testing.T) {
	svc, _, db := newTestService(t)
	_, err := svc.Enqueue(context.Background(), []domain.OutgoingMessage{
		{Queue: "billing-queue", Body: "{}"},
		{Queue: "inventory-queue", Body: ""},
	})
	assert.ErrorIs(t, err, domain.ErrEmptyBody)
	assert.Equal(t, int64(0), countRows(t, db, &domain.Message{}))
}

// failingLeaseRepo fails every Lease call after the first n succeed.
type failingLeaseRepo struct {
	domain.Repository
	n     int
	calls int
}

func (r *failingLeaseRepo) Lease(ctx context.Context, db *gorm.DB, msg domain.Message, receipt string, now, visibleAt time.Time) (bool, error) {
	r.calls++
	if r.calls > r.n {
		return false, errors.New("database is locked")
	}
	return r.Repository.Lease(ctx, db, msg, receipt, now, visibleAt)
}

func TestReceiveReturnsPartialBatchWhenLeaseFailsMidway(t *testing.T) {
	db := dbtest.Open(t, &domain.Message{}, &domain.DeadLetter{})
	svc, _ := newTestServiceWith(t, db, &failingLeaseRepo{Repository: repository.Provide(), n: 2})
	q := svc.Open("billing-queue", domain.Static(testConfig))
	enqueueN(t, svc, "billing-queue", 5)

	batch, err := q.Receive(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	for _, msg := range batch {
		assert.NotEmpty(t, msg.Receipt)
		require.NoError(t, q.Ack(context.Background(), msg))
	}

	stats, err := svc.Stats(context.Background(), "billing-queue")
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Queue: "billing-queue", Visible: 3}, stats)
}

func TestReceiveFailsWhenFirstLeaseFails(t *testing.T) {
	db := dbtest.Open(t, &domain.Message{}, &domain.DeadLetter{})
	svc, _ := newTestServiceWith(t, db, &failingLeaseRepo{Repository: repository.Provide(), n: 0})
	q := svc.Open("billing-queue", domain.Static(testConfig))
	enqueueN(t, svc, "billing-queue", 3)

	batch, err := q.Receive(context.Background(), 0)
	require.Error(t, err)
	assert.Nil(t, batch)
	assert.Contains(t, err.Error(), "database is locked")
}
