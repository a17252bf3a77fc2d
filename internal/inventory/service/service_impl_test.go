package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/orderflow/internal/clock"
	"github.com/smallbiznis/orderflow/internal/events"
	"github.com/smallbiznis/orderflow/internal/inventory/domain"
	"github.com/smallbiznis/orderflow/internal/inventory/repository"
	queuedomain "github.com/smallbiznis/orderflow/internal/queue/domain"
	"github.com/smallbiznis/orderflow/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupInventory(t *testing.T, records ...domain.Record) (domain.Service, *gorm.DB) {
	t.Helper()
	return setupInventoryOn(t, dbtest.Open(t, &domain.Record{}, &domain.Application{}), records...)
}

func setupInventoryOn(t *testing.T, db *gorm.DB, records ...domain.Record) (domain.Service, *gorm.DB) {
	t.Helper()
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
	require.NoError(t, svc.Seed(context.Background(), records))
	return svc, db
}

func orderEnvelope(orderID string, items ...events.OrderItem) events.Envelope {
	return events.NewOrderCreated(events.OrderSnapshot{
		OrderID: orderID,
		Items:   items,
		Status:  "pending",
	}, time.Now())
}

func TestHandleDecrementsStock(t *testing.T) {
	svc, _ := setupInventory(t,
		domain.Record{ProductID: "prod-001", ProductName: "Laptop", Stock: 10},
		domain.Record{ProductID: "prod-002", ProductName: "Mouse", Stock: 5},
	)
	ctx := context.Background()

	err := svc.Handle(ctx, orderEnvelope("order-1",
		events.OrderItem{ProductID: "prod-001", ProductName: "Laptop", Quantity: 3},
		events.OrderItem{ProductID: "prod-002", ProductName: "Mouse", Quantity: 5},
	))
	require.NoError(t, err)

	laptop, err := svc.Get(ctx, "prod-001")
	require.NoError(t, err)
	assert.Equal(t, int64(7), laptop.Stock)
	assert.Equal(t, "order-1", laptop.LastOrderID)

	mouse, err := svc.Get(ctx, "prod-002")
	require.NoError(t, err)
	assert.Equal(t, int64(0), mouse.Stock)
}

func TestDuplicateEnvelopeIsNoOp(t *testing.T) {
	svc, db := setupInventory(t, domain.Record{ProductID: "prod-001", ProductName: "Laptop", Stock: 10})
	ctx := context.Background()
	env := orderEnvelope("order-1", events.OrderItem{ProductID: "prod-001", Quantity: 4})

	require.NoError(t, svc.Handle(ctx, env))
	require.NoError(t, svc.Handle(ctx, env))

	record, err := svc.Get(ctx, "prod-001")
	require.NoError(t, err)
	assert.Equal(t, int64(6), record.Stock)

	var applications int64
	require.NoError(t, db.Model(&domain.Application{}).Count(&applications).Error)
	assert.Equal(t, int64(1), applications)
}

func TestRepeatedProductLinesDecrementTheirSum(t *testing.T) {
	svc, db := setupInventory(t, domain.Record{ProductID: "prod-001", ProductName: "Laptop", Stock: 10})
	ctx := context.Background()
	env := orderEnvelope("order-1",
		events.OrderItem{ProductID: "prod-001", ProductName: "Laptop", Quantity: 2},
		events.OrderItem{ProductID: "prod-001", ProductName: "Laptop", Quantity: 3},
	)

	require.NoError(t, svc.Handle(ctx, env))
	require.NoError(t, svc.Handle(ctx, env))

	record, err := svc.Get(ctx, "prod-001")
	require.NoError(t, err)
	assert.Equal(t, int64(5), record.Stock)

	var apps []domain.Application
	require.NoError(t, db.Find(&apps).Error)
	require.Len(t, apps, 1)
	assert.Equal(t, int64(5), apps[0].Quantity)
}

func TestRepeatedProductLinesFailOnTheirSum(t *testing.T) {
	svc, _ := setupInventory(t, domain.Record{ProductID: "prod-001", ProductName: "Laptop", Stock: 4})

	err := svc.Handle(context.Background(), orderEnvelope("order-1",
		events.OrderItem{ProductID: "prod-001", Quantity: 2},
		events.OrderItem{ProductID: "prod-001", Quantity: 3},
	))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Available: 4, Requested: 5")

	record, err := svc.Get(context.Background(), "prod-001")
	require.NoError(t, err)
	assert.Equal(t, int64(4), record.Stock)
}

func TestInsufficientStockIsTerminalAndLeavesStock(t *testing.T) {
	svc, db := setupInventory(t, domain.Record{ProductID: "prod-001", ProductName: "Laptop", Stock: 2})
	ctx := context.Background()

	err := svc.Handle(ctx, orderEnvelope("order-1", events.OrderItem{ProductID: "prod-001", Quantity: 3}))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, queuedomain.OutcomeTerminal, queuedomain.Classify(err))
	assert.Contains(t, err.Error(), "Insufficient stock for Laptop. Available: 2, Requested: 3")

	record, err := svc.Get(ctx, "prod-001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), record.Stock)

	var applications int64
	require.NoError(t, db.Model(&domain.Application{}).Count(&applications).Error)
	assert.Zero(t, applications, "a failed decrement must not leave a dedup row")
}

func TestUnknownProductIsTerminal(t *testing.T) {
	svc, _ := setupInventory(t, domain.Record{ProductID: "prod-001", ProductName: "Laptop", Stock: 2})

	err := svc.Handle(context.Background(), orderEnvelope("order-1",
		events.OrderItem{ProductID: "prod-001", Quantity: 1},
		events.OrderItem{ProductID: "prod-404", Quantity: 1},
	))
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, queuedomain.OutcomeTerminal, queuedomain.Classify(err))
	assert.Contains(t, err.Error(), "Product not found: prod-404")

	record, err := svc.Get(context.Background(), "prod-001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.Stock, "items are applied independently")
}

func TestConcurrentDecrementNeverOversells(t *testing.T) {
	db := dbtest.OpenFile(t, 8, &domain.Record{}, &domain.Application{})
	svc, _ := setupInventoryOn(t, db, domain.Record{ProductID: "prod-001", ProductName: "Laptop", Stock: 100})
	ctx := context.Background()
	start := make(chan struct{})

	const orders = 50
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			err := svc.Handle(ctx, orderEnvelope(fmt.Sprintf("order-%d", i),
				events.OrderItem{ProductID: "prod-001", Quantity: 3},
			))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	record, err := svc.Get(ctx, "prod-001")
	require.NoError(t, err)
	assert.Equal(t, 33, succeeded)
	assert.Equal(t, 17, insufficient)
	assert.Equal(t, int64(1), record.Stock)
	assert.Equal(t, int64(100-3*succeeded), record.Stock)
}
