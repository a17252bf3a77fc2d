package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/orderflow/internal/billing"
	"github.com/smallbiznis/orderflow/internal/bus"
	"github.com/smallbiznis/orderflow/internal/clock"
	"github.com/smallbiznis/orderflow/internal/config"
	"github.com/smallbiznis/orderflow/internal/consumer"
	"github.com/smallbiznis/orderflow/internal/inventory"
	"github.com/smallbiznis/orderflow/internal/migration"
	"github.com/smallbiznis/orderflow/internal/notification"
	"github.com/smallbiznis/orderflow/internal/observability"
	"github.com/smallbiznis/orderflow/internal/order"
	"github.com/smallbiznis/orderflow/internal/providers"
	"github.com/smallbiznis/orderflow/internal/queue"
	queuedomain "github.com/smallbiznis/orderflow/internal/queue/domain"
	"github.com/smallbiznis/orderflow/internal/ratelimit"
	"github.com/smallbiznis/orderflow/internal/server"
	"github.com/smallbiznis/orderflow/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

type testEnv struct {
	app     *fx.App
	queues  queuedomain.Service
	baseURL string
	httpSrv *httptest.Server
	dataDir string
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	dataDir, err := os.MkdirTemp("", "orderflow-e2e-")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create data dir:", err)
		os.Exit(1)
	}
	setDefaultEnv(dataDir)

	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		_ = os.RemoveAll(dataDir)
		os.Exit(1)
	}
	env.dataDir = dataDir

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func startEnv() (*testEnv, error) {
	var (
		engine *gin.Engine
		queues queuedomain.Service
	)

	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(func(cfg config.Config) (*snowflake.Node, error) {
			return snowflake.NewNode(cfg.NodeID)
		}),
		db.Module,
		clock.Module,
		migration.Module,

		queue.Module,
		bus.Module,
		ratelimit.Module,
		order.Module,
		providers.Module,
		inventory.Module,
		notification.Module,
		billing.Module,
		consumer.Module,

		fx.Provide(server.NewEngine),
		fx.Invoke(server.NewServer),
		fx.Populate(&engine, &queues),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	httpSrv := httptest.NewServer(engine)
	return &testEnv{
		app:     app,
		queues:  queues,
		baseURL: httpSrv.URL,
		httpSrv: httpSrv,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = e.app.Stop(ctx)
	}
	if e.dataDir != "" {
		_ = os.RemoveAll(e.dataDir)
	}
}

func setDefaultEnv(dataDir string) {
	setEnvIfEmpty("ENVIRONMENT", "test")
	setEnvIfEmpty("LOG_LEVEL", "error")
	_ = os.Setenv("DATABASE_TYPE", "sqlite")
	_ = os.Setenv("DATABASE_PATH", filepath.Join(dataDir, "orderflow.db"))
	_ = os.Setenv("DATABASE_MAX_OPEN_CONN", "1")
	_ = os.Setenv("DATABASE_AUTO_MIGRATE", "true")
	_ = os.Setenv("SEED_INVENTORY", "true")
	_ = os.Setenv("RATE_LIMIT_ENABLED", "false")
	_ = os.Setenv("EMAIL_PROVIDER", "log")
	_ = os.Setenv("CONSUMER_POLL_INTERVAL", "50ms")
	_ = os.Setenv("QUEUE_RETRY_DELAY", "100ms")
}

func setEnvIfEmpty(key, value string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	_ = os.Setenv(key, value)
}

func doJSON(t *testing.T, method, path string, payload any) (int, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, env.baseURL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func placeOrder(t *testing.T, customerID string, items ...map[string]any) string {
	t.Helper()

	status, body := doJSON(t, http.MethodPost, "/orders", map[string]any{
		"customerId":    customerID,
		"customerEmail": customerID + "@example.com",
		"items":         items,
	})
	require.Equal(t, http.StatusCreated, status, body)
	orderID, _ := body["orderId"].(string)
	require.NotEmpty(t, orderID)
	return orderID
}

func item(productID, name string, quantity, price int64) map[string]any {
	return map[string]any{
		"productId":   productID,
		"productName": name,
		"quantity":    quantity,
		"price":       price,
	}
}

func TestE2E_HealthCheck(t *testing.T) {
	status, body := doJSON(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestE2E_OrderFansOutToEveryConsumer(t *testing.T) {
	orderID := placeOrder(t, "cust-fanout", item("prod-002", "Mouse", 2, 2980))

	require.Eventually(t, func() bool {
		status, _ := doJSON(t, http.MethodGet, "/orders/"+orderID+"/billing", nil)
		return status == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond)

	_, billingRecord := doJSON(t, http.MethodGet, "/orders/"+orderID+"/billing", nil)
	assert.Equal(t, float64(5960), billingRecord["subtotal"])
	assert.Equal(t, float64(596), billingRecord["tax"])
	assert.Equal(t, float64(6556), billingRecord["total"])

	require.Eventually(t, func() bool {
		status, body := doJSON(t, http.MethodGet, "/orders/"+orderID+"/notification", nil)
		return status == http.StatusOK && body["status"] == "sent"
	}, 10*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		_, body := doJSON(t, http.MethodGet, "/inventory/prod-002", nil)
		return body["stock"] == float64(198)
	}, 10*time.Second, 50*time.Millisecond)

	_, orderBody := doJSON(t, http.MethodGet, "/orders/"+orderID, nil)
	assert.Equal(t, "pending", orderBody["status"])
	assert.NotEmpty(t, orderBody["publishedAt"])
}

func TestE2E_InsufficientStockIsDeadLettered(t *testing.T) {
	orderID := placeOrder(t, "cust-bulk", item("prod-004", "Monitor", 1000, 34800))

	require.Eventually(t, func() bool {
		letters, err := env.queues.ListDeadLetters(context.Background(), queuedomain.DeadLetterFilter{Queue: config.QueueInventory})
		if err != nil {
			return false
		}
		for _, dl := range letters {
			if dl.Attributes["orderId"] == orderID {
				return dl.Reason == queuedomain.ReasonTerminal
			}
		}
		return false
	}, 10*time.Second, 50*time.Millisecond)

	_, stock := doJSON(t, http.MethodGet, "/inventory/prod-004", nil)
	assert.Equal(t, float64(40), stock["stock"])

	// Billing sees the same event independently of inventory.
	require.Eventually(t, func() bool {
		status, _ := doJSON(t, http.MethodGet, "/orders/"+orderID+"/billing", nil)
		return status == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond)

	status, body := doJSON(t, http.MethodGet, "/dead-letters?queue="+config.QueueInventory, nil)
	require.Equal(t, http.StatusOK, status)
	assert.GreaterOrEqual(t, body["count"], float64(1))
}

func TestE2E_InvalidOrderIsRejected(t *testing.T) {
	status, body := doJSON(t, http.MethodPost, "/orders", map[string]any{
		"customerId":    "cust-invalid",
		"customerEmail": "invalid@example.com",
		"items":         []any{},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "items", body["field"])
}
