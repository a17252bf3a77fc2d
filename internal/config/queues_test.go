package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueConfigHolderDefaults(t *testing.T) {
	holder := NewStaticQueueConfigHolder(QueueDefaults{
		MaxReceiveCount:   3,
		VisibilityTimeout: 300 * time.Second,
		BatchSize:         10,
		RetryDelay:        5 * time.Second,
	})

	got := holder.Get(QueueInventory)
	assert.Equal(t, 3, got.MaxReceiveCount)
	assert.Equal(t, 300*time.Second, got.VisibilityTimeout)
	assert.Equal(t, 10, got.BatchSize)
	assert.Equal(t, 5*time.Second, got.RetryDelay)
}

func TestQueueConfigHolderOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queues.yml")
	content := `
defaults:
  visibilityTimeout: 60s
queues:
  billing-queue:
    maxReceiveCount: 5
    batchSize: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	parsed, err := decodeQueues(v)
	require.NoError(t, err)

	holder := NewStaticQueueConfigHolder(QueueDefaults{
		MaxReceiveCount:   3,
		VisibilityTimeout: 300 * time.Second,
		BatchSize:         10,
		RetryDelay:        5 * time.Second,
	})
	holder.current.Store(parsed)

	billing := holder.Get(QueueBilling)
	assert.Equal(t, 5, billing.MaxReceiveCount)
	assert.Equal(t, 2, billing.BatchSize)
	assert.Equal(t, 60*time.Second, billing.VisibilityTimeout)
	assert.Equal(t, 5*time.Second, billing.RetryDelay)

	inventory := holder.Get(QueueInventory)
	assert.Equal(t, 3, inventory.MaxReceiveCount)
	assert.Equal(t, 10, inventory.BatchSize)
	assert.Equal(t, 60*time.Second, inventory.VisibilityTimeout)
}

func TestDecodeQueuesRejectsNegativeValues(t *testing.T) {
	v := viper.New()
	v.Set("queues.inventory-queue.batchSize", -1)

	_, err := decodeQueues(v)
	assert.Error(t, err)
}

func TestGetenvDuration(t *testing.T) {
	t.Setenv("ORDERFLOW_TEST_DURATION", "45")
	assert.Equal(t, 45*time.Second, getenvDuration("ORDERFLOW_TEST_DURATION", time.Second))

	t.Setenv("ORDERFLOW_TEST_DURATION", "1500ms")
	assert.Equal(t, 1500*time.Millisecond, getenvDuration("ORDERFLOW_TEST_DURATION", time.Second))

	t.Setenv("ORDERFLOW_TEST_DURATION", "bogus")
	assert.Equal(t, time.Second, getenvDuration("ORDERFLOW_TEST_DURATION", time.Second))
}
