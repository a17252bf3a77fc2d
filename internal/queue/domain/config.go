package domain

import (
	"time"

	"github.com/smallbiznis/orderflow/internal/config"
)

// Config is the delivery policy of one queue.
type Config struct {
	// MaxReceiveCount is the number of deliveries after which a failing
	// message moves to the dead letter sink.
	MaxReceiveCount   int
	VisibilityTimeout time.Duration
	BatchSize         int
	// RetryDelay is how long a released message stays hidden before redelivery.
	RetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxReceiveCount:   3,
		VisibilityTimeout: 300 * time.Second,
		BatchSize:         10,
		RetryDelay:        5 * time.Second,
	}
}

func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()
	if c.MaxReceiveCount <= 0 {
		c.MaxReceiveCount = defaults.MaxReceiveCount
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = defaults.VisibilityTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	return c
}

// ConfigFromSettings converts file/env queue settings into a Config.
func ConfigFromSettings(s config.QueueSettings) Config {
	return Config{
		MaxReceiveCount:   s.MaxReceiveCount,
		VisibilityTimeout: s.VisibilityTimeout,
		BatchSize:         s.BatchSize,
		RetryDelay:        s.RetryDelay,
	}.WithDefaults()
}

// ConfigFunc yields the current Config; queues read it on every operation so
// reloaded settings apply without a restart.
type ConfigFunc func() Config

func Static(cfg Config) ConfigFunc {
	cfg = cfg.WithDefaults()
	return func() Config { return cfg }
}
