package consumer

import (
	"time"

	"github.com/smallbiznis/orderflow/internal/config"
)

// Config controls the polling loop of one consumer worker.
type Config struct {
	Replicas       int
	PollInterval   time.Duration
	MessageTimeout time.Duration
	// CompleteTimeout bounds the ack/retry/dead-letter pass after a batch.
	CompleteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Replicas:        2,
		PollInterval:    time.Second,
		MessageTimeout:  30 * time.Second,
		CompleteTimeout: 10 * time.Second,
	}
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		Replicas:       cfg.Consumer.Replicas,
		PollInterval:   cfg.Consumer.PollInterval,
		MessageTimeout: cfg.Consumer.MessageTimeout,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Replicas <= 0 {
		c.Replicas = defaults.Replicas
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.MessageTimeout <= 0 {
		c.MessageTimeout = defaults.MessageTimeout
	}
	if c.CompleteTimeout <= 0 {
		c.CompleteTimeout = defaults.CompleteTimeout
	}
	return c
}
