package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// QueueSettings is the per-queue delivery policy.
type QueueSettings struct {
	MaxReceiveCount   int           `mapstructure:"maxReceiveCount"`
	VisibilityTimeout time.Duration `mapstructure:"visibilityTimeout"`
	BatchSize         int           `mapstructure:"batchSize"`
	RetryDelay        time.Duration `mapstructure:"retryDelay"`
}

type queuesFile struct {
	Defaults QueueSettings            `mapstructure:"defaults"`
	Queues   map[string]QueueSettings `mapstructure:"queues"`
}

type QueueConfigHolder struct {
	defaults QueueSettings
	current  atomic.Value // holds queuesFile
}

// NewQueueConfigHolder loads queues.yml when present and watches it for changes.
// Missing files fall back to the environment defaults.
func NewQueueConfigHolder(cfg Config, log *zap.Logger) (*QueueConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("queues")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/orderflow")
	v.AddConfigPath(".")

	holder := NewStaticQueueConfigHolder(cfg.Queue)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		return holder, nil
	}

	parsed, err := decodeQueues(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(parsed)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeQueues(v)
		if err != nil {
			log.Warn("queue config reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("queue config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticQueueConfigHolder builds a holder that only serves the given defaults.
func NewStaticQueueConfigHolder(defaults QueueDefaults) *QueueConfigHolder {
	holder := &QueueConfigHolder{
		defaults: QueueSettings{
			MaxReceiveCount:   defaults.MaxReceiveCount,
			VisibilityTimeout: defaults.VisibilityTimeout,
			BatchSize:         defaults.BatchSize,
			RetryDelay:        defaults.RetryDelay,
		},
	}
	holder.current.Store(queuesFile{})
	return holder
}

// Get returns the effective settings for a queue: file defaults, then
// per-queue overrides, layered over the environment defaults.
func (h *QueueConfigHolder) Get(queue string) QueueSettings {
	file := h.current.Load().(queuesFile)
	out := merge(h.defaults, file.Defaults)
	if override, ok := file.Queues[strings.TrimSpace(queue)]; ok {
		out = merge(out, override)
	}
	return out
}

func merge(base, override QueueSettings) QueueSettings {
	if override.MaxReceiveCount > 0 {
		base.MaxReceiveCount = override.MaxReceiveCount
	}
	if override.VisibilityTimeout > 0 {
		base.VisibilityTimeout = override.VisibilityTimeout
	}
	if override.BatchSize > 0 {
		base.BatchSize = override.BatchSize
	}
	if override.RetryDelay > 0 {
		base.RetryDelay = override.RetryDelay
	}
	return base
}

func decodeQueues(v *viper.Viper) (queuesFile, error) {
	var parsed queuesFile
	if err := v.Unmarshal(&parsed); err != nil {
		return queuesFile{}, err
	}
	if err := validateQueueSettings("defaults", parsed.Defaults); err != nil {
		return queuesFile{}, err
	}
	for name, settings := range parsed.Queues {
		if err := validateQueueSettings(name, settings); err != nil {
			return queuesFile{}, err
		}
	}
	return parsed, nil
}

func validateQueueSettings(name string, s QueueSettings) error {
	if s.MaxReceiveCount < 0 {
		return fmt.Errorf("queues.%s.maxReceiveCount cannot be negative", name)
	}
	if s.BatchSize < 0 {
		return fmt.Errorf("queues.%s.batchSize cannot be negative", name)
	}
	if s.VisibilityTimeout < 0 || s.RetryDelay < 0 {
		return fmt.Errorf("queues.%s durations cannot be negative", name)
	}
	return nil
}
