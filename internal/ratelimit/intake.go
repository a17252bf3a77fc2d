package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/orderflow/internal/config"
)

const keyIntakeCustomer = "orderflow:intake:customer:%s"

// IntakeLimiter budgets order creation per customer. A nil limiter allows
// everything.
type IntakeLimiter struct {
	bucket Allower
	rate   float64
	burst  int
}

func NewIntakeLimiter(cfg config.Config, client *redis.Client) (*IntakeLimiter, error) {
	if !cfg.RateLimit.Enabled || client == nil {
		return nil, nil
	}
	if cfg.RateLimit.IntakeRate <= 0 || cfg.RateLimit.IntakeBurst <= 0 {
		return nil, fmt.Errorf("intake rate limit must be positive")
	}
	return NewIntakeLimiterWith(NewTokenBucket(client), cfg.RateLimit.IntakeRate, cfg.RateLimit.IntakeBurst), nil
}

func NewIntakeLimiterWith(bucket Allower, rate float64, burst int) *IntakeLimiter {
	return &IntakeLimiter{bucket: bucket, rate: rate, burst: burst}
}

func (l *IntakeLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *IntakeLimiter) AllowCustomer(ctx context.Context, customerID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyIntakeCustomer, strings.TrimSpace(customerID))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
