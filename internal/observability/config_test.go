package observability

import (
	"testing"

	"github.com/smallbiznis/orderflow/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFallsBackToApplicationSettings(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppVersion:   "0.1.0",
		Environment:  "production",
		OTLPEndpoint: " collector:4317 ",
	})

	assert.Equal(t, Config{
		ServiceName:          "orderflow",
		Environment:          "production",
		Version:              "0.1.0",
		LogLevel:             "info",
		LogFormat:            "json",
		OtelExporterEndpoint: "collector:4317",
		OtelExporterProtocol: "grpc",
	}, cfg)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigPrefersObservabilityOverrides(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:     "orderflow-worker",
		AppVersion:  "0.1.0",
		Environment: "production",
		Observability: config.ObservabilityConfig{
			DeploymentEnv:  "staging",
			ServiceVersion: "2025.03.1",
			LogLevel:       "DEBUG",
			LogFormat:      "Console",
			OtelEnabled:    true,
			OtelProtocol:   "HTTP",
			SamplingRatio:  0.5,
		},
	})

	assert.Equal(t, "orderflow-worker", cfg.ServiceName)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "2025.03.1", cfg.Version)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, 0.5, cfg.OtelSamplingRatio)
	assert.True(t, cfg.Debug())
}

func TestDebugInDevelopmentEnvironments(t *testing.T) {
	for _, env := range []string{"dev", "Development", "local", "test"} {
		assert.True(t, Config{Environment: env, LogLevel: "info"}.Debug(), env)
	}
	assert.False(t, Config{Environment: "staging", LogLevel: "info"}.Debug())
}
