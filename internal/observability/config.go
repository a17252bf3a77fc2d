package observability

import (
	"strings"

	"github.com/smallbiznis/orderflow/internal/config"
)

// Config is the observability view of the application config, shared by the
// logger, tracer and meter providers of every orderflow binary.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// LoadConfig normalizes cfg. DEPLOYMENT_ENV and SERVICE_VERSION win over the
// application environment and version when set.
func LoadConfig(cfg config.Config) Config {
	obs := cfg.Observability
	return Config{
		ServiceName:          firstNonEmpty(cfg.AppName, "orderflow"),
		Environment:          firstNonEmpty(obs.DeploymentEnv, cfg.Environment),
		Version:              firstNonEmpty(obs.ServiceVersion, cfg.AppVersion),
		LogLevel:             strings.ToLower(firstNonEmpty(obs.LogLevel, "info")),
		LogFormat:            strings.ToLower(firstNonEmpty(obs.LogFormat, "json")),
		OtelEnabled:          obs.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(firstNonEmpty(obs.OtelProtocol, "grpc")),
		OtelSamplingRatio:    obs.SamplingRatio,
	}
}

// Debug enables development logging and stack traces on errors.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
