package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	OTLPEndpoint  string
	Observability ObservabilityConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool

	Topic  string
	Queues []string

	Queue      QueueDefaults
	Consumer   ConsumerConfig
	Reconciler ReconcilerConfig
	RateLimit  RateLimitConfig
	Email      EmailConfig

	SeedInventory bool
}

// ObservabilityConfig carries the logging and OpenTelemetry knobs.
type ObservabilityConfig struct {
	DeploymentEnv  string
	ServiceVersion string
	LogLevel       string
	LogFormat      string
	OtelEnabled    bool
	OtelProtocol   string
	SamplingRatio  float64
}

// QueueDefaults are applied to every queue unless overridden in queues.yml.
type QueueDefaults struct {
	MaxReceiveCount   int
	VisibilityTimeout time.Duration
	BatchSize         int
	RetryDelay        time.Duration
}

type ConsumerConfig struct {
	Queues         []string
	Replicas       int
	PollInterval   time.Duration
	MessageTimeout time.Duration
}

type ReconcilerConfig struct {
	Enabled     bool
	Interval    time.Duration
	GracePeriod time.Duration
	BatchSize   int
	MaxAttempts int
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	IntakeRate    float64
	IntakeBurst   int
}

type EmailConfig struct {
	Provider     string
	From         string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

const (
	QueueInventory    = "inventory-queue"
	QueueNotification = "notification-queue"
	QueueBilling      = "billing-queue"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	queues := parseList(getenv("ORDER_QUEUES", strings.Join([]string{QueueInventory, QueueNotification, QueueBilling}, ",")))

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "orderflow"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       getenvInt64("NODE_ID", 1),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),

		Observability: ObservabilityConfig{
			DeploymentEnv:  getenv("DEPLOYMENT_ENV", ""),
			ServiceVersion: getenv("SERVICE_VERSION", ""),
			LogLevel:       getenv("LOG_LEVEL", "info"),
			LogFormat:      getenv("LOG_FORMAT", "json"),
			OtelEnabled:    getenvBool("OTEL_ENABLED", false),
			OtelProtocol:   getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			SamplingRatio:  getenvFloat("OTEL_SAMPLING_RATIO", 0.25),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "orderflow"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "orderflow.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),

		Topic:  getenv("ORDER_TOPIC", "order-events"),
		Queues: queues,

		Queue: QueueDefaults{
			MaxReceiveCount:   getenvInt("QUEUE_MAX_RECEIVE_COUNT", 3),
			VisibilityTimeout: getenvDuration("QUEUE_VISIBILITY_TIMEOUT", 300*time.Second),
			BatchSize:         getenvInt("QUEUE_BATCH_SIZE", 10),
			RetryDelay:        getenvDuration("QUEUE_RETRY_DELAY", 5*time.Second),
		},
		Consumer: ConsumerConfig{
			Queues:         parseList(getenv("CONSUMER_QUEUES", strings.Join(queues, ","))),
			Replicas:       getenvInt("CONSUMER_REPLICAS", 2),
			PollInterval:   getenvDuration("CONSUMER_POLL_INTERVAL", time.Second),
			MessageTimeout: getenvDuration("CONSUMER_MESSAGE_TIMEOUT", 30*time.Second),
		},
		Reconciler: ReconcilerConfig{
			Enabled:     getenvBool("RECONCILER_ENABLED", true),
			Interval:    getenvDuration("RECONCILER_INTERVAL", 30*time.Second),
			GracePeriod: getenvDuration("RECONCILER_GRACE_PERIOD", time.Minute),
			BatchSize:   getenvInt("RECONCILER_BATCH_SIZE", 50),
			MaxAttempts: getenvInt("RECONCILER_MAX_ATTEMPTS", 20),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "localhost:6379")),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			IntakeRate:    getenvFloat("RATE_LIMIT_INTAKE_RATE", 5),
			IntakeBurst:   getenvInt("RATE_LIMIT_INTAKE_BURST", 20),
		},
		Email: EmailConfig{
			Provider:     strings.ToLower(getenv("EMAIL_PROVIDER", "log")),
			From:         getenv("EMAIL_FROM", "orders@orderflow.local"),
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     getenvInt("SMTP_PORT", 1025),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
		},

		SeedInventory: getenvBool("SEED_INVENTORY", false),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go duration strings ("30s") or plain seconds ("30").
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
