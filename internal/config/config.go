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

	OTLPEndpoint string
	MetricsAddr  string

	Observability ObservabilityConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MQTT MQTTConfig

	AlertWebhookURL     string
	AlertWebhookTimeout time.Duration

	SweepInterval time.Duration
	SweepEnabled  bool
	SweepJobs     []string

	SnowflakeNode int64
}

// ObservabilityConfig holds the raw logging, tracing and query logging
// settings. internal/observability normalises them.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string

	OtelEnabled       bool
	OtelEndpoint      string
	OtelProtocol      string
	OtelSamplingRatio float64

	// DBLogLevel is silent, error, warn or info. Empty picks warn, or info
	// when running in debug.
	DBLogLevel      string
	DBSlowThreshold time.Duration
}

// MQTTConfig configures smart-meter reading ingestion.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// Enabled reports whether a broker is configured.
func (c MQTTConfig) Enabled() bool {
	return strings.TrimSpace(c.Broker) != ""
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "tirta"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		MetricsAddr:       strings.TrimSpace(getenv("METRICS_ADDR", ":9464")),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "tirta"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           getenvInt("REDIS_DB", 0),
		Observability: ObservabilityConfig{
			LogLevel:          getenv("LOG_LEVEL", "info"),
			LogFormat:         getenv("LOG_FORMAT", "json"),
			OtelEnabled:       getenvBool("OTEL_ENABLED", false),
			OtelEndpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OtelProtocol:      getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			OtelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
			DBLogLevel:        getenv("DATABASE_LOG_LEVEL", ""),
			DBSlowThreshold:   getenvDuration("DATABASE_SLOW_THRESHOLD", 200*time.Millisecond),
		},
		MQTT: MQTTConfig{
			Broker:   strings.TrimSpace(getenv("MQTT_BROKER", "")),
			ClientID: getenv("MQTT_CLIENT_ID", "tirta-ingest"),
			Username: getenv("MQTT_USERNAME", ""),
			Password: getenv("MQTT_PASSWORD", ""),
			Topic:    getenv("MQTT_TOPIC", "meters/+/readings"),
			QoS:      byte(getenvInt("MQTT_QOS", 1)),
		},
		AlertWebhookURL:     strings.TrimSpace(getenv("ALERT_WEBHOOK_URL", "")),
		AlertWebhookTimeout: getenvDuration("ALERT_WEBHOOK_TIMEOUT", 5*time.Second),
		SweepInterval:       getenvDuration("SWEEP_INTERVAL", 15*time.Minute),
		SweepEnabled:        getenvBool("SWEEP_ENABLED", true),
		SweepJobs:           parseList(getenv("SWEEP_JOBS", "")),
		SnowflakeNode:       getenvInt64("SNOWFLAKE_NODE", 1),
	}

	return cfg
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

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
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
