package observability

import (
	"strings"
	"time"

	"github.com/smallbiznis/tirta/internal/config"
	"github.com/smallbiznis/tirta/internal/observability/logger"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultServiceName   = "tirta"
	defaultSamplingRatio = 0.1
	defaultSlowThreshold = 200 * time.Millisecond
)

// Config is the normalised observability view of the application config.
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

	MetricsAddr string

	DBLogLevel      gormlogger.LogLevel
	DBSlowThreshold time.Duration
}

func LoadConfig(cfg config.Config) Config {
	obs := cfg.Observability

	c := Config{
		ServiceName:          strings.TrimSpace(cfg.AppName),
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             normalizeLevel(obs.LogLevel),
		LogFormat:            strings.ToLower(strings.TrimSpace(obs.LogFormat)),
		OtelEnabled:          obs.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(obs.OtelEndpoint),
		OtelExporterProtocol: normalizeProtocol(obs.OtelProtocol),
		OtelSamplingRatio:    obs.OtelSamplingRatio,
		MetricsAddr:          strings.TrimSpace(cfg.MetricsAddr),
		DBSlowThreshold:      obs.DBSlowThreshold,
	}
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.OtelExporterEndpoint == "" {
		c.OtelExporterEndpoint = strings.TrimSpace(cfg.OTLPEndpoint)
	}
	if c.OtelSamplingRatio < 0 || c.OtelSamplingRatio > 1 {
		c.OtelSamplingRatio = defaultSamplingRatio
	}
	if c.DBSlowThreshold <= 0 {
		c.DBSlowThreshold = defaultSlowThreshold
	}

	c.DBLogLevel = logger.ParseGormLevel(obs.DBLogLevel, gormlogger.Warn)
	// Statement logging follows the application log level in debug.
	if c.Debug() && strings.TrimSpace(obs.DBLogLevel) == "" {
		c.DBLogLevel = gormlogger.Info
	}
	return c
}

// Debug reports whether the service runs with debug logging or in a
// development environment.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "debug", "info", "warn", "error":
		return level
	case "warning":
		return "warn"
	}
	return "info"
}

func normalizeProtocol(protocol string) string {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		return "http"
	}
	return "grpc"
}
