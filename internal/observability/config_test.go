package observability

import (
	"testing"
	"time"

	"github.com/smallbiznis/tirta/internal/config"
	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func TestLoadConfigNormalises(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppVersion:   " 1.2.0 ",
		Environment:  "production",
		OTLPEndpoint: "collector:4317",
		MetricsAddr:  ":9464",
		Observability: config.ObservabilityConfig{
			LogLevel:          "WARNING",
			LogFormat:         "Console",
			OtelProtocol:      "http/protobuf",
			OtelSamplingRatio: 3,
			DBLogLevel:        "error",
			DBSlowThreshold:   time.Second,
		},
	})

	assert.Equal(t, "tirta", cfg.ServiceName)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.Equal(t, gormlogger.Error, cfg.DBLogLevel)
	assert.Equal(t, time.Second, cfg.DBSlowThreshold)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigDebugRaisesStatementLogging(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment:   "local",
		Observability: config.ObservabilityConfig{LogLevel: "debug"},
	})

	assert.True(t, cfg.Debug())
	assert.Equal(t, gormlogger.Info, cfg.DBLogLevel)
	assert.Equal(t, 200*time.Millisecond, cfg.DBSlowThreshold)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)

	pinned := LoadConfig(config.Config{
		Environment:   "local",
		Observability: config.ObservabilityConfig{DBLogLevel: "silent"},
	})
	assert.Equal(t, gormlogger.Silent, pinned.DBLogLevel)
}
