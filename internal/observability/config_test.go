package observability

import (
	"testing"

	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("RENTBOOK_LOG_LEVEL", "")
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("RENTBOOK_OTEL_ENABLED", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "")
	t.Setenv("RENTBOOK_OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "")

	cfg := LoadConfig(config.Config{Environment: "production", OTLPEndpoint: "collector:4317"})

	assert.Equal(t, "rentbook", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigPrefersRentbookPrefix(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("RENTBOOK_LOG_LEVEL", "DEBUG")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("RENTBOOK_OTEL_ENABLED", "yes")
	t.Setenv("RENTBOOK_OTEL_SAMPLING_RATIO", "4")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")

	cfg := LoadConfig(config.Config{AppName: "rentbook-api"})

	assert.Equal(t, "rentbook-api", cfg.ServiceName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Debug())
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
}

func TestDebugFollowsEnvironment(t *testing.T) {
	assert.True(t, Config{Environment: "Local"}.Debug())
	assert.False(t, Config{Environment: "staging", LogLevel: "info"}.Debug())
}
