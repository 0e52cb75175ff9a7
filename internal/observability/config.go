package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/rentbook/internal/config"
)

// envPrefix scopes overrides to rentbook. Each setting also falls back to the
// unprefixed name so stock OTEL_* variables keep working.
const envPrefix = "RENTBOOK_"

// Config is the observability view of the process configuration.
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

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName:          firstNonEmpty(cfg.AppName, "rentbook"),
		Environment:          lookup("DEPLOYMENT_ENV", cfg.Environment),
		Version:              lookup("SERVICE_VERSION", cfg.AppVersion),
		LogLevel:             strings.ToLower(lookup("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(lookup("LOG_FORMAT", "json")),
		OtelEnabled:          lookupBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: lookup("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(lookup("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		OtelSamplingRatio:    clampRatio(lookupFloat("OTEL_SAMPLING_RATIO", 1.0)),
	}
	if traces := lookup("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", ""); traces != "" {
		out.OtelExporterProtocol = strings.ToLower(traces)
	}
	return out
}

// Debug reports whether verbose logging and error stacks are wanted.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func lookup(key, def string) string {
	for _, name := range []string{envPrefix + key, key} {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(def)
}

func lookupBool(key string, def bool) bool {
	switch strings.ToLower(lookup(key, "")) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

func lookupFloat(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(lookup(key, ""), 64)
	if err != nil {
		return def
	}
	return parsed
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
