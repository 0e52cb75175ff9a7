package observability

import (
	"github.com/smallbiznis/rentbook/internal/observability/logger"
	"github.com/smallbiznis/rentbook/internal/observability/metrics"
	"github.com/smallbiznis/rentbook/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the rentbook logger, tracer provider and metric
// instruments. The API server, the scheduler and rentctl all include it.
var Module = fx.Module("rentbook.observability",
	fx.Provide(LoadConfig),
	fx.Provide(
		Config.logger,
		logger.New,
	),
	fx.Provide(
		Config.tracing,
		tracing.NewProvider,
	),
	fx.Provide(
		Config.metrics,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(
		func(*sdktrace.TracerProvider) {},
		metrics.SchedulerWithConfig,
	),
)

func (c Config) logger() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		Debug:               c.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}

func (c Config) metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.OtelEnabled,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}
