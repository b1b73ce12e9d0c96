// Package telemetry wires OpenTelemetry tracing and log export for lifecycle services.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const instrumentationName = "github.com/alkem-io/server-sub004"

// In-cluster collector used when no endpoint is configured on Kubernetes.
const kubernetesCollector = "http://opentelemetry-collector.opentelemetry.svc.cluster.local:4318"

// Config holds the OpenTelemetry configuration.
type Config struct {
	Enabled        bool          `env:"OTEL_ENABLED"                       envDefault:"false"`
	ServiceName    string        `env:"OTEL_SERVICE_NAME"                  envDefault:"lifecycle"`
	ServiceVersion string        `env:"OTEL_SERVICE_VERSION"               envDefault:"1.0.0"`
	Environment    string        `env:"OTEL_ENVIRONMENT"                   envDefault:"dev"`
	TracesEndpoint string        `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	LogsEndpoint   string        `env:"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"`
	Timeout        time.Duration `env:"OTEL_EXPORTER_OTLP_TIMEOUT"         envDefault:"5s"`
}

// resolveEndpoint falls back to the in-cluster collector on Kubernetes.
func resolveEndpoint(configured string) string {
	if configured != "" {
		return configured
	}

	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return kubernetesCollector
	}

	return ""
}

// Providers owns the SDK providers created by Initialize.
// The zero value (telemetry disabled) is valid.
type Providers struct {
	tracer *sdktrace.TracerProvider
	logger *sdklog.LoggerProvider
}

// Initialize installs global trace and log providers according to cfg.
// Signals without an endpoint stay disabled.
func Initialize(ctx context.Context, cfg Config) (*Providers, error) {
	providers := &Providers{}

	if !cfg.Enabled {
		slog.DebugContext(ctx, "OpenTelemetry is disabled")

		return providers, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if endpoint := resolveEndpoint(cfg.TracesEndpoint); endpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(endpoint),
			otlptracehttp.WithTimeout(cfg.Timeout),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}

		providers.tracer = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		)

		otel.SetTracerProvider(providers.tracer)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

		slog.InfoContext(ctx, "OpenTelemetry tracing initialized",
			"service", cfg.ServiceName,
			"environment", cfg.Environment,
			"endpoint", endpoint,
		)
	}

	if endpoint := resolveEndpoint(cfg.LogsEndpoint); endpoint != "" {
		exporter, err := otlploghttp.New(ctx,
			otlploghttp.WithEndpointURL(endpoint),
			otlploghttp.WithTimeout(cfg.Timeout),
		)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to create OTLP log exporter: %w", err), providers.Shutdown(ctx))
		}

		providers.logger = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
			sdklog.WithResource(res),
		)

		global.SetLoggerProvider(providers.logger)

		slog.InfoContext(ctx, "OpenTelemetry log export initialized", "endpoint", endpoint)
	}

	return providers, nil
}

// TracingEnabled reports whether a trace exporter is installed.
func (p *Providers) TracingEnabled() bool {
	return p != nil && p.tracer != nil
}

// LogHandler returns a slog handler that exports records over OTLP, or nil
// when log export is disabled. Pass it to logger.Options.Extra.
func (p *Providers) LogHandler() slog.Handler {
	if p == nil || p.logger == nil {
		return nil
	}

	return otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(p.logger))
}

// Shutdown flushes and stops every provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error

	if p.tracer != nil {
		errs = append(errs, p.tracer.Shutdown(ctx))
	}

	if p.logger != nil {
		errs = append(errs, p.logger.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
