package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/services/engine"
)

const meterName = "github.com/upb/engine-gateway"

// Metric names
const (
	MetricOperations          = "engine_operations_total"
	MetricOperationDuration   = "engine_operation_duration_seconds"
	MetricAuditWriteFailures  = "engine_audit_write_failures_total"
	MetricRateLimitedRequests = "http_rate_limited_requests_total"
)

// MetricsConfig configures metric export
type MetricsConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	Insecure       bool
	Interval       time.Duration
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// Metrics records gateway metrics as OpenTelemetry instruments.
// It satisfies engine.Metrics.
type Metrics struct {
	provider      *sdkmetric.MeterProvider // nil when export is off
	operations    metric.Int64Counter
	duration      metric.Float64Histogram
	auditFailures metric.Int64Counter
	rateLimited   metric.Int64Counter
}

// NewMetrics creates the metrics pipeline. Without an OTLP endpoint, or with
// metrics disabled, instruments are no-ops.
func NewMetrics(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*Metrics, error) {
	if !cfg.Enabled || cfg.OTLPEndpoint == "" {
		logger.Info("metrics export disabled", zap.Bool("enabled", cfg.Enabled))
		return NewMetricsWithProvider(noop.NewMeterProvider())
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)

	m, err := NewMetricsWithProvider(provider)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}
	m.provider = provider

	logger.Info("metrics export enabled",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.Duration("interval", interval),
	)
	return m, nil
}

// NewMetricsWithProvider creates the instruments on an existing provider
func NewMetricsWithProvider(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}

	var err error
	if m.operations, err = meter.Int64Counter(MetricOperations,
		metric.WithDescription("Engine operations by outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricOperations, err)
	}
	if m.duration, err = meter.Float64Histogram(MetricOperationDuration,
		metric.WithDescription("Engine provider call latency"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricOperationDuration, err)
	}
	if m.auditFailures, err = meter.Int64Counter(MetricAuditWriteFailures,
		metric.WithDescription("Calculation records that could not be persisted"),
	); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricAuditWriteFailures, err)
	}
	if m.rateLimited, err = meter.Int64Counter(MetricRateLimitedRequests,
		metric.WithDescription("Requests rejected by the rate limiter"),
	); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricRateLimitedRequests, err)
	}
	return m, nil
}

// RecordOperation counts one gateway call and its provider latency
func (m *Metrics) RecordOperation(ctx context.Context, op models.OperationType, outcome engine.OutcomeKind, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation", string(op)),
		attribute.String("outcome", outcome.String()),
	)
	m.operations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

// RecordAuditWriteFailure counts one calculation record that was lost
func (m *Metrics) RecordAuditWriteFailure(ctx context.Context, op models.OperationType) {
	m.auditFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", string(op))))
}

// RecordRateLimited counts one request rejected with 429
func (m *Metrics) RecordRateLimited(ctx context.Context, route string) {
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
}

// Shutdown flushes pending metrics and stops the exporter
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	if err := m.provider.Shutdown(ctx); err != nil && !errors.Is(err, sdkmetric.ErrReaderShutdown) {
		return fmt.Errorf("failed to shut down metrics: %w", err)
	}
	return nil
}

var _ engine.Metrics = (*Metrics)(nil)
