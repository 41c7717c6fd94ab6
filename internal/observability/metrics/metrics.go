package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	deductAttempts  metric.Int64Counter
	creditsConsumed metric.Int64Counter
	quotaResets     metric.Int64Counter
	webhookEvents   metric.Int64Counter
	migrations      metric.Int64Counter
	rateLimitDenied metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "creditd"
	}
	meter := provider.Meter(name)

	deductAttempts, err := meter.Int64Counter("creditd_deduct_attempts_total")
	if err != nil {
		return nil, err
	}
	creditsConsumed, err := meter.Int64Counter("creditd_credits_consumed_total")
	if err != nil {
		return nil, err
	}
	quotaResets, err := meter.Int64Counter("creditd_quota_resets_total")
	if err != nil {
		return nil, err
	}
	webhookEvents, err := meter.Int64Counter("creditd_payment_events_total")
	if err != nil {
		return nil, err
	}
	migrations, err := meter.Int64Counter("creditd_identity_migrations_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("creditd_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		deductAttempts:  deductAttempts,
		creditsConsumed: creditsConsumed,
		quotaResets:     quotaResets,
		webhookEvents:   webhookEvents,
		migrations:      migrations,
		rateLimitDenied: rateLimitDenied,
	}, nil
}

// RecordDeduct counts one deduction attempt with its outcome.
func (m *Metrics) RecordDeduct(ctx context.Context, outcome string, fromFree, fromPackage int64) {
	if m == nil {
		return
	}
	m.deductAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if fromFree > 0 {
		m.creditsConsumed.Add(ctx, fromFree, metric.WithAttributes(attribute.String("pool", "free")))
	}
	if fromPackage > 0 {
		m.creditsConsumed.Add(ctx, fromPackage, metric.WithAttributes(attribute.String("pool", "package")))
	}
}

func (m *Metrics) RecordQuotaReset(ctx context.Context) {
	if m == nil {
		return
	}
	m.quotaResets.Add(ctx, 1)
}

func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordMigration(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.migrations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, scope string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp metrics protocol %q", protocol)
	}
}
