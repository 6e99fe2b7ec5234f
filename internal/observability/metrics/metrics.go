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

// Metrics exposes application-level instruments for the billing engine.
type Metrics struct {
	invoicesComputed metric.Int64Counter
	configErrors     metric.Int64Counter
	billingRuns      metric.Int64Counter
	runDuration      metric.Float64Histogram
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
		name = "omnibox-billing"
	}
	meter := provider.Meter(name)

	invoicesComputed, err := meter.Int64Counter("omnibox_invoices_computed_total")
	if err != nil {
		return nil, err
	}
	configErrors, err := meter.Int64Counter("omnibox_billing_config_errors_total")
	if err != nil {
		return nil, err
	}
	billingRuns, err := meter.Int64Counter("omnibox_billing_runs_total")
	if err != nil {
		return nil, err
	}
	runDuration, err := meter.Float64Histogram("omnibox_billing_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		invoicesComputed: invoicesComputed,
		configErrors:     configErrors,
		billingRuns:      billingRuns,
		runDuration:      runDuration,
	}, nil
}

// RecordInvoiceComputed increments successfully rated periods.
func (m *Metrics) RecordInvoiceComputed(ctx context.Context, phase string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("phase", strings.TrimSpace(phase)))
	m.invoicesComputed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordConfigError increments non-retryable configuration failures.
func (m *Metrics) RecordConfigError(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))
	m.configErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordBillingRun increments billing run counts.
func (m *Metrics) RecordBillingRun(ctx context.Context) {
	if m == nil {
		return
	}
	m.billingRuns.Add(ctx, 1)
}

// ObserveRunDuration records the wall time of one billing run.
func (m *Metrics) ObserveRunDuration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Record(ctx, d.Seconds())
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"phase": {},
	"kind":  {},
}

// FilterAttributes drops labels outside the allow-list to keep metric
// cardinality bounded.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
