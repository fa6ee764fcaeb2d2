package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

const (
	meterScope         = "github.com/reunite/hub"
	defaultServiceName = "reunite-hub"
	cardinalityLimit   = 2000
)

// durationBoundaries are second-based buckets; the SDK defaults are millisecond-oriented.
var durationBoundaries = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300}

// MeterProviderConfig selects the metric readers.
type MeterProviderConfig struct {
	ServiceName string
	// Prometheus exposes a pull endpoint through the returned handler.
	Prometheus bool
	// OTLP pushes to OTEL_EXPORTER_OTLP_ENDPOINT every minute.
	OTLP bool
}

func newResource(serviceName string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("merge resource: %w", err)
	}

	return res, nil
}

// NewMeterProvider creates a MeterProvider with the configured readers. The handler
// is nil unless Prometheus is enabled. Returns all nils when no reader is enabled.
func NewMeterProvider(ctx context.Context, cfg MeterProviderConfig) (*sdkmetric.MeterProvider, http.Handler, error) {
	if !cfg.Prometheus && !cfg.OTLP {
		return nil, nil, nil
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, nil, err
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "hub_*_duration_seconds"},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: durationBoundaries}},
		)),
	}

	var handler http.Handler

	if cfg.Prometheus {
		reg := prometheus.NewRegistry()

		exporter, err := prometheusexporter.New(prometheusexporter.WithRegisterer(reg))
		if err != nil {
			return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(exporter))
		handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	if cfg.OTLP {
		exp, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create OTLP metric exporter: %w", err)
		}

		const exportInterval = 60 * time.Second

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(exportInterval))))
	}

	return sdkmetric.NewMeterProvider(opts...), handler, nil
}

// ShutdownMeterProvider flushes and shuts down the MeterProvider. Safe to call with nil.
func ShutdownMeterProvider(ctx context.Context, provider *sdkmetric.MeterProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}

	return nil
}

// Meter returns the hub meter of provider, or nil when provider is nil.
func Meter(provider *sdkmetric.MeterProvider) metric.Meter {
	if provider == nil {
		return nil
	}

	return provider.Meter(meterScope)
}
