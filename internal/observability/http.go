package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics records API request metrics.
type HTTPMetrics interface {
	RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration)
	RecordRequestBodyTooLarge(ctx context.Context)
}

type httpMetrics struct {
	requests     metric.Int64Counter
	duration     metric.Float64Histogram
	bodyTooLarge metric.Int64Counter
}

// NewHTTPMetrics creates HTTPMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewHTTPMetrics(meter metric.Meter) (HTTPMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	requests, err := meter.Int64Counter(MetricNameHTTPRequests,
		metric.WithDescription("Total HTTP requests by method, route and status class"))
	if err != nil {
		return nil, fmt.Errorf("create http requests counter: %w", err)
	}

	duration, err := meter.Float64Histogram(MetricNameHTTPDuration,
		metric.WithDescription("HTTP request duration (seconds)"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create http duration histogram: %w", err)
	}

	bodyTooLarge, err := meter.Int64Counter(MetricNameRequestBodyTooLarge,
		metric.WithDescription("Requests rejected because the body exceeded the upload limit (413)"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create request body too large counter: %w", err)
	}

	return &httpMetrics{requests: requests, duration: duration, bodyTooLarge: bodyTooLarge}, nil
}

func (h *httpMetrics) RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration) {
	attrs := metric.WithAttributeSet(attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String(AttrStatus, statusClass),
	))

	h.requests.Add(ctx, 1, attrs)
	h.duration.Record(ctx, duration.Seconds(), attrs)
}

func (h *httpMetrics) RecordRequestBodyTooLarge(ctx context.Context) {
	h.bodyTooLarge.Add(ctx, 1)
}
