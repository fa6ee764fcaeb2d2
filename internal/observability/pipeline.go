package observability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics records sighting processing metrics (runs, faces, matches, alerts).
// Methods accept ctx for exemplar support.
type PipelineMetrics interface {
	RecordRun(ctx context.Context, state string, duration time.Duration)
	RecordFacesExtracted(ctx context.Context, count int)
	RecordMatchRecorded(ctx context.Context)
	RecordRecordFailure(ctx context.Context)
	RecordNotification(ctx context.Context, eventType, status string)
	RecordDecodeCache(ctx context.Context, hit bool)
	RecordDecodeFailure(ctx context.Context, reason string)
	SetQueueDepth(depth int)
}

type pipelineMetrics struct {
	runs           metric.Int64Counter
	runDuration    metric.Float64Histogram
	faces          metric.Int64Counter
	matches        metric.Int64Counter
	recordFailures metric.Int64Counter
	notifications  metric.Int64Counter
	decodeCache    metric.Int64Counter
	decodeFailures metric.Int64Counter
	queueDepth     atomic.Int64
}

// NewPipelineMetrics creates PipelineMetrics and registers the queue depth gauge.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewPipelineMetrics(meter metric.Meter) (PipelineMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	m := &pipelineMetrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.runs, MetricNameRuns, "Sighting processing runs by final state"},
		{&m.faces, MetricNameFacesExtracted, "Faces extracted from sighting media"},
		{&m.matches, MetricNameMatchesRecorded, "Matches committed"},
		{&m.recordFailures, MetricNameRecordFailures, "Matches that failed to commit and were skipped"},
		{&m.notifications, MetricNameNotifications, "Alert deliveries by event type and status"},
		{&m.decodeCache, MetricNameDecodeCache, "Registry embedding decode cache lookups by result (hit, miss)"},
		{&m.decodeFailures, MetricNameDecodeFailures, "Registry embeddings that failed to decode"},
	}

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("create %s counter: %w", c.name, err)
		}

		*c.dst = counter
	}

	runDuration, err := meter.Float64Histogram(MetricNameRunDuration,
		metric.WithDescription("Sighting processing run duration (seconds)"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create run duration histogram: %w", err)
	}

	m.runDuration = runDuration

	_, err = meter.Int64ObservableGauge(MetricNameQueueDepth,
		metric.WithDescription("Sighting jobs waiting in River (available, retryable, scheduled)"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.queueDepth.Load())

			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create queue depth gauge: %w", err)
	}

	return m, nil
}

func (m *pipelineMetrics) RecordRun(ctx context.Context, state string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrState, NormalizeReason(state, AllowedRunStates)))
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *pipelineMetrics) RecordFacesExtracted(ctx context.Context, count int) {
	m.faces.Add(ctx, int64(count))
}

func (m *pipelineMetrics) RecordMatchRecorded(ctx context.Context) {
	m.matches.Add(ctx, 1)
}

func (m *pipelineMetrics) RecordRecordFailure(ctx context.Context) {
	m.recordFailures.Add(ctx, 1)
}

func (m *pipelineMetrics) RecordNotification(ctx context.Context, eventType, status string) {
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrEventType, NormalizeEventType(eventType)),
		attribute.String(AttrStatus, NormalizeReason(status, AllowedNotificationStatuses)),
	))
}

func (m *pipelineMetrics) RecordDecodeCache(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	m.decodeCache.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResult, result)))
}

func (m *pipelineMetrics) RecordDecodeFailure(ctx context.Context, reason string) {
	m.decodeFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrReason, NormalizeReason(reason, AllowedDecodeReasons))))
}

func (m *pipelineMetrics) SetQueueDepth(depth int) {
	m.queueDepth.Store(int64(depth))
}
