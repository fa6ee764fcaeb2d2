// Package observability wires OpenTelemetry metrics (Prometheus pull, optional OTLP push),
// tracing, and trace-aware structured logging.
package observability

import "github.com/reunite/hub/internal/datatypes"

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameHTTPRequests        = "hub_http_requests_total"
	MetricNameHTTPDuration        = "hub_http_request_duration_seconds"
	MetricNameRequestBodyTooLarge = "hub_request_body_too_large_total"
	MetricNameRuns                = "hub_sighting_runs_total"
	MetricNameRunDuration         = "hub_sighting_run_duration_seconds"
	MetricNameFacesExtracted      = "hub_faces_extracted_total"
	MetricNameMatchesRecorded     = "hub_matches_recorded_total"
	MetricNameRecordFailures      = "hub_match_record_failures_total"
	MetricNameNotifications       = "hub_notifications_total"
	MetricNameDecodeCache         = "hub_registry_decode_cache_total"
	MetricNameDecodeFailures      = "hub_registry_decode_failures_total"
	MetricNameQueueDepth          = "hub_river_queue_depth"
)

// Attribute keys.
const (
	AttrEventType = "event_type"
	AttrReason    = "reason"
	AttrStatus    = "status"
	AttrState     = "state"
	AttrResult    = "result"
)

// AllowedRunStates for hub_sighting_runs_total.
var AllowedRunStates = map[string]bool{
	"done":   true,
	"failed": true,
}

// AllowedDecodeReasons for hub_registry_decode_failures_total.
var AllowedDecodeReasons = map[string]bool{
	"corrupt":          true,
	"version_mismatch": true,
}

// AllowedNotificationStatuses for hub_notifications_total.
var AllowedNotificationStatuses = map[string]bool{
	"sent":    true,
	"failed":  true,
	"skipped": true,
}

// NormalizeEventType returns eventType if it names a known event, otherwise "unknown".
func NormalizeEventType(eventType string) string {
	if _, ok := datatypes.ParseEventType(eventType); ok {
		return eventType
	}

	return "unknown"
}

// NormalizeReason returns value if allowed, otherwise "other".
func NormalizeReason(value string, allowed map[string]bool) string {
	if allowed[value] {
		return value
	}

	return "other"
}
