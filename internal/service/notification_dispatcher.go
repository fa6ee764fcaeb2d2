package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reunite/hub/internal/datatypes"
	"github.com/reunite/hub/internal/models"
	"github.com/reunite/hub/internal/notify"
)

const (
	uploadTimeLayout   = "2006-01-02 15:04:05"
	matchedFaceName    = "matched_face.jpg"
	unknownLocation    = "Unknown location"
	notificationSent   = "sent"
	notificationFailed = "failed"
	notificationNone   = "skipped"
)

// ArtifactLoader reads a stored face crop.
type ArtifactLoader interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

// NotificationMetrics counts alert deliveries. Implementations may be nil.
type NotificationMetrics interface {
	RecordNotification(ctx context.Context, eventType, status string)
}

// MatchAlert is the structured payload of a match alert.
type MatchAlert struct {
	CaseID          uuid.UUID `json:"case_id"`
	CaseName        string    `json:"case_name"`
	SightingID      uuid.UUID `json:"sighting_id"`
	ConfidenceScore float64   `json:"confidence_score"`
	Location        string    `json:"location"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	UploadedAt      time.Time `json:"uploaded_at"`
	MatchedFacePath string    `json:"matched_face_path"`
}

// CaseNotice is the structured payload of case created and case found notices.
type CaseNotice struct {
	CaseID   uuid.UUID  `json:"case_id"`
	CaseName string     `json:"case_name"`
	FoundAt  *time.Time `json:"found_at,omitempty"`
}

// NotificationDispatcher turns pipeline and case events into alert messages.
// Delivery failures are logged and counted, never returned.
type NotificationDispatcher struct {
	notifier  notify.Notifier
	artifacts ArtifactLoader
	metrics   NotificationMetrics
	logger    *slog.Logger
}

// DispatcherOption configures a NotificationDispatcher.
type DispatcherOption func(*NotificationDispatcher)

// WithNotificationMetrics sets the delivery counters.
func WithNotificationMetrics(m NotificationMetrics) DispatcherOption {
	return func(d *NotificationDispatcher) { d.metrics = m }
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *NotificationDispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewNotificationDispatcher creates a dispatcher sending through notifier.
func NewNotificationDispatcher(
	notifier notify.Notifier, artifacts ArtifactLoader, opts ...DispatcherOption,
) *NotificationDispatcher {
	d := &NotificationDispatcher{
		notifier:  notifier,
		artifacts: artifacts,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// NotifyMatch alerts the case contact and the case owner about a possible sighting.
// The matched face crop is attached when it can be read.
func (d *NotificationDispatcher) NotifyMatch(
	ctx context.Context, c *models.Case, s *models.Sighting, score float64, facePath string,
) {
	alert := MatchAlert{
		CaseID:          c.ID,
		CaseName:        c.Name,
		SightingID:      s.ID,
		ConfidenceScore: score,
		Location:        FormatLocation(s.Geo),
		UploadedAt:      s.UploadedAt,
		MatchedFacePath: facePath,
	}
	if s.Geo != nil {
		alert.Latitude = &s.Geo.Latitude
		alert.Longitude = &s.Geo.Longitude
	}

	msg := notify.Message{
		Event:   datatypes.MatchDetected,
		To:      Recipients(deref(c.Email), c.OwnerEmail),
		Subject: "ALERT: Possible sighting of " + c.Name,
		Body:    matchAlertBody(c.Name, score, alert.Location, s.UploadedAt),
		Data:    alert,
	}

	if facePath != "" && d.artifacts != nil {
		data, err := d.artifacts.Load(ctx, facePath)
		if err != nil {
			d.logger.WarnContext(ctx, "Matched face unavailable, sending alert without attachment",
				"case_id", c.ID, "path", facePath, "error", err)
		} else {
			msg.Attachments = []notify.Attachment{{Name: matchedFaceName, ContentType: "image/jpeg", Data: data}}
		}
	}

	d.send(ctx, msg, "case_id", c.ID, "sighting_id", s.ID)
}

// NotifyCaseCreated confirms enrollment to the case contact.
func (d *NotificationDispatcher) NotifyCaseCreated(ctx context.Context, c *models.Case) {
	body := fmt.Sprintf(`Missing Person Case Created

A new missing person case has been created:

Name: %s
Case ID: %s

The system will now monitor for potential matches and send alerts if any are found.
`, c.Name, c.ID)

	d.send(ctx, notify.Message{
		Event:   datatypes.CaseCreated,
		To:      Recipients(deref(c.Email)),
		Subject: "Missing Person Case Created: " + c.Name,
		Body:    body,
		Data:    CaseNotice{CaseID: c.ID, CaseName: c.Name},
	}, "case_id", c.ID)
}

// NotifyPersonFound tells the case contact and owner that the case was closed as found.
func (d *NotificationDispatcher) NotifyPersonFound(ctx context.Context, c *models.Case) {
	body := fmt.Sprintf(`MISSING PERSON FOUND

Great news! %s has been marked as found.

Case ID: %s
Status: Found

The case has been closed and face matching has been disabled.
`, c.Name, c.ID)

	d.send(ctx, notify.Message{
		Event:   datatypes.CaseFound,
		To:      Recipients(deref(c.Email), c.OwnerEmail),
		Subject: fmt.Sprintf("GOOD NEWS: %s has been found!", c.Name),
		Body:    body,
		Data:    CaseNotice{CaseID: c.ID, CaseName: c.Name, FoundAt: c.FoundAt},
	}, "case_id", c.ID)
}

func (d *NotificationDispatcher) send(ctx context.Context, msg notify.Message, attrs ...any) {
	event := msg.Event.String()

	if len(msg.To) == 0 {
		d.record(ctx, event, notificationNone)
		d.logger.DebugContext(ctx, "No recipients for notification", append(attrs, "event", event)...)

		return
	}

	if err := d.notifier.Send(ctx, msg); err != nil {
		d.record(ctx, event, notificationFailed)
		d.logger.ErrorContext(ctx, "Failed to send notification",
			append(attrs, "event", event, "channel", d.notifier.Name(), "error", err)...)

		return
	}

	d.record(ctx, event, notificationSent)
}

func (d *NotificationDispatcher) record(ctx context.Context, event, status string) {
	if d.metrics != nil {
		d.metrics.RecordNotification(ctx, event, status)
	}
}

// Recipients trims the addresses, drops empty ones and removes case-insensitive
// duplicates, keeping the first spelling.
func Recipients(addrs ...string) []string {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))

	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}

		key := strings.ToLower(a)
		if seen[key] {
			continue
		}

		seen[key] = true

		out = append(out, a)
	}

	return out
}

// FormatLocation renders a sighting location for humans.
func FormatLocation(geo *models.Geo) string {
	switch {
	case geo == nil:
		return unknownLocation
	case geo.LocationName != nil && strings.TrimSpace(*geo.LocationName) != "":
		return *geo.LocationName
	default:
		return fmt.Sprintf("Lat: %g, Lng: %g", geo.Latitude, geo.Longitude)
	}
}

func matchAlertBody(name string, score float64, location string, uploadedAt time.Time) string {
	return fmt.Sprintf(`MISSING PERSON ALERT

A possible match has been found for: %s

Details:
- Confidence Score: %.2f%%
- Location: %s
- Time: %s

Please verify this match as soon as possible.
`, name, score*100, location, uploadedAt.Format(uploadTimeLayout))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
