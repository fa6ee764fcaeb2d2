// Package notify delivers alert messages over e-mail and signed webhooks.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/reunite/hub/internal/datatypes"
)

// Attachment is a file sent with a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is one alert. Event and Data are used by structured channels such as
// webhooks; e-mail uses Subject, Body and Attachments.
type Message struct {
	Event       datatypes.EventType
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
	Data        any
}

// Notifier delivers a message. Implementations must be safe for concurrent use.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// MultiNotifier sends every message to all of its notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier fans out to notifiers, skipping nil entries.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}

	return m
}

// Name returns "multi".
func (m *MultiNotifier) Name() string { return "multi" }

// Len returns the number of channels.
func (m *MultiNotifier) Len() int { return len(m.notifiers) }

// Send delivers to every channel and joins their errors.
func (m *MultiNotifier) Send(ctx context.Context, msg Message) error {
	var errs []error

	for _, n := range m.notifiers {
		if err := n.Send(ctx, msg); err != nil {
			errs = append(errs, &DeliveryError{Channel: n.Name(), Err: err})
		}
	}

	return errors.Join(errs...)
}

// DeliveryError names the channel that failed.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return e.Channel + ": " + e.Err.Error()
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// LogNotifier only logs messages. Used when no channel is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that writes to logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogNotifier{logger: logger}
}

// Name returns "log".
func (l *LogNotifier) Name() string { return "log" }

// Send logs the message envelope.
func (l *LogNotifier) Send(ctx context.Context, msg Message) error {
	l.logger.InfoContext(ctx, "Notification (no delivery channel configured)",
		"event_type", msg.Event.String(),
		"recipients", len(msg.To),
		"subject", msg.Subject,
		"attachments", len(msg.Attachments),
	)

	return nil
}
