package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"

	"github.com/reunite/hub/internal/datatypes"
)

// WebhookPayload is the JSON body POSTed to the alert endpoint.
type WebhookPayload struct {
	ID        uuid.UUID           `json:"id"`
	Type      datatypes.EventType `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Data      any                 `json:"data"`
}

// WebhookNotifier POSTs Standard Webhooks signed payloads to one endpoint, retrying
// on 5xx and transport errors.
type WebhookNotifier struct {
	url    string
	signer *standardwebhooks.Webhook
	client *retryablehttp.Client
}

// NewWebhookNotifier creates a webhook notifier. secret is a Standard Webhooks
// signing key ("whsec_" followed by base64).
func NewWebhookNotifier(url, secret string) (*WebhookNotifier, error) {
	signer, err := standardwebhooks.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("create webhook signer: %w", err)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 15 * time.Second
	client.HTTPClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	client.Logger = nil

	return &WebhookNotifier{url: url, signer: signer, client: client}, nil
}

// Name returns "webhook".
func (w *WebhookNotifier) Name() string { return "webhook" }

// Send signs and POSTs msg.Data with the event type.
func (w *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate message id: %w", err)
	}

	timestamp := time.Now()

	body, err := json.Marshal(WebhookPayload{ID: id, Type: msg.Event, Timestamp: timestamp.UTC(), Data: msg.Data})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	messageID := id.String()

	signature, err := w.signer.Sign(messageID, timestamp, body)
	if err != nil {
		return fmt.Errorf("sign webhook: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(standardwebhooks.HeaderWebhookID, messageID)
	req.Header.Set(standardwebhooks.HeaderWebhookSignature, signature)
	req.Header.Set(standardwebhooks.HeaderWebhookTimestamp, strconv.FormatInt(timestamp.Unix(), 10))

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}

	return nil
}
