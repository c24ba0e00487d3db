package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

const (
	// EventSource is the CloudEvents source attribute of every notice.
	EventSource = "supplychainx/notify"
	// EventTypePrefix is prepended to the domain kind to form the CloudEvents type.
	EventTypePrefix = "com.supplychainx.notice."
)

// WebhookSender posts notices as structured CloudEvents to a single endpoint,
// signed with HMAC-SHA256 over the request body.
type WebhookSender struct {
	endpoint   string
	secret     string
	httpClient *http.Client
}

func NewWebhookSender(endpoint, secret string) *WebhookSender {
	return &WebhookSender{
		endpoint: endpoint,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// StatusError is returned when the endpoint answers with a 4xx or 5xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.StatusCode, e.Body)
}

func (s *WebhookSender) Send(ctx context.Context, n Notice) error {
	payload, err := envelope(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", cloudevents.ApplicationCloudEventsJSON)
	req.Header.Set("X-Webhook-Signature", computeHMAC(payload, s.secret))
	req.Header.Set("X-Webhook-Event", string(n.Kind))
	req.Header.Set("X-Webhook-ID", n.ID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Read response body (limit to 1KB to prevent memory issues)
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 400 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// envelope encodes n as a CloudEvent in structured JSON mode.
func envelope(n Notice) ([]byte, error) {
	e := cloudevents.NewEvent()
	e.SetID(n.ID)
	e.SetSource(EventSource)
	e.SetType(EventTypePrefix + string(n.Kind))
	e.SetSubject(n.To)
	if !n.CreatedAt.IsZero() {
		e.SetTime(n.CreatedAt)
	}
	if err := e.SetData(cloudevents.ApplicationJSON, n); err != nil {
		return nil, fmt.Errorf("encoding notice %s: %w", n.ID, err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid notice envelope: %w", err)
	}
	return json.Marshal(e)
}

// computeHMAC generates an HMAC-SHA256 signature for the payload.
func computeHMAC(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
