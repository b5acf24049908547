// Package services provides external service integrations and technical concerns like webhook delivery and tokens
package services

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
	"unicode/utf8"

	"github.com/amirphl/campaign-dispatcher/utils"
)

// maxResponseBytes bounds how much of a webhook response body is kept
const maxResponseBytes = 64 << 10

// DeliveryPayload is the JSON body posted to the owner's webhook
type DeliveryPayload struct {
	TargetUsername string `json:"target_username"`
	MessageContent string `json:"message_content"`
	CampaignName   string `json:"campaign_name"`
	MessageID      string `json:"message_id"`
}

// Endpoint describes where and how a payload is delivered
type Endpoint struct {
	URL    string
	Secret string
	Sign   bool
}

// DeliveryResult is the normalized outcome of one delivery attempt
type DeliveryResult struct {
	Success    bool            `json:"success"`
	HTTPStatus int             `json:"http_status,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Error      string          `json:"error,omitempty"`
	Simulated  bool            `json:"simulated,omitempty"`
}

// WebhookDispatcher delivers one payload. Delivery failures are reported in the result,
// not as an error; the error return is reserved for programming faults such as an
// unencodable payload.
type WebhookDispatcher interface {
	Deliver(ctx context.Context, endpoint Endpoint, payload DeliveryPayload) (*DeliveryResult, error)
}

// NullDispatcher simulates a successful delivery when no webhook is configured
type NullDispatcher struct{}

// NewNullDispatcher creates a dispatcher that never leaves the process
func NewNullDispatcher() *NullDispatcher {
	return &NullDispatcher{}
}

// Deliver always succeeds without any network call
func (d *NullDispatcher) Deliver(ctx context.Context, endpoint Endpoint, payload DeliveryPayload) (*DeliveryResult, error) {
	return &DeliveryResult{
		Success:   true,
		Body:      json.RawMessage(`{"simulated":true}`),
		Simulated: true,
	}, nil
}

// HTTPDispatcher posts payloads to the configured webhook URL
type HTTPDispatcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPDispatcher creates an HTTP dispatcher. The timeout is clamped to [1s, 60s];
// zero selects the default.
func NewHTTPDispatcher(timeout time.Duration) *HTTPDispatcher {
	timeout = ClampWebhookTimeout(timeout)
	return &HTTPDispatcher{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// ClampWebhookTimeout applies the default and the allowed bounds to a webhook timeout
func ClampWebhookTimeout(timeout time.Duration) time.Duration {
	switch {
	case timeout <= 0:
		return utils.DefaultWebhookTimeout
	case timeout < time.Second:
		return time.Second
	case timeout > utils.MaxWebhookTimeout:
		return utils.MaxWebhookTimeout
	default:
		return timeout
	}
}

// Timeout returns the effective per-call timeout
func (d *HTTPDispatcher) Timeout() time.Duration {
	return d.timeout
}

// Deliver posts the payload once. Non-2xx responses and transport errors are failures.
func (d *HTTPDispatcher) Deliver(ctx context.Context, endpoint Endpoint, payload DeliveryPayload) (*DeliveryResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryResult{Success: false, Error: err.Error()}, nil
	}
	req.Header.Set("Content-Type", "application/json")
	if endpoint.Secret != "" {
		req.Header.Set(utils.WebhookSecretHeader, endpoint.Secret)
		if endpoint.Sign {
			req.Header.Set(utils.WebhookSignatureHeader, SignPayload(endpoint.Secret, body))
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return &DeliveryResult{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	result := &DeliveryResult{
		HTTPStatus: resp.StatusCode,
		Body:       responseBody(raw, resp.StatusCode),
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Success = true
	} else {
		result.Error = fmt.Sprintf("Webhook returned %d", resp.StatusCode)
	}
	return result, nil
}

// nulEscape is valid JSON but cannot be stored in a jsonb column
var nulEscape = []byte(`\u0000`)

// responseBody keeps the response if it is JSON that jsonb accepts, otherwise records only the status code
func responseBody(raw []byte, status int) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && utf8.Valid(trimmed) && !bytes.Contains(trimmed, nulEscape) && json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	return json.RawMessage(fmt.Sprintf(`{"status":%d}`, status))
}

// SignPayload returns the "sha256=<hex>" HMAC of body keyed by secret
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// DispatcherSelector picks the simulated or the real dispatcher per owner
type DispatcherSelector struct {
	null WebhookDispatcher
	http WebhookDispatcher
}

// NewDispatcherSelector creates a selector over the two strategies
func NewDispatcherSelector(null, http WebhookDispatcher) *DispatcherSelector {
	return &DispatcherSelector{null: null, http: http}
}

// For returns the HTTP dispatcher when url is set, the null dispatcher otherwise
func (s *DispatcherSelector) For(url string) WebhookDispatcher {
	if url == "" {
		return s.null
	}
	return s.http
}
