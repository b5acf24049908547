package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload() DeliveryPayload {
	return DeliveryPayload{
		TargetUsername: "alice",
		MessageContent: "Hi alice",
		CampaignName:   "Launch",
		MessageID:      "6f1c1a52-8f0e-4f43-b1e4-1c9f0a3f5d10",
	}
}

func TestNullDispatcher_Deliver(t *testing.T) {
	result, err := NewNullDispatcher().Deliver(context.Background(), Endpoint{}, testPayload())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Simulated)
	assert.JSONEq(t, `{"simulated":true}`, string(result.Body))
}

func TestHTTPDispatcher_Deliver(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		secret        string
		expectSuccess bool
		expectBody    string
		expectError   string
	}{
		{
			name:          "2xx with json body",
			status:        http.StatusOK,
			body:          `{"ok":true}`,
			secret:        "s3cret",
			expectSuccess: true,
			expectBody:    `{"ok":true}`,
		},
		{
			name:          "2xx with plain body",
			status:        http.StatusAccepted,
			body:          "accepted",
			expectSuccess: true,
			expectBody:    `{"status":202}`,
		},
		{
			name:          "2xx with nul escape",
			status:        http.StatusOK,
			body:          `{"note":"a\u0000b"}`,
			expectSuccess: true,
			expectBody:    `{"status":200}`,
		},
		{
			name:          "2xx with invalid utf8",
			status:        http.StatusOK,
			body:          "\"\xff\xfe\"",
			expectSuccess: true,
			expectBody:    `{"status":200}`,
		},
		{
			name:        "5xx is a failure",
			status:      http.StatusInternalServerError,
			body:        "boom",
			expectBody:  `{"status":500}`,
			expectError: "Webhook returned 500",
		},
		{
			name:        "4xx keeps json body",
			status:      http.StatusBadRequest,
			body:        `{"error":"bad"}`,
			expectBody:  `{"error":"bad"}`,
			expectError: "Webhook returned 400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSecret, gotContentType string
			var gotPayload DeliveryPayload
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				gotSecret = r.Header.Get(utils.WebhookSecretHeader)
				gotContentType = r.Header.Get("Content-Type")
				raw, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(raw, &gotPayload)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			dispatcher := NewHTTPDispatcher(5 * time.Second)
			result, err := dispatcher.Deliver(context.Background(), Endpoint{URL: server.URL, Secret: tt.secret}, testPayload())
			require.NoError(t, err)

			assert.Equal(t, tt.expectSuccess, result.Success)
			assert.Equal(t, tt.status, result.HTTPStatus)
			assert.JSONEq(t, tt.expectBody, string(result.Body))
			assert.Equal(t, tt.expectError, result.Error)
			assert.Equal(t, tt.secret, gotSecret)
			assert.Equal(t, "application/json", gotContentType)
			assert.Equal(t, testPayload(), gotPayload)
		})
	}
}

func TestHTTPDispatcher_SignsWhenRequested(t *testing.T) {
	var gotSignature string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get(utils.WebhookSignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	dispatcher := NewHTTPDispatcher(time.Second)

	_, err := dispatcher.Deliver(context.Background(), Endpoint{URL: server.URL, Secret: "k"}, testPayload())
	require.NoError(t, err)
	assert.Empty(t, gotSignature)

	result, err := dispatcher.Deliver(context.Background(), Endpoint{URL: server.URL, Secret: "k", Sign: true}, testPayload())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, SignPayload("k", gotBody), gotSignature)
	assert.Contains(t, gotSignature, "sha256=")
}

func TestHTTPDispatcher_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	result, err := NewHTTPDispatcher(time.Second).Deliver(context.Background(), Endpoint{URL: url}, testPayload())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Zero(t, result.HTTPStatus)
	assert.NotEmpty(t, result.Error)
}

func TestHTTPDispatcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	result, err := NewHTTPDispatcher(time.Second).Deliver(context.Background(), Endpoint{URL: server.URL}, testPayload())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClampWebhookTimeout(t *testing.T) {
	assert.Equal(t, utils.DefaultWebhookTimeout, ClampWebhookTimeout(0))
	assert.Equal(t, time.Second, ClampWebhookTimeout(10*time.Millisecond))
	assert.Equal(t, utils.MaxWebhookTimeout, ClampWebhookTimeout(10*time.Minute))
	assert.Equal(t, 30*time.Second, ClampWebhookTimeout(30*time.Second))
}

func TestDispatcherSelector(t *testing.T) {
	var httpCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpCalls.Add(1)
	}))
	defer server.Close()

	selector := NewDispatcherSelector(NewNullDispatcher(), NewHTTPDispatcher(time.Second))

	result, err := selector.For("").Deliver(context.Background(), Endpoint{}, testPayload())
	require.NoError(t, err)
	assert.True(t, result.Simulated)
	assert.Zero(t, httpCalls.Load())

	result, err = selector.For(server.URL).Deliver(context.Background(), Endpoint{URL: server.URL}, testPayload())
	require.NoError(t, err)
	assert.False(t, result.Simulated)
	assert.EqualValues(t, 1, httpCalls.Load())
}
