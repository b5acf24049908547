package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/app/handlers"
	"github.com/amirphl/campaign-dispatcher/app/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(checks map[string]HealthCheck) Router {
	log := zerolog.Nop()
	h := Handlers{
		Action:   handlers.NewActionHandler(nil, log),
		Campaign: handlers.NewCampaignHandler(nil, nil, log),
		Target:   handlers.NewTargetHandler(nil, log),
		Settings: handlers.NewSettingsHandler(nil, log),
		Message:  handlers.NewMessageHandler(nil, log),
		Audit:    handlers.NewAuditHandler(nil, log),
	}
	r := NewFiberRouter(Config{MetricsEnabled: true}, h, middleware.NewAuthMiddleware(nil), checks, log)
	r.SetupRoutes()
	return r
}

func get(t *testing.T, r Router, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := r.GetApp().Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantChecks map[string]any
	}{
		{
			name:       "no dependency checks",
			wantStatus: http.StatusOK,
			wantChecks: map[string]any{},
		},
		{
			name: "all healthy",
			checks: map[string]HealthCheck{
				"database": func(ctx context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			wantChecks: map[string]any{"database": "ok"},
		},
		{
			name: "redis down",
			checks: map[string]HealthCheck{
				"database": func(ctx context.Context) error { return nil },
				"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]any{"database": "ok", "redis": "connection refused"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, newTestRouter(tt.checks), "/api/v1/health")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var out dto.APIResponse
			require.NoError(t, json.Unmarshal(body, &out))
			data := out.Data.(map[string]any)
			assert.Equal(t, tt.wantChecks, data["checks"])
			assert.Equal(t, tt.wantStatus == http.StatusOK, out.Success)
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	resp, body := get(t, newTestRouter(nil), "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), `"code":"NOT_FOUND"`)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(nil)
	get(t, r, "/api/v1/health")

	resp, body := get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "dispatcher_http_requests_total")
}

func TestProtectedRouteWithoutOwner(t *testing.T) {
	for _, path := range []string{"/api/v1/settings", "/api/v1/audit"} {
		t.Run(path, func(t *testing.T) {
			resp, body := get(t, newTestRouter(nil), path)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Contains(t, string(body), "MISSING_OWNER_ID")
		})
	}
}
