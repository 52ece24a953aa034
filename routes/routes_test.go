package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/voice-agent/app"
	"github.com/upb/voice-agent/config"
	"github.com/upb/voice-agent/handlers"
	"github.com/upb/voice-agent/middleware"
	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/services"
	"github.com/upb/voice-agent/services/pipeline"
	"go.uber.org/zap"
)

type stubAuthorizer struct{}

func (stubAuthorizer) Authorize(_ context.Context, credential string) (*models.Caller, error) {
	switch credential {
	case "admin-token":
		return &models.Caller{ID: "user-1", Role: models.RoleAdmin}, nil
	case "worker-token":
		return nil, services.ErrForbidden
	}
	return nil, services.ErrInvalidToken
}

type stubPipeline struct{}

func (stubPipeline) RunVoice(context.Context, *models.Caller, models.AudioBlob) (*pipeline.VoiceResult, error) {
	return nil, services.ErrSynthesisFailed
}

func (stubPipeline) RunText(_ context.Context, _ *models.Caller, text string) (*pipeline.TextResult, error) {
	return &pipeline.TextResult{Query: text, Result: "three", Timestamp: time.Now().UTC()}, nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{
		Server: config.ServerConfig{CORSAllowedOrigins: []string{"http://localhost:3000"}},
	}
	return SetupRoutes(&app.Dependencies{
		Config:         cfg,
		Logger:         logger,
		AuthMiddleware: middleware.NewAuthMiddleware(stubAuthorizer{}, logger),
		HealthHandler:  handlers.NewHealthHandler(nil, cfg, logger),
		QueryHandler:   handlers.NewQueryHandler(stubPipeline{}, 0, logger),
	})
}

func TestSetupRoutes(t *testing.T) {
	router := testRouter(t)

	tests := []struct {
		name           string
		method         string
		path           string
		token          string
		body           string
		expectedStatus int
		expectedBody   string
	}{
		{name: "root", method: http.MethodGet, path: "/", expectedStatus: http.StatusOK, expectedBody: "Voice Agent Backend is running"},
		{name: "health", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK, expectedBody: `"azure_deployments"`},
		{name: "readiness without database", method: http.MethodGet, path: "/readyz", expectedStatus: http.StatusServiceUnavailable, expectedBody: "not_ready"},
		{name: "text query without token", method: http.MethodPost, path: "/text-query", body: `{"text":"hi"}`, expectedStatus: http.StatusUnauthorized, expectedBody: "Authentication required"},
		{name: "text query with invalid token", method: http.MethodPost, path: "/text-query", token: "garbage", body: `{"text":"hi"}`, expectedStatus: http.StatusUnauthorized, expectedBody: "Invalid token"},
		{name: "text query as non-admin", method: http.MethodPost, path: "/text-query", token: "worker-token", body: `{"text":"hi"}`, expectedStatus: http.StatusForbidden, expectedBody: "Admin access required"},
		{name: "text query as admin", method: http.MethodPost, path: "/text-query", token: "admin-token", body: `{"text":"how many projects?"}`, expectedStatus: http.StatusOK, expectedBody: `"result":"three"`},
		{name: "voice query without token", method: http.MethodPost, path: "/voice-query", expectedStatus: http.StatusUnauthorized},
		{name: "unknown route", method: http.MethodGet, path: "/nope", expectedStatus: http.StatusNotFound, expectedBody: "endpoint not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, w.Body.String(), tt.expectedBody)
			}
		})
	}
}

func TestSetupRoutesCORS(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/text-query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	w := httptest.NewRecorder()
	testRouter(t).ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSetupMetricsRoutes(t *testing.T) {
	testRouter(t).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	server := httptest.NewServer(SetupMetricsRoutes())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "voice_agent_http_requests_total")
}
