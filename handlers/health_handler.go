package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/upb/voice-agent/config"
	"github.com/upb/voice-agent/utils"
	"go.uber.org/zap"
)

// RootResponse is the liveness banner
type RootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// DeploymentStatus reports which Azure OpenAI deployments are configured
type DeploymentStatus struct {
	Chat    bool `json:"chat"`
	Whisper bool `json:"whisper"`
	TTS     bool `json:"tts"`
}

// ServiceStatus reports configuration presence per collaborator
type ServiceStatus struct {
	AzureOpenAI      bool             `json:"azure_openai"`
	AzureDeployments DeploymentStatus `json:"azure_deployments"`
	Supabase         bool             `json:"supabase"`
	Database         bool             `json:"database"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  *ServiceStatus    `json:"services,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

var errNoDatabase = errors.New("database not configured")

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     *sql.DB
	cfg    *config.Config
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *sql.DB, cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// HandleRoot handles GET /
func (h *HealthHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, RootResponse{
		Message: "Voice Agent Backend is running",
		Status:  "healthy",
	})
}

// HandleHealth handles GET /health
// Reports configuration presence only; no collaborator is contacted.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  serviceStatus(h.cfg),
	}

	_ = utils.WriteJSON(w, http.StatusOK, response)
}

// HandleReadiness handles GET /readyz
// Readiness check - validates that the query database is reachable
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.checkDatabase(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return errNoDatabase
	}

	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return err
	}

	return nil
}

func serviceStatus(cfg *config.Config) *ServiceStatus {
	if cfg == nil {
		return &ServiceStatus{}
	}
	return &ServiceStatus{
		AzureOpenAI: cfg.AzureOpenAI.APIKey != "" && cfg.AzureOpenAI.Endpoint != "",
		AzureDeployments: DeploymentStatus{
			Chat:    cfg.AzureOpenAI.ChatDeployment != "",
			Whisper: cfg.AzureOpenAI.WhisperDeployment != "",
			TTS:     cfg.AzureOpenAI.TTSDeployment != "",
		},
		Supabase: cfg.Supabase.URL != "" && cfg.Supabase.ServiceRoleKey != "",
		Database: cfg.Database.ConnectionString != "",
	}
}
