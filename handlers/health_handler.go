package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/engine-gateway/services/engine"
	"github.com/upb/engine-gateway/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthChecker is implemented by the audit stores
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EngineStatusProvider reports whether an engine is loaded
type EngineStatusProvider interface {
	ProviderStatus() engine.ProviderStatus
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	store  HealthChecker
	engine EngineStatusProvider
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. Either dependency may be nil.
func NewHealthHandler(store HealthChecker, engine EngineStatusProvider, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		engine: engine,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Only the audit store gates readiness. A missing engine is reported but
// the gateway keeps serving and answers engine calls with failures.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.store != nil {
		if err := h.store.HealthCheck(ctx); err != nil {
			h.logger.Warn("audit store health check failed", zap.Error(err))
			checks["audit_store"] = "unhealthy"
			allHealthy = false
		} else {
			checks["audit_store"] = "healthy"
		}
	}

	if h.engine != nil {
		if h.engine.ProviderStatus().Available {
			checks["engine"] = "available"
		} else {
			checks["engine"] = "unavailable"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
