package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/engine-gateway/utils"
)

// WelcomeResponse is returned from the API root
type WelcomeResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Health  string `json:"health"`
}

// RootHandler serves the API root
type RootHandler struct {
	projectName string
	version     string
	logger      *zap.Logger
}

// NewRootHandler creates a new RootHandler
func NewRootHandler(projectName, version string, logger *zap.Logger) *RootHandler {
	return &RootHandler{
		projectName: projectName,
		version:     version,
		logger:      logger,
	}
}

// HandleRoot handles GET /
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteJSON(w, http.StatusOK, WelcomeResponse{
		Message: "Welcome to " + h.projectName,
		Version: h.version,
		Health:  "/healthz",
	}); err != nil {
		h.logger.Error("failed to write root response", zap.Error(err))
	}
}
