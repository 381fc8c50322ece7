package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/engine-gateway/services"
	"github.com/upb/engine-gateway/services/engine"
	"github.com/upb/engine-gateway/utils"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	message := services.GetErrorMessage(err)
	details := services.GetErrorDetails(err)

	// Map error type to HTTP status and response
	switch {
	case services.IsNotFoundError(err):
		if err := utils.WriteNotFound(w, message); err != nil {
			logger.Error("failed to write not found response", zap.Error(err))
		}

	case services.IsValidationError(err):
		if err := utils.WriteBadRequest(w, message, details); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}

	case services.IsRateLimitError(err):
		if err := utils.WriteTooManyRequests(w, message, details); err != nil {
			logger.Error("failed to write rate limit response", zap.Error(err))
		}

	case services.IsConflictError(err):
		if err := utils.WriteConflict(w, message, details); err != nil {
			logger.Error("failed to write conflict response", zap.Error(err))
		}

	case services.IsExternalError(err):
		// Engine failures are server errors, not gateway errors
		logger.Warn("engine error", zap.Error(err))
		if err := utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse{
			Error:   "engine_error",
			Message: message,
			Details: details,
		}); err != nil {
			logger.Error("failed to write engine error response", zap.Error(err))
		}

	case services.IsInternalError(err):
		// Log internal errors but return generic message
		logger.Error("internal server error", zap.Error(err))
		if err := utils.WriteInternalServerError(w, "An internal error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}

	default:
		// Unknown error type - log and return internal error
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		if err := utils.WriteInternalServerError(w, "An unexpected error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	// Generic validation error
	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// EngineResponse is the envelope returned by every engine operation
type EngineResponse struct {
	Result  interface{} `json:"result"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
}

// WriteEngineResult renders a gateway result, or its error, as an
// EngineResponse. Rejected requests are 400, engine failures 500.
func WriteEngineResult(w http.ResponseWriter, result *engine.Result, err error, logger *zap.Logger) {
	if result != nil && result.CalculationID > 0 {
		w.Header().Set(HeaderCalculationID, formatID(result.CalculationID))
	}

	if err == nil {
		if werr := utils.WriteJSON(w, http.StatusOK, EngineResponse{
			Result:  result.Value,
			Success: true,
			Message: result.Message,
		}); werr != nil {
			logger.Error("failed to write engine response", zap.Error(werr))
		}
		return
	}

	status := http.StatusInternalServerError
	if services.IsValidationError(err) {
		status = http.StatusBadRequest
	}
	if !services.IsValidationError(err) && !services.IsExternalError(err) {
		logger.Error("unexpected engine gateway error", zap.Error(err))
	}

	if werr := utils.WriteJSON(w, status, EngineResponse{
		Result:  nil,
		Success: false,
		Message: services.GetErrorMessage(err),
	}); werr != nil {
		logger.Error("failed to write engine error response", zap.Error(werr))
	}
}
