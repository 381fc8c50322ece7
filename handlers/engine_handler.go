package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/upb/engine-gateway/middleware"
	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/services"
	"github.com/upb/engine-gateway/services/engine"
	"github.com/upb/engine-gateway/utils"
)

// EngineGateway is the subset of the engine gateway the HTTP layer needs
type EngineGateway interface {
	Add(ctx context.Context, a, b int64) (*engine.Result, error)
	Multiply(ctx context.Context, a, b int64) (*engine.Result, error)
	Factorial(ctx context.Context, n int64) (*engine.Result, error)
	ProcessString(ctx context.Context, text string) (*engine.Result, error)
	SumArray(ctx context.Context, numbers []float64) (*engine.Result, error)
	ProviderStatus() engine.ProviderStatus
	Calculations(ctx context.Context, limit, offset int) ([]*models.Calculation, error)
	Calculation(ctx context.Context, id int64) (*models.Calculation, error)
}

// TwoNumbersRequest is the body of the add and multiply endpoints
type TwoNumbersRequest struct {
	A *int64 `json:"a" validate:"required"`
	B *int64 `json:"b" validate:"required"`
}

// FactorialRequest is the body of the factorial endpoint
type FactorialRequest struct {
	N *int64 `json:"n" validate:"required"`
}

// StringRequest is the body of the process-string endpoint
type StringRequest struct {
	Text *string `json:"text" validate:"required"`
}

// ArrayRequest is the body of the sum-array endpoint
type ArrayRequest struct {
	Numbers []float64 `json:"numbers" validate:"required"`
}

// EngineStatusResponse reports whether an engine is loaded
type EngineStatusResponse struct {
	Available bool   `json:"available"`
	Provider  string `json:"provider"`
	Message   string `json:"message"`
}

// EngineHandler handles engine operation HTTP requests
type EngineHandler struct {
	gateway EngineGateway
	logger  *zap.Logger
}

// NewEngineHandler creates a new EngineHandler
func NewEngineHandler(gateway EngineGateway, logger *zap.Logger) *EngineHandler {
	return &EngineHandler{
		gateway: gateway,
		logger:  logger,
	}
}

// HandleStatus handles GET /api/v1/engine/status
func (h *EngineHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := h.gateway.ProviderStatus()
	if err := utils.WriteJSON(w, http.StatusOK, EngineStatusResponse{
		Available: status.Available,
		Provider:  status.Provider,
		Message:   status.Message,
	}); err != nil {
		h.logger.Error("failed to write status response", zap.Error(err))
	}
}

// HandleAdd handles POST /api/v1/engine/add
func (h *EngineHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req TwoNumbersRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.gateway.Add(h.requestContext(r), *req.A, *req.B)
	WriteEngineResult(w, result, err, h.logger)
}

// HandleMultiply handles POST /api/v1/engine/multiply
func (h *EngineHandler) HandleMultiply(w http.ResponseWriter, r *http.Request) {
	var req TwoNumbersRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.gateway.Multiply(h.requestContext(r), *req.A, *req.B)
	WriteEngineResult(w, result, err, h.logger)
}

// HandleFactorial handles POST /api/v1/engine/factorial
func (h *EngineHandler) HandleFactorial(w http.ResponseWriter, r *http.Request) {
	var req FactorialRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.gateway.Factorial(h.requestContext(r), *req.N)
	WriteEngineResult(w, result, err, h.logger)
}

// HandleProcessString handles POST /api/v1/engine/process-string
func (h *EngineHandler) HandleProcessString(w http.ResponseWriter, r *http.Request) {
	body, err := utils.ReadBody(w, r)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	var req StringRequest
	if !h.decodeBody(w, body, &req) {
		return
	}

	text := *req.Text
	if !utf8.Valid(body) {
		// Decoding replaced invalid bytes with U+FFFD. Pass the undecoded
		// string instead so the gateway rejects and records it.
		if raw, ok := rawStringField(body, "text"); ok && !utf8.ValidString(raw) {
			text = raw
		}
	}

	result, err := h.gateway.ProcessString(h.requestContext(r), text)
	WriteEngineResult(w, result, err, h.logger)
}

// HandleSumArray handles POST /api/v1/engine/sum-array
func (h *EngineHandler) HandleSumArray(w http.ResponseWriter, r *http.Request) {
	var req ArrayRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.gateway.SumArray(h.requestContext(r), req.Numbers)
	WriteEngineResult(w, result, err, h.logger)
}

// HandleListCalculations handles GET /api/v1/engine/calculations
func (h *EngineHandler) HandleListCalculations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", services.DefaultPageLimit)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	calcs, err := h.gateway.Calculations(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if calcs == nil {
		calcs = []*models.Calculation{}
	}
	if err := utils.WriteJSON(w, http.StatusOK, calcs); err != nil {
		h.logger.Error("failed to write calculations response", zap.Error(err))
	}
}

// HandleGetCalculation handles GET /api/v1/engine/calculations/{id}
func (h *EngineHandler) HandleGetCalculation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	calc, err := h.gateway.Calculation(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, calc); err != nil {
		h.logger.Error("failed to write calculation response", zap.Error(err))
	}
}

// decode parses and validates the request body. Failures are answered
// with 400 and never reach the gateway, so they leave no audit record.
func (h *EngineHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := utils.ReadBody(w, r)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return false
	}
	return h.decodeBody(w, body, v)
}

func (h *EngineHandler) decodeBody(w http.ResponseWriter, body []byte, v interface{}) bool {
	if err := utils.UnmarshalJSON(body, v); err != nil {
		h.logger.Debug("invalid engine request body", zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return false
	}
	if err := utils.ValidateStruct(v); err != nil {
		HandleValidationError(w, err, h.logger)
		return false
	}
	return true
}

// rawStringField returns the bytes between the quotes of a top-level string
// field without unescaping them.
func rawStringField(body []byte, name string) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", false
	}
	raw, ok := fields[name]
	if !ok {
		// encoding/json falls back to a case-insensitive key match
		for k, v := range fields {
			if strings.EqualFold(k, name) {
				raw = v
				break
			}
		}
	}
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return "", false
	}
	return string(raw[1 : len(raw)-1]), true
}

func (h *EngineHandler) requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if requestID := middleware.GetRequestIDFromContext(ctx); requestID != "" {
		ctx = engine.WithRequestID(ctx, requestID)
	}
	return ctx
}
