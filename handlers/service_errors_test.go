package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/services"
	"github.com/upb/engine-gateway/services/engine"
	"github.com/upb/engine-gateway/utils"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedError   string
		expectedMessage string
	}{
		{
			name:            "not found error",
			err:             services.ErrCalculationNotFound,
			expectedStatus:  http.StatusNotFound,
			expectedError:   "not_found",
			expectedMessage: "Calculation not found",
		},
		{
			name:            "validation error",
			err:             services.ErrInvalidInput,
			expectedStatus:  http.StatusBadRequest,
			expectedError:   "bad_request",
			expectedMessage: "invalid input",
		},
		{
			name:            "duplicate email",
			err:             services.ErrDuplicateEmail,
			expectedStatus:  http.StatusBadRequest,
			expectedError:   "bad_request",
			expectedMessage: "User with this email already exists",
		},
		{
			name:            "rate limit error",
			err:             services.ErrRateLimitExceeded,
			expectedStatus:  http.StatusTooManyRequests,
			expectedError:   "rate_limit_exceeded",
			expectedMessage: "rate limit exceeded",
		},
		{
			name:            "conflict error",
			err:             services.NewDomainError(services.ErrorTypeConflict, "already exists", nil),
			expectedStatus:  http.StatusConflict,
			expectedError:   "conflict",
			expectedMessage: "already exists",
		},
		{
			name:            "engine error",
			err:             services.NewProviderInvocationFailed("Engine error: boom", errors.New("boom")),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "engine_error",
			expectedMessage: "Engine error: boom",
		},
		{
			name:            "internal error",
			err:             services.WrapInternal("failed to list", errors.New("connection reset")),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "An internal error occurred",
		},
		{
			name:            "unknown error",
			err:             errors.New("some unknown error"),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response utils.ErrorResponse
			err := json.NewDecoder(w.Body).Decode(&response)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedError, response.Error)
			assert.Equal(t, tt.expectedMessage, response.Message)
		})
	}
}

func TestHandleServiceErrorWithDetails(t *testing.T) {
	logger := zap.NewNop()

	err := services.NewDomainError(services.ErrorTypeRateLimit, "slow down", nil).
		WithDetail("limit", 100).
		WithDetail("window", "second")

	w := httptest.NewRecorder()
	HandleServiceError(w, err, logger)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var response utils.ErrorResponse
	err2 := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err2)

	assert.Equal(t, "rate_limit_exceeded", response.Error)
	assert.NotNil(t, response.Details)
	assert.Equal(t, float64(100), response.Details["limit"])
	assert.Equal(t, "second", response.Details["window"])
}

func TestHandleServiceErrorNil(t *testing.T) {
	logger := zap.NewNop()
	w := httptest.NewRecorder()

	HandleServiceError(w, nil, logger)

	// Should not write anything
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleValidationError(t *testing.T) {
	logger := zap.NewNop()

	t.Run("custom validation error", func(t *testing.T) {
		fields := map[string]string{
			"a": "a is required",
			"b": "b is required",
		}
		err := &utils.ValidationError{
			Message: "Validation failed",
			Fields:  fields,
		}

		w := httptest.NewRecorder()
		HandleValidationError(w, err, logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response utils.ErrorResponse
		err2 := json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err2)

		assert.Equal(t, "bad_request", response.Error)
		assert.Equal(t, "Validation failed", response.Message)
		assert.NotNil(t, response.Details)
		assert.Equal(t, "a is required", response.Details["a"])
		assert.Equal(t, "b is required", response.Details["b"])
	})

	t.Run("generic error", func(t *testing.T) {
		err := errors.New("invalid request body: unexpected EOF")

		w := httptest.NewRecorder()
		HandleValidationError(w, err, logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response utils.ErrorResponse
		err2 := json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err2)

		assert.Equal(t, "bad_request", response.Error)
		assert.Equal(t, "invalid request body: unexpected EOF", response.Message)
	})
}

func TestWriteEngineResult(t *testing.T) {
	logger := zap.NewNop()

	t.Run("success", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteEngineResult(w, &engine.Result{
			Operation:     models.OperationAdd,
			Value:         int64(5),
			Success:       true,
			Message:       "Successfully added 2 + 3",
			CalculationID: 12,
		}, nil, logger)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "12", w.Header().Get(HeaderCalculationID))
		assert.JSONEq(t, `{"result":5,"success":true,"message":"Successfully added 2 + 3"}`, w.Body.String())
	})

	t.Run("rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteEngineResult(w,
			&engine.Result{Operation: models.OperationFactorial, Message: engine.MsgFactorialNegative, CalculationID: 3},
			services.NewValidationFailed(engine.MsgFactorialNegative),
			logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"result":null,"success":false,"message":"Factorial is not defined for negative numbers"}`, w.Body.String())
	})

	t.Run("engine failure without audit id", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteEngineResult(w,
			&engine.Result{Operation: models.OperationAdd, Message: "Engine error: boom"},
			services.NewProviderInvocationFailed("Engine error: boom", errors.New("boom")),
			logger)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Empty(t, w.Header().Get(HeaderCalculationID))
		assert.JSONEq(t, `{"result":null,"success":false,"message":"Engine error: boom"}`, w.Body.String())
	})
}
