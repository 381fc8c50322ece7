package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/engine-gateway/middleware"
	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/repositories/memory"
	"github.com/upb/engine-gateway/services/engine"
)

func newEngineRouter(t *testing.T, provider engine.Provider) (http.Handler, *memory.CalculationRepository) {
	t.Helper()
	store := memory.NewCalculationRepository()
	gateway := engine.NewGateway(provider, store, engine.Options{}, zap.NewNop())
	handler := NewEngineHandler(gateway, zap.NewNop())

	r := chi.NewRouter()
	r.Get("/status", handler.HandleStatus)
	r.Get("/calculations", handler.HandleListCalculations)
	r.Get("/calculations/{id}", handler.HandleGetCalculation)
	r.Post("/add", handler.HandleAdd)
	r.Post("/multiply", handler.HandleMultiply)
	r.Post("/factorial", handler.HandleFactorial)
	r.Post("/process-string", handler.HandleProcessString)
	r.Post("/sum-array", handler.HandleSumArray)
	return r, store
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestEngineHandler_Operations(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		body        string
		wantStatus  int
		wantResult  interface{}
		wantSuccess bool
		wantMessage string
	}{
		{"add", "/add", `{"a":2,"b":3}`, http.StatusOK, float64(5), true, "Successfully added 2 + 3"},
		{"multiply", "/multiply", `{"a":4,"b":-5}`, http.StatusOK, float64(-20), true, "Successfully multiplied 4 * -5"},
		{"factorial of zero", "/factorial", `{"n":0}`, http.StatusOK, float64(1), true, "Successfully calculated factorial of 0"},
		{"factorial of five", "/factorial", `{"n":5}`, http.StatusOK, float64(120), true, "Successfully calculated factorial of 5"},
		{"negative factorial", "/factorial", `{"n":-1}`, http.StatusBadRequest, nil, false, engine.MsgFactorialNegative},
		{"factorial too large", "/factorial", `{"n":21}`, http.StatusBadRequest, nil, false, engine.MsgFactorialOverflow},
		{"process string", "/process-string", `{"text":"hello"}`, http.StatusOK, "HELLO", true, "Successfully processed string"},
		{"process empty string", "/process-string", `{"text":""}`, http.StatusOK, "", true, "Successfully processed string"},
		{"sum array", "/sum-array", `{"numbers":[1.5,2.5,3.0]}`, http.StatusOK, 7.0, true, "Successfully summed 3 numbers"},
		{"sum empty array", "/sum-array", `{"numbers":[]}`, http.StatusOK, 0.0, true, "Successfully summed 0 numbers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, store := newEngineRouter(t, engine.NewBuiltinProvider())

			w := doJSON(t, router, http.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, "1", w.Header().Get(HeaderCalculationID))

			response := decodeEnvelope(t, w)
			assert.Equal(t, tt.wantResult, response["result"])
			assert.Equal(t, tt.wantSuccess, response["success"])
			assert.Equal(t, tt.wantMessage, response["message"])

			count, err := store.Count(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})
	}
}

func TestEngineHandler_MalformedBodiesAreNotAudited(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"empty body", "/add", ""},
		{"invalid json", "/add", `{"a":`},
		{"missing field", "/add", `{"a":1}`},
		{"wrong type", "/multiply", `{"a":"x","b":2}`},
		{"missing n", "/factorial", `{}`},
		{"missing text", "/process-string", `{"txt":"hi"}`},
		{"missing numbers", "/sum-array", `{}`},
		{"trailing data", "/add", `{"a":1,"b":2} {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, store := newEngineRouter(t, engine.NewBuiltinProvider())

			w := doJSON(t, router, http.MethodPost, tt.path, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, w.Header().Get(HeaderCalculationID))
			response := decodeEnvelope(t, w)
			assert.Equal(t, "bad_request", response["error"])

			count, err := store.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestEngineHandler_UnavailableEngine(t *testing.T) {
	router, store := newEngineRouter(t, engine.NewUnavailableProvider(nil))

	w := doJSON(t, router, http.MethodPost, "/add", `{"a":1,"b":2}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	response := decodeEnvelope(t, w)
	assert.Nil(t, response["result"])
	assert.Equal(t, false, response["success"])
	assert.True(t, strings.HasPrefix(response["message"].(string), "Engine error: "), response["message"])

	calc, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, calc.Success)
	assert.Nil(t, calc.Result)

	w = doJSON(t, router, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	status := decodeEnvelope(t, w)
	assert.Equal(t, false, status["available"])
	assert.Equal(t, "unavailable", status["provider"])
	assert.Equal(t, engine.MsgEngineUnavailable, status["message"])
}

func TestEngineHandler_SumArrayOverflow(t *testing.T) {
	router, store := newEngineRouter(t, engine.NewBuiltinProvider())

	w := doJSON(t, router, http.MethodPost, "/sum-array", `{"numbers":[1.7e308,1.7e308]}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "1", w.Header().Get(HeaderCalculationID))
	response := decodeEnvelope(t, w)
	assert.Nil(t, response["result"])
	assert.Equal(t, false, response["success"])
	assert.True(t, strings.HasPrefix(response["message"].(string), "Engine error: "), response["message"])

	calc, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, calc.Success)
	assert.Nil(t, calc.Result)
}

func TestEngineHandler_ProcessStringInvalidUTF8(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid byte", "{\"text\":\"ab\xffc\"}"},
		{"truncated sequence", "{\"text\":\"\xe2\x82\"}"},
		{"key in another case", "{\"Text\":\"\xff\"}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, store := newEngineRouter(t, engine.NewBuiltinProvider())

			w := doJSON(t, router, http.MethodPost, "/process-string", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			response := decodeEnvelope(t, w)
			assert.Nil(t, response["result"])
			assert.Equal(t, false, response["success"])
			assert.Equal(t, engine.MsgTextNotUTF8, response["message"])

			calc, err := store.GetByID(context.Background(), 1)
			require.NoError(t, err)
			assert.False(t, calc.Success)
			assert.Equal(t, engine.MsgTextNotUTF8, calc.Message)
		})
	}

	t.Run("invalid bytes outside the text field", func(t *testing.T) {
		router, _ := newEngineRouter(t, engine.NewBuiltinProvider())

		w := doJSON(t, router, http.MethodPost, "/process-string", "{\"note\":\"\xff\",\"text\":\"a\\nb\"}")

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeEnvelope(t, w)
		assert.Equal(t, "A\nB", response["result"])
	})
}

func TestEngineHandler_Status(t *testing.T) {
	router, store := newEngineRouter(t, engine.NewBuiltinProvider())

	w := doJSON(t, router, http.MethodGet, "/status", "")

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeEnvelope(t, w)
	assert.Equal(t, true, response["available"])
	assert.Equal(t, "builtin", response["provider"])
	assert.Equal(t, engine.MsgEngineAvailable, response["message"])

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "status checks are not audited")
}

func TestEngineHandler_ListCalculations(t *testing.T) {
	router, _ := newEngineRouter(t, engine.NewBuiltinProvider())

	doJSON(t, router, http.MethodPost, "/add", `{"a":1,"b":1}`)
	doJSON(t, router, http.MethodPost, "/factorial", `{"n":-3}`)
	doJSON(t, router, http.MethodPost, "/process-string", `{"text":"go"}`)

	t.Run("newest first and idempotent", func(t *testing.T) {
		first := doJSON(t, router, http.MethodGet, "/calculations", "")
		second := doJSON(t, router, http.MethodGet, "/calculations", "")
		require.Equal(t, http.StatusOK, first.Code)
		assert.JSONEq(t, first.Body.String(), second.Body.String())

		var calcs []models.Calculation
		require.NoError(t, json.Unmarshal(first.Body.Bytes(), &calcs))
		require.Len(t, calcs, 3)
		assert.Equal(t, int64(3), calcs[0].ID)
		assert.Equal(t, models.OperationProcessString, calcs[0].OperationType)
		assert.Equal(t, `{"text":"go"}`, calcs[0].InputData)
		assert.Equal(t, models.OperationFactorial, calcs[1].OperationType)
		assert.False(t, calcs[1].Success)
		assert.Equal(t, engine.MsgFactorialNegative, calcs[1].Message)
	})

	t.Run("limit and offset", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/calculations?limit=1&offset=2", "")
		require.Equal(t, http.StatusOK, w.Code)

		var calcs []models.Calculation
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &calcs))
		require.Len(t, calcs, 1)
		assert.Equal(t, int64(1), calcs[0].ID)
		require.NotNil(t, calcs[0].Result)
		assert.Equal(t, "2", *calcs[0].Result)
	})

	t.Run("offset past the end is empty", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/calculations?offset=50", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("invalid limit", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/calculations?limit=many", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative offset", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/calculations?offset=-1", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEngineHandler_GetCalculation(t *testing.T) {
	router, _ := newEngineRouter(t, engine.NewBuiltinProvider())
	doJSON(t, router, http.MethodPost, "/sum-array", `{"numbers":[1,2]}`)

	t.Run("found", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/calculations/1", "")
		require.Equal(t, http.StatusOK, w.Code)

		var calc models.Calculation
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &calc))
		assert.Equal(t, models.OperationSumArray, calc.OperationType)
		require.NotNil(t, calc.Result)
		assert.Equal(t, "3.0", *calc.Result)
	})

	t.Run("not found", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/calculations/99", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		response := decodeEnvelope(t, w)
		assert.Equal(t, "Calculation not found", response["message"])
	})

	t.Run("invalid id", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/calculations/abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEngineHandler_RecordsRequestID(t *testing.T) {
	store := memory.NewCalculationRepository()
	gateway := engine.NewGateway(engine.NewBuiltinProvider(), store, engine.Options{}, zap.NewNop())
	handler := NewEngineHandler(gateway, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/add", strings.NewReader(`{"a":1,"b":2}`))
	req = req.WithContext(middleware.WithRequestID(req.Context(), "req-abc"))
	w := httptest.NewRecorder()

	handler.HandleAdd(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	calc, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "req-abc", calc.RequestID)
}
