package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/services"
	"github.com/upb/engine-gateway/services/users"
)

// MockUserService is a mock implementation of UserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Create(ctx context.Context, req users.CreateUserRequest) (*models.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Get(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) List(ctx context.Context, skip, limit int) ([]*models.User, error) {
	args := m.Called(ctx, skip, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newUserRouter(svc UserService) http.Handler {
	handler := NewUserHandler(svc, zap.NewNop())
	r := chi.NewRouter()
	r.Post("/users", handler.HandleCreateUser)
	r.Get("/users", handler.HandleListUsers)
	r.Get("/users/{id}", handler.HandleGetUser)
	r.Delete("/users/{id}", handler.HandleDeleteUser)
	return r
}

func TestHandleCreateUser(t *testing.T) {
	t.Run("returns 201 with the created user", func(t *testing.T) {
		svc := new(MockUserService)
		created := &models.User{ID: 1, Email: "ada@example.com", FullName: "Ada", IsActive: true, CreatedAt: time.Now()}
		svc.On("Create", mock.Anything, users.CreateUserRequest{
			Email:    "ada@example.com",
			FullName: "Ada",
			Password: "secret",
		}).Return(created, nil)

		req := httptest.NewRequest(http.MethodPost, "/users",
			strings.NewReader(`{"email":"ada@example.com","full_name":"Ada","password":"secret"}`))
		w := httptest.NewRecorder()
		newUserRouter(svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, float64(1), body["id"])
		assert.Equal(t, "ada@example.com", body["email"])
		assert.Equal(t, true, body["is_active"])
		assert.NotContains(t, body, "password")
		svc.AssertExpectations(t)
	})

	t.Run("returns 400 for invalid email", func(t *testing.T) {
		svc := new(MockUserService)

		req := httptest.NewRequest(http.MethodPost, "/users",
			strings.NewReader(`{"email":"not-an-email","password":"secret"}`))
		w := httptest.NewRecorder()
		newUserRouter(svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		details := body["details"].(map[string]interface{})
		assert.Equal(t, "email must be a valid email", details["email"])
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("returns 400 for duplicate email", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("Create", mock.Anything, mock.Anything).Return(nil, services.ErrDuplicateEmail)

		req := httptest.NewRequest(http.MethodPost, "/users",
			strings.NewReader(`{"email":"ada@example.com","password":"secret"}`))
		w := httptest.NewRecorder()
		newUserRouter(svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "User with this email already exists", body["message"])
	})
}

func TestHandleListUsers(t *testing.T) {
	t.Run("passes skip and limit", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("List", mock.Anything, 5, 10).Return([]*models.User{{ID: 6, Email: "f@example.com"}}, nil)

		req := httptest.NewRequest(http.MethodGet, "/users?skip=5&limit=10", nil)
		w := httptest.NewRecorder()
		newUserRouter(svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body []map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.Equal(t, float64(6), body[0]["id"])
		svc.AssertExpectations(t)
	})

	t.Run("defaults and empty list", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("List", mock.Anything, 0, services.DefaultPageLimit).Return(nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		w := httptest.NewRecorder()
		newUserRouter(svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("invalid skip", func(t *testing.T) {
		svc := new(MockUserService)

		req := httptest.NewRequest(http.MethodGet, "/users?skip=x", nil)
		w := httptest.NewRecorder()
		newUserRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandleGetUser(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("Get", mock.Anything, int64(3)).Return(&models.User{ID: 3, Email: "c@example.com"}, nil)

		req := httptest.NewRequest(http.MethodGet, "/users/3", nil)
		w := httptest.NewRecorder()
		newUserRouter(svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "c@example.com", body["email"])
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("Get", mock.Anything, int64(9)).Return(nil, services.ErrUserNotFound)

		req := httptest.NewRequest(http.MethodGet, "/users/9", nil)
		w := httptest.NewRecorder()
		newUserRouter(svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusNotFound, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "User not found", body["message"])
	})
}

func TestHandleDeleteUser(t *testing.T) {
	t.Run("returns 204", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("Delete", mock.Anything, int64(2)).Return(nil)

		req := httptest.NewRequest(http.MethodDelete, "/users/2", nil)
		w := httptest.NewRecorder()
		newUserRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("internal errors are hidden", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("Delete", mock.Anything, int64(2)).Return(services.WrapInternal("failed to delete user", errors.New("disk on fire")))

		req := httptest.NewRequest(http.MethodDelete, "/users/2", nil)
		w := httptest.NewRecorder()
		newUserRouter(svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "disk on fire")
	})
}
