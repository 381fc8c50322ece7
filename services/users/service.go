package users

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/repositories"
	"github.com/upb/engine-gateway/services"
)

// CreateUserRequest represents a request to register a user.
// Password is accepted but never stored.
type CreateUserRequest struct {
	Email    string
	FullName string
	Password string
}

// UserService handles user management
type UserService struct {
	userRepo repositories.UserRepository
	logger   *zap.Logger
}

// NewUserService creates a new UserService instance
func NewUserService(userRepo repositories.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// Create registers a new active user. Emails must be unique.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	user := models.NewUser(req.Email, req.FullName)
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrDuplicateEmail
		}
		return nil, services.WrapInternal("failed to create user", err)
	}

	s.logger.Info("user created", zap.Int64("user_id", user.ID))
	return user, nil
}

// Get retrieves a user by ID
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "failed to get user")
	}
	return user, nil
}

// List returns users in creation order
func (s *UserService) List(ctx context.Context, skip, limit int) ([]*models.User, error) {
	skip, limit, err := services.NormalizePage(skip, limit)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.List(ctx, skip, limit)
	if err != nil {
		return nil, services.WrapInternal("failed to list users", err)
	}
	return users, nil
}

// Delete removes a user
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return mapNotFound(err, "failed to delete user")
	}
	s.logger.Info("user deleted", zap.Int64("user_id", id))
	return nil
}

func mapNotFound(err error, msg string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return services.ErrUserNotFound
	}
	return services.WrapInternal(msg, err)
}
