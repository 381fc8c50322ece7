package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/repositories"
)

// UserRepository is an in-memory, insertion-ordered user store
type UserRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  []models.User
}

// NewUserRepository creates an empty user store
func NewUserRepository() *UserRepository {
	return &UserRepository{nextID: 1}
}

// Create stores the user after checking the email is not already taken
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.users {
		if r.users[i].Email == user.Email {
			return fmt.Errorf("user %s: %w", user.Email, repositories.ErrDuplicate)
		}
	}

	user.ID = r.nextID
	r.nextID++
	r.users = append(r.users, *user)
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.users {
		if r.users[i].ID == id {
			u := r.users[i]
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %d: %w", id, repositories.ErrNotFound)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.users {
		if r.users[i].Email == email {
			u := r.users[i]
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, repositories.ErrNotFound)
}

// List returns users[skip:skip+limit]
func (r *UserRepository) List(ctx context.Context, skip, limit int) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lo, hi := window(len(r.users), skip, limit)
	out := make([]*models.User, 0, hi-lo)
	for i := lo; i < hi; i++ {
		u := r.users[i]
		out = append(out, &u)
	}
	return out, nil
}

// Delete removes a user by ID
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.users {
		if r.users[i].ID == id {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("user %d: %w", id, repositories.ErrNotFound)
}

// window clamps a skip/limit pair to [0, n]
func window(n, skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit < 0 {
		limit = 0
	}
	lo := min(skip, n)
	hi := min(lo+limit, n)
	return lo, hi
}

var _ repositories.UserRepository = (*UserRepository)(nil)
