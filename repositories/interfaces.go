package repositories

import (
	"context"
	"errors"

	"github.com/upb/engine-gateway/models"
)

// Sentinel errors returned by every repository implementation
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// CalculationRepository is the append-only audit store for engine calls
type CalculationRepository interface {
	// Insert persists a new calculation and fills in its ID and CreatedAt.
	// IDs are unique and increase monotonically, including under concurrent inserts.
	Insert(ctx context.Context, calc *models.Calculation) error

	// GetByID retrieves a calculation by ID
	GetByID(ctx context.Context, id int64) (*models.Calculation, error)

	// List retrieves calculations newest first with pagination
	List(ctx context.Context, limit, offset int) ([]*models.Calculation, error)

	// Count returns the number of stored calculations
	Count(ctx context.Context) (int64, error)

	// InitSchema creates the backing table when it does not exist
	InitSchema(ctx context.Context) error

	// HealthCheck verifies that the store is reachable
	HealthCheck(ctx context.Context) error
}

// UserRepository handles user data operations
type UserRepository interface {
	// Create stores a new user and assigns its ID.
	// Returns ErrDuplicate when the email is already taken.
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// List retrieves users in insertion order, skipping the first skip entries
	List(ctx context.Context, skip, limit int) ([]*models.User, error)

	// Delete deletes a user
	Delete(ctx context.Context, id int64) error
}

// ItemRepository handles item data operations
type ItemRepository interface {
	// Create stores a new item and assigns its ID
	Create(ctx context.Context, item *models.Item) error

	// GetByID retrieves an item by ID
	GetByID(ctx context.Context, id int64) (*models.Item, error)

	// List retrieves items in insertion order, skipping the first skip entries
	List(ctx context.Context, skip, limit int) ([]*models.Item, error)

	// Update applies a partial update and returns the updated item
	Update(ctx context.Context, id int64, patch models.ItemPatch) (*models.Item, error)

	// Delete deletes an item
	Delete(ctx context.Context, id int64) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Calculations CalculationRepository
	Users        UserRepository
	Items        ItemRepository
}
