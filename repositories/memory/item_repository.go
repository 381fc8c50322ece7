package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/repositories"
)

// ItemRepository is an in-memory, insertion-ordered item store
type ItemRepository struct {
	mu     sync.RWMutex
	nextID int64
	items  []models.Item
}

// NewItemRepository creates an empty item store
func NewItemRepository() *ItemRepository {
	return &ItemRepository{nextID: 1}
}

// Create stores the item and assigns its ID
func (r *ItemRepository) Create(ctx context.Context, item *models.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item.ID = r.nextID
	r.nextID++
	r.items = append(r.items, cloneItem(item))
	return nil
}

// GetByID retrieves an item by ID
func (r *ItemRepository) GetByID(ctx context.Context, id int64) (*models.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		it := cloneItem(&r.items[i])
		return &it, nil
	}
	return nil, fmt.Errorf("item %d: %w", id, repositories.ErrNotFound)
}

// List returns items[skip:skip+limit]
func (r *ItemRepository) List(ctx context.Context, skip, limit int) ([]*models.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lo, hi := window(len(r.items), skip, limit)
	out := make([]*models.Item, 0, hi-lo)
	for i := lo; i < hi; i++ {
		it := cloneItem(&r.items[i])
		out = append(out, &it)
	}
	return out, nil
}

// Update applies the patch in place and returns the result
func (r *ItemRepository) Update(ctx context.Context, id int64, patch models.ItemPatch) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("item %d: %w", id, repositories.ErrNotFound)
	}
	r.items[i].Apply(patch)
	it := cloneItem(&r.items[i])
	return &it, nil
}

// Delete removes an item by ID
func (r *ItemRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return fmt.Errorf("item %d: %w", id, repositories.ErrNotFound)
	}
	r.items = append(r.items[:i], r.items[i+1:]...)
	return nil
}

func (r *ItemRepository) indexOf(id int64) int {
	for i := range r.items {
		if r.items[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneItem(it *models.Item) models.Item {
	out := *it
	if it.Description != nil {
		d := *it.Description
		out.Description = &d
	}
	return out
}

var _ repositories.ItemRepository = (*ItemRepository)(nil)
