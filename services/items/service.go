package items

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/repositories"
	"github.com/upb/engine-gateway/services"
)

// DefaultOwnerID is used when a create request names no owner
const DefaultOwnerID int64 = 1

// CreateItemRequest represents a request to create an item
type CreateItemRequest struct {
	Title       string
	Description *string
	Price       float64
	OwnerID     int64
}

// ItemService handles item management
type ItemService struct {
	itemRepo repositories.ItemRepository
	logger   *zap.Logger
}

// NewItemService creates a new ItemService instance
func NewItemService(itemRepo repositories.ItemRepository, logger *zap.Logger) *ItemService {
	return &ItemService{
		itemRepo: itemRepo,
		logger:   logger,
	}
}

// Create stores a new item
func (s *ItemService) Create(ctx context.Context, req CreateItemRequest) (*models.Item, error) {
	ownerID := req.OwnerID
	if ownerID == 0 {
		ownerID = DefaultOwnerID
	}

	item := models.NewItem(req.Title, req.Description, req.Price, ownerID)
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, services.WrapInternal("failed to create item", err)
	}

	s.logger.Info("item created", zap.Int64("item_id", item.ID), zap.Int64("owner_id", ownerID))
	return item, nil
}

// Get retrieves an item by ID
func (s *ItemService) Get(ctx context.Context, id int64) (*models.Item, error) {
	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "failed to get item")
	}
	return item, nil
}

// List returns items in creation order
func (s *ItemService) List(ctx context.Context, skip, limit int) ([]*models.Item, error) {
	skip, limit, err := services.NormalizePage(skip, limit)
	if err != nil {
		return nil, err
	}
	items, err := s.itemRepo.List(ctx, skip, limit)
	if err != nil {
		return nil, services.WrapInternal("failed to list items", err)
	}
	return items, nil
}

// Update changes only the fields set in patch
func (s *ItemService) Update(ctx context.Context, id int64, patch models.ItemPatch) (*models.Item, error) {
	item, err := s.itemRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, mapNotFound(err, "failed to update item")
	}
	return item, nil
}

// Delete removes an item
func (s *ItemService) Delete(ctx context.Context, id int64) error {
	if err := s.itemRepo.Delete(ctx, id); err != nil {
		return mapNotFound(err, "failed to delete item")
	}
	s.logger.Info("item deleted", zap.Int64("item_id", id))
	return nil
}

func mapNotFound(err error, msg string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return services.ErrItemNotFound
	}
	return services.WrapInternal(msg, err)
}
