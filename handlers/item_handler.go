package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/services"
	"github.com/upb/engine-gateway/services/items"
	"github.com/upb/engine-gateway/utils"
)

// ItemService is the item management surface used by ItemHandler
type ItemService interface {
	Create(ctx context.Context, req items.CreateItemRequest) (*models.Item, error)
	Get(ctx context.Context, id int64) (*models.Item, error)
	List(ctx context.Context, skip, limit int) ([]*models.Item, error)
	Update(ctx context.Context, id int64, patch models.ItemPatch) (*models.Item, error)
	Delete(ctx context.Context, id int64) error
}

// CreateItemRequest is the body of POST /api/v1/items
type CreateItemRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"required"`
}

// UpdateItemRequest is the body of PUT /api/v1/items/{id}. Omitted fields are kept.
type UpdateItemRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
}

// ItemHandler handles item HTTP requests
type ItemHandler struct {
	itemService ItemService
	logger      *zap.Logger
}

// NewItemHandler creates a new ItemHandler
func NewItemHandler(itemService ItemService, logger *zap.Logger) *ItemHandler {
	return &ItemHandler{
		itemService: itemService,
		logger:      logger,
	}
}

// HandleCreateItem handles POST /api/v1/items?owner_id=
func (h *ItemHandler) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	ownerID, err := queryInt64(r, "owner_id", items.DefaultOwnerID)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	var req CreateItemRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	item, err := h.itemService.Create(r.Context(), items.CreateItemRequest{
		Title:       req.Title,
		Description: req.Description,
		Price:       *req.Price,
		OwnerID:     ownerID,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteCreated(w, item); err != nil {
		h.logger.Error("failed to write item response", zap.Error(err))
	}
}

// HandleListItems handles GET /api/v1/items
func (h *ItemHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	limit, err := queryInt(r, "limit", services.DefaultPageLimit)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	list, err := h.itemService.List(r.Context(), skip, limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if list == nil {
		list = []*models.Item{}
	}

	if err := utils.WriteJSON(w, http.StatusOK, list); err != nil {
		h.logger.Error("failed to write items response", zap.Error(err))
	}
}

// HandleGetItem handles GET /api/v1/items/{id}
func (h *ItemHandler) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	item, err := h.itemService.Get(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, item); err != nil {
		h.logger.Error("failed to write item response", zap.Error(err))
	}
}

// HandleUpdateItem handles PUT /api/v1/items/{id}
func (h *ItemHandler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	var req UpdateItemRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	item, err := h.itemService.Update(r.Context(), id, models.ItemPatch{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, item); err != nil {
		h.logger.Error("failed to write item response", zap.Error(err))
	}
}

// HandleDeleteItem handles DELETE /api/v1/items/{id}
func (h *ItemHandler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.itemService.Delete(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}
