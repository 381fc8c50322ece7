package items

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/repositories/memory"
	"github.com/upb/engine-gateway/services"
)

func strPtr(s string) *string      { return &s }
func floatPtr(f float64) *float64 { return &f }

func newTestService() *ItemService {
	return NewItemService(memory.NewItemRepository(), zap.NewNop())
}

func TestItemService_Create(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	item, err := s.Create(ctx, CreateItemRequest{Title: "Widget", Price: 9.99})
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.ID)
	assert.Equal(t, DefaultOwnerID, item.OwnerID)
	assert.Nil(t, item.Description)

	owned, err := s.Create(ctx, CreateItemRequest{Title: "Gadget", Description: strPtr("shiny"), Price: 5, OwnerID: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(2), owned.ID)
	assert.Equal(t, int64(7), owned.OwnerID)
	require.NotNil(t, owned.Description)
	assert.Equal(t, "shiny", *owned.Description)
}

func TestItemService_Update(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	item, err := s.Create(ctx, CreateItemRequest{Title: "Widget", Description: strPtr("plain"), Price: 10})
	require.NoError(t, err)

	t.Run("only provided fields change", func(t *testing.T) {
		updated, err := s.Update(ctx, item.ID, models.ItemPatch{Price: floatPtr(12.5)})
		require.NoError(t, err)
		assert.Equal(t, "Widget", updated.Title)
		assert.Equal(t, "plain", *updated.Description)
		assert.Equal(t, 12.5, updated.Price)
	})

	t.Run("title and description", func(t *testing.T) {
		updated, err := s.Update(ctx, item.ID, models.ItemPatch{Title: strPtr("Widget Pro"), Description: strPtr("fancy")})
		require.NoError(t, err)
		assert.Equal(t, "Widget Pro", updated.Title)
		assert.Equal(t, "fancy", *updated.Description)
		assert.Equal(t, 12.5, updated.Price)

		got, err := s.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
	})

	t.Run("missing item", func(t *testing.T) {
		_, err := s.Update(ctx, 404, models.ItemPatch{Title: strPtr("x")})
		require.Error(t, err)
		assert.True(t, services.IsNotFoundError(err))
		assert.Equal(t, "Item not found", services.GetErrorMessage(err))
	})
}

func TestItemService_ListAndDelete(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		_, err := s.Create(ctx, CreateItemRequest{Title: title, Price: 1})
		require.NoError(t, err)
	}

	items, err := s.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].Title)

	require.NoError(t, s.Delete(ctx, 2))

	items, err = s.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Title)
	assert.Equal(t, "c", items[1].Title)

	err = s.Delete(ctx, 2)
	assert.True(t, services.IsNotFoundError(err))

	_, err = s.Get(ctx, 2)
	assert.ErrorIs(t, err, services.ErrItemNotFound)

	_, err = s.List(ctx, -1, 10)
	assert.True(t, services.IsValidationError(err))
}
