package models

import "time"

// Item represents a priced item owned by a user
type Item struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Price       float64   `json:"price"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ItemPatch holds the optional fields of a partial item update.
// Nil fields are left unchanged.
type ItemPatch struct {
	Title       *string
	Description *string
	Price       *float64
}

// NewItem creates an unsaved Item. The store assigns the ID.
func NewItem(title string, description *string, price float64, ownerID int64) *Item {
	return &Item{
		Title:       title,
		Description: description,
		Price:       price,
		OwnerID:     ownerID,
		CreatedAt:   time.Now(),
	}
}

// Apply copies every non-nil field of p onto the item
func (i *Item) Apply(p ItemPatch) {
	if p.Title != nil {
		i.Title = *p.Title
	}
	if p.Description != nil {
		desc := *p.Description
		i.Description = &desc
	}
	if p.Price != nil {
		i.Price = *p.Price
	}
}
