package model

import "github.com/google/uuid"

// CartItem is one line of a shopping cart held in the cart store (Redis).
// Carts are not persisted in Postgres.
type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}
