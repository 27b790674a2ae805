// Package models defines core data structures for products, queries, and search results.
package models

import "time"

// Product represents one catalog entry occupying a single slot. A product may
// occupy several slots (e.g. one per image); ProductID is then shared across them.
type Product struct {
	ProductID   string    `json:"product_id" db:"product_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	ImagePath   string    `json:"image_path" db:"image_path"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ProductInput is the input for adding a product to the catalog.
type ProductInput struct {
	ProductID   string `json:"product_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImagePath   string `json:"image_path"`
}
