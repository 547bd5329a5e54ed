package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Bird is one catalog entry for sale on the storefront.
type Bird struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Species     string    `db:"species" json:"species"`
	Description *string   `db:"description" json:"description,omitempty"`
	PriceCents  int64     `db:"price_cents" json:"price_cents"`
	ImageURL    *string   `db:"image_url" json:"image_url,omitempty"`
	Available   bool      `db:"available" json:"available"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
