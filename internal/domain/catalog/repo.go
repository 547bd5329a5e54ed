package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists catalog entries.
type Repository interface {
	Create(ctx context.Context, b *Bird) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bird, error)
	Update(ctx context.Context, b *Bird) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Bird, int, error)
}
