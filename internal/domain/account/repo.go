package account

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository persists customer accounts.
type UserRepository interface {
	UpsertByPhone(ctx context.Context, phone string) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	UpdateName(ctx context.Context, phone, name string) error
}

// AdminRepository persists admin accounts.
type AdminRepository interface {
	Create(ctx context.Context, a *Admin) error
	GetByUsername(ctx context.Context, username string) (*Admin, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Admin, error)
}
