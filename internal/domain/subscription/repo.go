package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists subscriptions and their credit audit trail.
type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// GetByIDForUpdate locks the row when called inside a transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Subscription, error)
	GetByOrderID(ctx context.Context, orderID string) (*Subscription, error)
	// GetActiveByPhone returns the newest active subscription for the phone.
	GetActiveByPhone(ctx context.Context, phone string) (*Subscription, error)
	// GetActiveByPhoneForUpdate is GetActiveByPhone with FOR UPDATE.
	GetActiveByPhoneForUpdate(ctx context.Context, phone string) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Subscription, int, error)
	CreateAudit(ctx context.Context, a *CreditAudit) error
	ListAudit(ctx context.Context, subscriptionID uuid.UUID) ([]*CreditAudit, error)
}
