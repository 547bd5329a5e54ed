package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists appointments.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetByIDForUpdate locks the row when called inside a transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ListByPhone(ctx context.Context, phone string, limit, offset int) ([]*Appointment, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error)
	// ExistsActiveAt reports whether a non-canceled appointment occupies the
	// date + slot start time.
	ExistsActiveAt(ctx context.Context, date time.Time, slotStart string) (bool, error)
	// BookedStartTimes returns the slot start times of non-canceled
	// appointments on the date.
	BookedStartTimes(ctx context.Context, date time.Time) ([]string, error)
}

// SettingsRepository persists the singleton settings row.
type SettingsRepository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

// BlockedSlotRepository persists admin slot blocks.
type BlockedSlotRepository interface {
	Create(ctx context.Context, b *BlockedSlot) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDate(ctx context.Context, date time.Time) ([]*BlockedSlot, error)
	List(ctx context.Context, limit, offset int) ([]*BlockedSlot, int, error)
}
