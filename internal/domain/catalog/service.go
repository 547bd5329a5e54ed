package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avicare/avicare/internal/platform/metrics"
)

// viewDedupeTTL is how long repeat views from the same visitor are ignored.
const viewDedupeTTL = 30 * time.Minute

type Service struct {
	birds Repository
	views *metrics.TTLStore
}

func NewService(birds Repository, views *metrics.TTLStore) *Service {
	return &Service{birds: birds, views: views}
}

func (s *Service) CreateBird(ctx context.Context, b *Bird) error {
	if b.Name == "" {
		return fmt.Errorf("name is required")
	}
	if b.Species == "" {
		return fmt.Errorf("species is required")
	}
	if b.PriceCents < 0 {
		return fmt.Errorf("price_cents must be non-negative")
	}
	return s.birds.Create(ctx, b)
}

// GetBird returns a bird and counts the view. Views from the same visitor
// within viewDedupeTTL are counted once.
func (s *Service) GetBird(ctx context.Context, id uuid.UUID, visitor string) (*Bird, error) {
	b, err := s.birds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.views != nil {
		if visitor == "" || s.views.SetNX("seen:"+id.String()+":"+visitor, viewDedupeTTL) {
			s.views.Increment("bird_views:"+id.String(), 1, 0)
		}
	}
	return b, nil
}

func (s *Service) UpdateBird(ctx context.Context, b *Bird) error {
	if b.Name == "" {
		return fmt.Errorf("name is required")
	}
	if b.Species == "" {
		return fmt.Errorf("species is required")
	}
	if b.PriceCents < 0 {
		return fmt.Errorf("price_cents must be non-negative")
	}
	return s.birds.Update(ctx, b)
}

func (s *Service) DeleteBird(ctx context.Context, id uuid.UUID) error {
	return s.birds.Delete(ctx, id)
}

func (s *Service) SearchBirds(ctx context.Context, params map[string]string, limit, offset int) ([]*Bird, int, error) {
	return s.birds.Search(ctx, params, limit, offset)
}

// ViewCounts returns the current per-bird view counters.
func (s *Service) ViewCounts() map[string]int64 {
	if s.views == nil {
		return nil
	}
	return s.views.Counters()
}
