package application

import (
	"context"
	"fmt"

	"github.com/slotshift/slotshift/internal/domain"
)

// ReleaseService lists staged releases and applies retention manually.
type ReleaseService struct {
	Store domain.ReleaseStore
}

// List returns all staged releases, newest first.
func (s *ReleaseService) List(ctx context.Context) ([]domain.Release, error) {
	return s.Store.List(ctx)
}

// Prune applies retention, protecting the releases currently backing
// either slot regardless of age.
func (s *ReleaseService) Prune(ctx context.Context, keep int) (domain.PruneReport, error) {
	if keep < 1 {
		return domain.PruneReport{}, fmt.Errorf("%w: keep must be at least 1", domain.ErrInvalidArgument)
	}
	protected := make(map[domain.ReleaseID]bool, 2)
	for _, slot := range []domain.Slot{domain.SlotA, domain.SlotB} {
		rel, ok, err := s.Store.BoundRelease(ctx, slot)
		if err != nil {
			return domain.PruneReport{}, fmt.Errorf("read slot %s binding: %w", slot, err)
		}
		if ok {
			protected[rel.ID] = true
		}
	}
	return s.Store.Prune(ctx, keep, protected)
}
