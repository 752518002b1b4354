package application

import (
	"context"
	"fmt"

	"github.com/slotshift/slotshift/internal/domain"
)

// SlotStatus is the read-only view of one slot.
type SlotStatus struct {
	Slot    domain.Slot
	Port    int
	Live    bool
	Bound   bool
	Release domain.ReleaseID
}

// Status is the read-only view of the whole deployment.
type Status struct {
	LiveSet  bool
	LiveSlot domain.Slot
	Slots    []SlotStatus
	Recent   []domain.AttemptRecord
}

// StatusService answers "what is live right now". It only reads: the live
// pointer, the slot bindings, and the attempt log.
type StatusService struct {
	Layout  domain.Layout
	Pointer domain.LivePointer
	Store   domain.ReleaseStore
	History domain.AttemptLog
	// HistoryLimit bounds Recent; zero means 10.
	HistoryLimit int
}

func (s *StatusService) Status(ctx context.Context) (Status, error) {
	live, ok, err := s.Pointer.Current(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("read live pointer: %w", err)
	}

	st := Status{LiveSet: ok, LiveSlot: live}
	for _, slot := range []domain.Slot{domain.SlotA, domain.SlotB} {
		ss := SlotStatus{
			Slot: slot,
			Port: s.Layout.Port(slot),
			Live: ok && slot == live,
		}
		rel, bound, err := s.Store.BoundRelease(ctx, slot)
		if err != nil {
			return Status{}, fmt.Errorf("read slot %s binding: %w", slot, err)
		}
		if bound {
			ss.Bound = true
			ss.Release = rel.ID
		}
		st.Slots = append(st.Slots, ss)
	}

	limit := s.HistoryLimit
	if limit <= 0 {
		limit = 10
	}
	if s.History != nil {
		recent, err := s.History.Recent(ctx, limit)
		if err != nil {
			return Status{}, fmt.Errorf("read attempt history: %w", err)
		}
		st.Recent = recent
	}
	return st, nil
}
