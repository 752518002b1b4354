package diskstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slotshift/slotshift/internal/domain"
)

// Pointer implements [domain.LivePointer] as the symlink <root>/current
// pointing at a slot alias under <root>/slots. It is read fresh on every
// call; nothing is cached across the orchestrator's lifetime.
type Pointer struct {
	Root string
}

func (p *Pointer) path() string { return filepath.Join(p.Root, "current") }

// Current resolves the pointer. A missing link, or a link naming anything
// other than a slot alias, reads as "no slot live" rather than an error; a
// dangling pointer is simply overwritten by the next successful cutover.
func (p *Pointer) Current(_ context.Context) (domain.Slot, bool, error) {
	target, err := os.Readlink(p.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read live pointer: %w", err)
	}
	slot, err := domain.ParseSlot(filepath.Base(target))
	if err != nil {
		return "", false, nil
	}
	return slot, true, nil
}

// Set atomically repoints the live pointer at the given slot's alias.
func (p *Pointer) Set(_ context.Context, slot domain.Slot) error {
	if !slot.Valid() {
		return fmt.Errorf("%w: cannot point at slot %q", domain.ErrInvalidArgument, slot)
	}
	return atomicSymlink(filepath.Join(p.Root, "slots", string(slot)), p.path())
}
