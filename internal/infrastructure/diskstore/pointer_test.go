package diskstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/slotshift/slotshift/internal/domain"
	"github.com/slotshift/slotshift/internal/infrastructure/diskstore"
)

func TestPointer_AbsentMeansNoLiveSlot(t *testing.T) {
	p := &diskstore.Pointer{Root: t.TempDir()}

	_, ok, err := p.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if ok {
		t.Error("absent pointer must read as no live slot")
	}
}

func TestPointer_SetAndCurrent(t *testing.T) {
	root := t.TempDir()
	p := &diskstore.Pointer{Root: root}
	ctx := context.Background()

	if err := p.Set(ctx, domain.SlotB); err != nil {
		t.Fatalf("Set: %v", err)
	}
	slot, ok, err := p.Current(ctx)
	if err != nil || !ok {
		t.Fatalf("Current: ok = %v err = %v", ok, err)
	}
	if slot != domain.SlotB {
		t.Errorf("slot = %s, want b", slot)
	}

	// Flipping replaces the link atomically; only one link ever exists.
	if err := p.Set(ctx, domain.SlotA); err != nil {
		t.Fatalf("second Set: %v", err)
	}
	slot, _, _ = p.Current(ctx)
	if slot != domain.SlotA {
		t.Errorf("after flip: slot = %s, want a", slot)
	}

	target, err := os.Readlink(filepath.Join(root, "current"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if filepath.Base(target) != "a" {
		t.Errorf("link target = %s, want .../slots/a", target)
	}
}

func TestPointer_ForeignLinkReadsAsUnset(t *testing.T) {
	root := t.TempDir()
	if err := os.Symlink("/opt/somewhere-else", filepath.Join(root, "current")); err != nil {
		t.Fatal(err)
	}
	p := &diskstore.Pointer{Root: root}

	_, ok, err := p.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if ok {
		t.Error("a pointer naming a non-slot must read as unset, not as an error")
	}
}

func TestPointer_DanglingLinkIsNotAnError(t *testing.T) {
	root := t.TempDir()
	p := &diskstore.Pointer{Root: root}
	ctx := context.Background()

	// Point at slot b without the slot alias existing.
	if err := p.Set(ctx, domain.SlotB); err != nil {
		t.Fatalf("Set: %v", err)
	}
	slot, ok, err := p.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if !ok || slot != domain.SlotB {
		t.Errorf("dangling pointer must still resolve by name, got ok=%v slot=%s", ok, slot)
	}
}
