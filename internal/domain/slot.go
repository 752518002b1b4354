package domain

import "fmt"

// Slot is one of the two fixed deployment locations that alternately host
// the live release. The identity is permanent; only the release content a
// slot runs changes over time.
type Slot string

const (
	SlotA Slot = "a"
	SlotB Slot = "b"
)

// Other returns the opposite slot. It is the only slot arithmetic in the
// system: the target of every deployment is the slot that is not live.
func (s Slot) Other() Slot {
	if s == SlotB {
		return SlotA
	}
	return SlotB
}

// Valid reports whether s is one of the two known slots.
func (s Slot) Valid() bool {
	return s == SlotA || s == SlotB
}

// ParseSlot converts a string into a [Slot].
func ParseSlot(v string) (Slot, error) {
	s := Slot(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown slot %q", ErrInvalidArgument, v)
	}
	return s, nil
}

// SlotBinding is the permanent association of a slot with its network port
// and working-directory alias.
type SlotBinding struct {
	Port int
	Dir  string
}

// Layout holds the fixed bindings for both slots. It is derived from
// configuration once at startup and never changes during a run.
type Layout struct {
	A SlotBinding
	B SlotBinding
}

// Binding returns the binding for the given slot.
func (l Layout) Binding(s Slot) SlotBinding {
	if s == SlotB {
		return l.B
	}
	return l.A
}

// Port returns the fixed port of the given slot.
func (l Layout) Port(s Slot) int { return l.Binding(s).Port }

// SlotPlan is the outcome of slot resolution: which slot is live, which
// slot the new release targets, and their fixed ports.
type SlotPlan struct {
	Current     Slot
	Target      Slot
	CurrentPort int
	TargetPort  int
}

// PlanSlots maps the live-pointer reading onto a [SlotPlan]. An absent or
// unrecognized pointer means no slot is live yet; slot A is then assumed
// current so that the first-ever deployment targets B without any
// special-casing downstream.
func PlanSlots(layout Layout, current Slot, pointerSet bool) SlotPlan {
	if !pointerSet || current != SlotB {
		current = SlotA
	}
	target := current.Other()
	return SlotPlan{
		Current:     current,
		Target:      target,
		CurrentPort: layout.Port(current),
		TargetPort:  layout.Port(target),
	}
}
