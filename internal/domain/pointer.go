package domain

import "context"

// LivePointer is the single indirection naming which slot serves production
// traffic. It is read once per attempt by slot resolution and written only
// by the traffic switch, after a successful health gate. Implementations
// must make Set atomic with respect to concurrent readers.
type LivePointer interface {
	// Current returns the slot the pointer resolves to. ok is false when
	// the pointer is absent, dangling, or names something that is not a
	// slot; none of those are errors, they simply mean no slot is live.
	Current(ctx context.Context) (slot Slot, ok bool, err error)

	// Set atomically repoints the live pointer at the given slot.
	Set(ctx context.Context, slot Slot) error
}
