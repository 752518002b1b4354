package domain

import "context"

// ProcessSpec describes the long-running process a slot hosts. Exactly one
// process is active per slot at a time, under the unit name
// "<app>-<slot>". Port is always the slot's fixed port, never whatever the
// release itself would prefer.
type ProcessSpec struct {
	App        string
	Slot       Slot
	WorkingDir string
	Entrypoint string
	Args       []string
	Port       int
	EnvFile    string
}

// UnitName returns the supervisor unit name for the spec.
func (s ProcessSpec) UnitName() string {
	return s.App + "-" + string(s.Slot)
}

// ProcessSupervisor is the port to the host's process manager. The
// orchestrator treats it as an opaque capability; only the call contract
// below is part of the release protocol.
type ProcessSupervisor interface {
	// Start launches the slot process described by spec. Failure wraps
	// [ErrSupervisor].
	Start(ctx context.Context, spec ProcessSpec) error

	// Stop gracefully stops the named slot process. Stopping a slot with
	// no running process is success, not an error.
	Stop(ctx context.Context, app string, slot Slot) error

	// Kill forcibly terminates the slot process. Used on the
	// failed-health path where a graceful drain is pointless. Equally
	// idempotent: an absent process is success.
	Kill(ctx context.Context, app string, slot Slot) error
}
