package domain

import "fmt"

// LaunchPlan is how a slot process is started for a given release: the
// entrypoint and its arguments, run from the slot's working directory.
type LaunchPlan struct {
	Entrypoint string
	Args       []string
}

// LaunchPlanFactory maps a release's build mode onto a launch plan.
type LaunchPlanFactory interface {
	Plan(mode BuildMode) (LaunchPlan, error)
}

// CommandLaunchFactory builds launch plans from configured command lines,
// one per build mode.
type CommandLaunchFactory struct {
	// BundleCommand launches a self-contained runtime bundle.
	BundleCommand []string
	// SourceCommand launches a source-plus-dependencies tree through its
	// package manager.
	SourceCommand []string
}

func (f CommandLaunchFactory) Plan(mode BuildMode) (LaunchPlan, error) {
	var cmd []string
	switch mode {
	case BuildModeBundle:
		cmd = f.BundleCommand
	case BuildModeSource:
		cmd = f.SourceCommand
	default:
		return LaunchPlan{}, fmt.Errorf("%w: no launch plan for build mode %q", ErrInvalidArgument, mode)
	}
	if len(cmd) == 0 {
		return LaunchPlan{}, fmt.Errorf("%w: empty launch command for build mode %q", ErrInvalidArgument, mode)
	}
	return LaunchPlan{Entrypoint: cmd[0], Args: cmd[1:]}, nil
}
