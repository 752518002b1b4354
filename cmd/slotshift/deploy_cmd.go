package main

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/slotshift/slotshift/internal/application"
	"github.com/slotshift/slotshift/internal/domain"
)

type deployOpts struct {
	*rootOpts
}

func newDeploy(parent *rootOpts) *deployOpts {
	return &deployOpts{rootOpts: parent}
}

func (opts *deployOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy <archive>",
		Short: "Stage an artifact into the idle slot, health-check it and switch traffic over",
		Example: makeExample(
			"slotshift deploy app-20260830120000.tar.gz",
		),
		Args: cobra.ExactArgs(1),
		RunE: opts.RunE,
	}
}

func (opts *deployOpts) RunE(cmd *cobra.Command, args []string) error {
	rt, err := opts.runtime()
	if err != nil {
		return err
	}
	defer rt.Close()

	svc, stop, err := rt.deployService(cmd.Context())
	if err != nil {
		return err
	}
	defer stop()

	done := startProgress(rt)
	res, err := svc.Deploy(cmd.Context(), application.DeployInput{ArchivePath: args[0]})
	done()

	return report(res, err)
}

// startProgress attaches a terminal spinner to the health gate. On a
// non-terminal stdout the gate's structured log is the only feedback.
func startProgress(rt *runtime) (done func()) {
	if !isTerminal(os.Stdout) {
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " deploying"
	s.Start()
	rt.gate.OnAttempt = func(attempt, status int, err error) {
		if err != nil {
			s.Suffix = fmt.Sprintf(" waiting for health (attempt %d: no response yet)", attempt)
			return
		}
		s.Suffix = fmt.Sprintf(" waiting for health (attempt %d: HTTP %d)", attempt, status)
	}
	return s.Stop
}

// report prints the attempt outcome and passes the error taxonomy
// through: nil, cleanup-only failure (exit 2 in main), or a hard failure
// (exit 1).
func report(res domain.ReleaseResult, err error) error {
	switch {
	case err == nil:
		color.Green("✓ release %s promoted to slot %s", res.Release.ID, res.Target)
		return nil
	case res.Promoted:
		color.Green("✓ release %s promoted to slot %s", res.Release.ID, res.Target)
		color.Yellow("⚠ post-promotion cleanup incomplete:")
		for _, step := range res.FailedSteps() {
			color.Yellow("  %s: %s", step.Name, step.Err)
		}
		return err
	case res.Outcome == domain.OutcomeHealthFailed:
		color.Red("✗ release %s failed health checks on slot %s after %d attempts (last status %d)",
			res.Release.ID, res.Target, res.Probe.Attempts, res.Probe.LastStatus)
		color.Yellow("  slot %s untouched and still serving", res.Current)
		return err
	default:
		color.Red("✗ deployment aborted: %v", err)
		return err
	}
}
