package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type pruneOpts struct {
	*rootOpts
	keep int
}

func newPrune(parent *rootOpts) *pruneOpts {
	return &pruneOpts{rootOpts: parent}
}

func (opts *pruneOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old releases beyond the retention limit",
		Long: "Prune removes staged releases beyond the keep limit, newest " +
			"first. Releases currently backing either slot survive regardless " +
			"of age.",
		Example: makeExample(
			"slotshift prune",
			"slotshift prune --keep=3",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().IntVar(&opts.keep, "keep", 0, "how many releases to keep; defaults to the configured keepReleases")
	return cmd
}

func (opts *pruneOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}

	rt, err := opts.runtime()
	if err != nil {
		return err
	}
	defer rt.Close()

	keep := opts.keep
	if keep == 0 {
		keep = rt.cfg.KeepReleases
	}

	report, err := rt.releaseSvc.Prune(cmd.Context(), keep)
	if err != nil {
		return err
	}

	for _, id := range report.Removed {
		fmt.Printf("removed %s\n", id)
	}
	for _, id := range report.Kept {
		fmt.Printf("kept %s (slot-backed)\n", id)
	}
	if len(report.Removed) == 0 {
		fmt.Println("nothing to prune")
	}
	return nil
}
