package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type statusOpts struct {
	*rootOpts
}

func newStatus(parent *rootOpts) *statusOpts {
	return &statusOpts{rootOpts: parent}
}

func (opts *statusOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which slot is live and what each slot holds",
		RunE:  opts.RunE,
	}
}

func (opts *statusOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}

	rt, err := opts.runtime()
	if err != nil {
		return err
	}
	defer rt.Close()

	st, err := rt.statusSvc.Status(cmd.Context())
	if err != nil {
		return err
	}

	if st.LiveSet {
		color.Green("live: slot %s (port %d)", st.LiveSlot, rt.cfg.Layout().Port(st.LiveSlot))
	} else {
		color.Yellow("live: none (no deployment yet)")
	}
	fmt.Println()

	out := newTabwriter()
	fmt.Fprintln(out, "SLOT\tPORT\tSTATE\tRELEASE")
	for _, ss := range st.Slots {
		state := "idle"
		if ss.Live {
			state = "live"
		}
		release := "-"
		if ss.Bound {
			release = string(ss.Release)
		}
		fmt.Fprintf(out, "%s\t%d\t%s\t%s\n", ss.Slot, ss.Port, state, release)
	}
	out.Flush()

	if len(st.Recent) > 0 {
		fmt.Println()
		out = newTabwriter()
		fmt.Fprintln(out, "TIME\tRELEASE\tTARGET\tOUTCOME")
		for _, rec := range st.Recent {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\n",
				rec.StartedAt.Format(time.RFC822), rec.ReleaseID, rec.Target, rec.Outcome)
		}
		out.Flush()
	}
	return nil
}
