package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type historyOpts struct {
	*rootOpts
	limit int
}

func newHistory(parent *rootOpts) *historyOpts {
	return &historyOpts{rootOpts: parent}
}

func (opts *historyOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent deployment attempts, newest first",
		Example: makeExample(
			"slotshift history",
			"slotshift history --limit=50",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "how many attempts to show")
	return cmd
}

func (opts *historyOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}

	rt, err := opts.runtime()
	if err != nil {
		return err
	}
	defer rt.Close()

	records, err := rt.history.Recent(cmd.Context(), opts.limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no deployment attempts recorded")
		return nil
	}

	out := newTabwriter()
	fmt.Fprintln(out, "TIME\tRELEASE\tSOURCE\tTARGET\tOUTCOME\tERROR")
	for _, rec := range records {
		errMsg := "-"
		if rec.Error != "" {
			errMsg = rec.Error
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.StartedAt.Format(time.RFC822), rec.ReleaseID, rec.Source, rec.Target, rec.Outcome, errMsg)
	}
	out.Flush()
	return nil
}
