package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type releasesOpts struct {
	*rootOpts
}

func newReleases(parent *rootOpts) *releasesOpts {
	return &releasesOpts{rootOpts: parent}
}

func (opts *releasesOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "releases",
		Short: "List the releases staged on disk, newest first",
		RunE:  opts.RunE,
	}
}

func (opts *releasesOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}

	rt, err := opts.runtime()
	if err != nil {
		return err
	}
	defer rt.Close()

	releases, err := rt.releaseSvc.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(releases) == 0 {
		fmt.Println("no releases staged")
		return nil
	}

	out := newTabwriter()
	fmt.Fprintln(out, "RELEASE\tMODE\tCREATED")
	for _, rel := range releases {
		fmt.Fprintf(out, "%s\t%s\t%s\n", rel.ID, rel.Mode, rel.CreatedAt.Format(time.RFC822))
	}
	out.Flush()
	return nil
}
