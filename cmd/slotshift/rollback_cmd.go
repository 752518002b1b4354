package main

import (
	"github.com/spf13/cobra"
)

type rollbackOpts struct {
	*rootOpts
}

func newRollback(parent *rootOpts) *rollbackOpts {
	return &rollbackOpts{rootOpts: parent}
}

func (opts *rollbackOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Re-promote the release still staged in the idle slot",
		Long: "Rollback promotes whatever the idle slot holds, which after a " +
			"deployment is the previously live release. The release passes the " +
			"same health gate as a fresh deployment before traffic moves.",
		RunE: opts.RunE,
	}
}

func (opts *rollbackOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}

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
	res, err := svc.Rollback(cmd.Context())
	done()

	return report(res, err)
}
