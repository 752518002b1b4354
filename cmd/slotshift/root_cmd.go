package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/spf13/cobra"
)

const (
	// EnvVariableConfig overrides the default config path.
	EnvVariableConfig = "SLOTSHIFT_CONFIG"

	defaultConfigPath = "/etc/slotshift/config.yaml"
)

type rootOpts struct {
	ConfigPath string
	Verbose    bool
	Logger     log.Logger
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
slotshift deploys your application with zero downtime.

Workflow:
  slotshift deploy app-20260830120000.tar.gz  # Stage, health-check and promote a build.
  slotshift status                            # Which slot is live, what is in each slot?
  slotshift rollback                          # Re-promote the previous release.
  slotshift history                           # What happened recently?
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "slotshift",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultConfigPath,
		fmt.Sprintf("path to the configuration file; you can also set the environment variable %s", EnvVariableConfig))
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false,
		"log every adapter action, not just outcomes")

	cmd.AddCommand(
		newDeploy(opts).Command(),
		newRollback(opts).Command(),
		newStatus(opts).Command(),
		newReleases(opts).Command(),
		newPrune(opts).Command(),
		newHistory(opts).Command(),
		newVersionCommand(),
	)

	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	if env := os.Getenv(EnvVariableConfig); env != "" && !cmd.Flags().Changed("config") {
		opts.ConfigPath = env
	}

	logger := log.NewLogfmtLogger(os.Stderr)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if opts.Verbose {
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	opts.Logger = logger
	return nil
}
