package main

import (
	"github.com/spf13/cobra"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
}

// newRootCommand creates the root command. Without a subcommand it serves.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	serve := newServeCommand(opts)

	cmd := &cobra.Command{
		Use:           "reservation",
		Short:         "Reservation service",
		Long:          "Consumes reservation names from the message bus, stores them and serves them over HTTP.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file (environment variables take precedence)")

	cmd.AddCommand(serve)
	cmd.AddCommand(newPublishCommand(opts))

	return cmd
}
