package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/containerd/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel  string
	logFormat string
}

func newRootCommand() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "npipe-echo",
		Short:         "Echo messages over a Windows named pipe",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(opts.logLevel, opts.logFormat)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", string(log.TextFormat), "Log format (text, json)")

	cmd.AddCommand(newServeCommand(&opts), newSendCommand())
	return cmd
}

func setupLogging(level, format string) error {
	if err := log.SetLevel(level); err != nil {
		return err
	}
	return log.SetFormat(log.OutputFormat(format))
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.G(ctx).WithError(err).Error("npipe-echo failed")
		cancel()
		os.Exit(1)
	}
}
