package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/database64128/npipe-go/internal/config"
)

type sendOptions struct {
	pipe    string
	timeout time.Duration
	wide    bool
	probe   bool
}

func newSendCommand() *cobra.Command {
	var opts sendOptions

	cmd := &cobra.Command{
		Use:   "send [OPTIONS] MESSAGE...",
		Short: "Send messages to an echo pipe and print the replies",
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.probe {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), &opts, args, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.pipe, "pipe", config.Default().Pipe.Name, "Pipe path")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Second, "Time allowed for connecting and for each reply")
	flags.BoolVar(&opts.wide, "wide", false, "Encode messages as UTF-16LE")
	flags.BoolVar(&opts.probe, "probe", false, "Send a random message and check that it is echoed back")
	return cmd
}
