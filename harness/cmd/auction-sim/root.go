package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

var validFormats = []string{"text", "json"}

type rootOptions struct {
	format string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "auction-sim",
		Short: "Run scripted soft-close auction scenarios",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.format, validFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "output format (text|json)")
	cmd.AddCommand(newRunCommand(opts))
	return cmd
}
