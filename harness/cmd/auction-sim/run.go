package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cloudx-io/auctionledger/harness"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run one or more scenario files",
		Long: `Run scenario files against a fresh ledger each and print the trace.

Exit codes:
  0 - Every step matched its expected result and the books balanced
  1 - At least one scenario failed
  2 - A scenario file could not be read or is invalid

Examples:
  auction-sim run harness/testdata/scenarios/end_to_end.yaml
  auction-sim run harness/testdata/scenarios/*.yaml --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args)
		},
	}
}

func runScenarios(cmd *cobra.Command, opts *rootOptions, paths []string) error {
	traces := make([]*harness.Trace, 0, len(paths))
	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			return &exitError{code: exitCommandError, err: err}
		}
		trace, err := harness.Run(cmd.Context(), scenario)
		if err != nil {
			return &exitError{code: exitCommandError, err: fmt.Errorf("%s: %w", path, err)}
		}
		traces = append(traces, trace)
	}

	w := cmd.OutOrStdout()
	var err error
	if opts.format == "json" {
		err = writeJSON(w, traces)
	} else {
		err = writeText(w, traces)
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, trace := range traces {
		if !trace.Passed() {
			failed++
		}
	}
	if failed > 0 {
		return &exitError{code: exitFailure, err: fmt.Errorf("%d of %d scenario(s) failed", failed, len(traces))}
	}
	return nil
}

func writeJSON(w io.Writer, traces []*harness.Trace) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(traces)
}
