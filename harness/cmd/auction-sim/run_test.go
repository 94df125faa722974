package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctionledger/harness"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_JSON(t *testing.T) {
	out, err := execute(t, "run", "--format", "json",
		"../../testdata/scenarios/end_to_end.yaml",
		"../../testdata/scenarios/no_bids.yaml")
	assert.NoError(t, err)

	var traces []harness.Trace
	assert.NoError(t, json.Unmarshal([]byte(out), &traces))
	check.Equal(t, 2, len(traces))
	check.Equal(t, "end_to_end", traces[0].Scenario)
	check.Equal(t, 17, len(traces[0].Outcomes))
	check.Equal(t, "no_bids", traces[1].Scenario)
}

func TestRun_Text(t *testing.T) {
	out, err := execute(t, "run", "../../testdata/scenarios/reentrant_payments.yaml")
	assert.NoError(t, err)
	check.True(t, bytes.Contains([]byte(out), []byte("reentrant_payments")))
	check.True(t, bytes.Contains([]byte(out), []byte("AuctionEnded")))
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{
			name: "missing file",
			args: []string{"run", "does-not-exist.yaml"},
			code: exitCommandError,
		},
		{
			name: "bad format",
			args: []string{"run", "--format", "xml", "../../testdata/scenarios/no_bids.yaml"},
			code: exitCommandError,
		},
		{
			name: "no arguments",
			args: []string{"run"},
			code: exitCommandError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			check.Error(t, err)
			check.Equal(t, tt.code, exitCode(err))
		})
	}
}

func TestRun_FailingScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failing.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(`
duration: 10s
organizer: org
steps:
  - {at: 0s, op: finalize}
`), 0o600))

	out, err := execute(t, "run", path)
	check.Error(t, err)
	check.Equal(t, exitFailure, exitCode(err))
	check.True(t, bytes.Contains([]byte(out), []byte("did not match")))
}
