// Package harness runs scripted auction scenarios against a real ledger.
//
// A scenario is a YAML file naming the auction parameters and a list of
// steps, each pinned to an offset from the auction start. The runner drives
// a core.Ledger with a manual clock and a scripted treasury, so every run of
// the same scenario produces the same trace. Traces are compared against
// golden files in testdata/golden; regenerate them with:
//
//	go test ./harness -update
package harness
