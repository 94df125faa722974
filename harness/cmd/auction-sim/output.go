package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/harness"
)

func writeText(w io.Writer, traces []*harness.Trace) error {
	for _, trace := range traces {
		if err := writeTrace(w, trace); err != nil {
			return err
		}
	}
	return nil
}

func writeTrace(w io.Writer, trace *harness.Trace) error {
	fmt.Fprint(w, pterm.DefaultSection.Sprintf("%s (%s, window %s)", trace.Scenario, trace.Duration, trace.ExtensionWindow))

	steps := pterm.TableData{{"#", "At", "Op", "Caller", "Amount", "Result", "Paid"}}
	for _, o := range trace.Outcomes {
		steps = append(steps, stepRow(strconv.Itoa(o.Step), o))
		if o.OnPayment != nil {
			steps = append(steps, stepRow("↳", *o.OnPayment))
		}
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(steps).Srender()
	if err != nil {
		return fmt.Errorf("render steps: %w", err)
	}
	fmt.Fprintln(w, table)
	fmt.Fprintln(w)

	events := pterm.TableData{{"Seq", "At", "Kind", "Bidder", "Amount", "Deadline"}}
	for _, ev := range trace.Events {
		deadline := ""
		if !ev.Deadline.IsZero() {
			deadline = "+" + ev.Deadline.Sub(trace.Start).String()
		}
		events = append(events, []string{
			strconv.FormatUint(ev.Seq, 10),
			"+" + ev.At.Sub(trace.Start).String(),
			string(ev.Kind),
			string(ev.Bidder),
			amount(uint64(ev.Amount)),
			deadline,
		})
	}
	table, err = pterm.DefaultTable.WithHasHeader().WithData(events).Srender()
	if err != nil {
		return fmt.Errorf("render events: %w", err)
	}
	fmt.Fprintln(w, table)
	fmt.Fprintln(w)

	final := trace.Final
	fmt.Fprint(w, pterm.Info.Sprintfln("custody %d, fees retained %d, withdrawn %d, winner %s (%d)",
		final.Custody, final.FeesRetained, final.FeesWithdrawn, winnerName(final.Highest.Bidder), final.Highest.Amount))

	for _, failure := range trace.AuditFailures {
		fmt.Fprint(w, pterm.Error.Sprintfln("audit failed after %s", failure))
	}
	if mismatches := trace.Mismatches(); mismatches > 0 {
		fmt.Fprint(w, pterm.Error.Sprintfln("%d step(s) did not match the expected result", mismatches))
	} else if len(trace.AuditFailures) == 0 {
		fmt.Fprint(w, pterm.Success.Sprintfln("%d step(s) matched, books balanced", len(trace.Outcomes)))
	}
	fmt.Fprintln(w)
	return nil
}

func stepRow(label string, o harness.Outcome) []string {
	result := o.Result
	if o.Result != o.Expected {
		result = pterm.Red(fmt.Sprintf("%s (expected %s)", o.Result, o.Expected))
	}
	return []string{
		label,
		"+" + o.At.String(),
		o.Op,
		string(o.Caller),
		amount(uint64(o.Amount)),
		result,
		amount(uint64(o.Paid)),
	}
}

func amount(v uint64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatUint(v, 10)
}

func winnerName(bidder core.Identity) string {
	if bidder == "" {
		return "none"
	}
	return string(bidder)
}
