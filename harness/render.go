package harness

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cloudx-io/auctionledger/core"
)

// WriteText renders the trace in a line-oriented form with times shown as
// offsets from the auction start. Golden files use this form.
func (t *Trace) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "scenario %s organizer=%s duration=%s window=%s\n",
		t.Scenario, t.Organizer, t.Duration, t.ExtensionWindow)

	bw.WriteString("\n")
	for _, o := range t.Outcomes {
		fmt.Fprintf(bw, "step %d at=%s %s\n", o.Step, offset(o.At), formatOutcome(o))
		if o.OnPayment != nil {
			fmt.Fprintf(bw, "  on_payment %s\n", formatOutcome(*o.OnPayment))
		}
	}

	bw.WriteString("\n")
	for _, ev := range t.Events {
		fmt.Fprintf(bw, "event %d at=%s %s\n", ev.Seq, offset(ev.At.Sub(t.Start)), t.formatEvent(ev))
	}

	bw.WriteString("\n")
	final := t.Final
	highest := "none"
	if final.Highest.Bidder != "" {
		highest = fmt.Sprintf("%s:%d", final.Highest.Bidder, final.Highest.Amount)
	}
	fmt.Fprintf(bw, "final ended=%t deadline=%s custody=%d fees_retained=%d fees_withdrawn=%d highest=%s\n",
		final.Ended, offset(final.Deadline.Sub(t.Start)), final.Custody, final.FeesRetained, final.FeesWithdrawn, highest)
	for _, p := range final.Participants {
		fmt.Fprintf(bw, "participant %s latest=%d pending=%d\n", p.Bidder, p.LatestBid, p.PendingReturn)
	}
	for _, id := range sortedIdentities(t.Paid) {
		fmt.Fprintf(bw, "paid %s=%d\n", id, t.Paid[id])
	}

	if len(t.AuditFailures) == 0 {
		bw.WriteString("audit ok\n")
	}
	for _, failure := range t.AuditFailures {
		fmt.Fprintf(bw, "audit failed %s\n", failure)
	}

	return bw.Flush()
}

// WriteJSON renders the trace as indented JSON.
func (t *Trace) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

func formatOutcome(o Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "op=%s", o.Op)
	if o.Caller != "" {
		fmt.Fprintf(&b, " caller=%s", o.Caller)
	}
	if o.Amount > 0 {
		fmt.Fprintf(&b, " amount=%d", o.Amount)
	}
	fmt.Fprintf(&b, " result=%s", o.Result)
	if o.Result != o.Expected {
		fmt.Fprintf(&b, " expected=%s", o.Expected)
	}
	if o.Paid > 0 {
		fmt.Fprintf(&b, " paid=%d", o.Paid)
	}
	return b.String()
}

func (t *Trace) formatEvent(ev core.Event) string {
	var b strings.Builder
	b.WriteString(string(ev.Kind))
	if ev.Bidder != "" {
		fmt.Fprintf(&b, " bidder=%s", ev.Bidder)
	}
	if ev.Amount > 0 {
		fmt.Fprintf(&b, " amount=%d", ev.Amount)
	}
	if !ev.Deadline.IsZero() {
		fmt.Fprintf(&b, " deadline=%s", offset(ev.Deadline.Sub(t.Start)))
	}
	return b.String()
}

func offset(d time.Duration) string {
	return "+" + d.String()
}

func sortedIdentities(m map[core.Identity]core.Amount) []core.Identity {
	ids := make([]core.Identity, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
