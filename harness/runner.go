package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cloudx-io/auctionledger/core"
)

// Outcome is the recorded result of one step.
type Outcome struct {
	Step     int           `json:"step"`
	At       time.Duration `json:"at"`
	Op       string        `json:"op"`
	Caller   core.Identity `json:"caller,omitempty"`
	Amount   core.Amount   `json:"amount,omitempty"`
	Result   string        `json:"result"`
	Expected string        `json:"expected"`
	Message  string        `json:"message,omitempty"`

	// Paid is the total paid out by the treasury while the step ran.
	Paid core.Amount `json:"paid,omitempty"`

	OnPayment *Outcome `json:"on_payment,omitempty"`
}

// Matched reports whether the step and its re-entrant call, if any, ended
// as expected.
func (o Outcome) Matched() bool {
	if o.Result != o.Expected {
		return false
	}
	return o.OnPayment == nil || o.OnPayment.Matched()
}

// Trace is everything observable about one scenario run.
type Trace struct {
	Scenario        string        `json:"scenario"`
	AuctionID       string        `json:"auction_id"`
	Organizer       core.Identity `json:"organizer"`
	Start           time.Time     `json:"start"`
	Duration        time.Duration `json:"duration"`
	ExtensionWindow time.Duration `json:"extension_window"`

	Outcomes []Outcome     `json:"outcomes"`
	Events   []core.Event  `json:"events"`
	Final    core.Snapshot `json:"final"`

	Collected map[core.Identity]core.Amount `json:"collected"`
	Paid      map[core.Identity]core.Amount `json:"paid"`

	// AuditFailures lists every step after which the ledger's books did not
	// balance.
	AuditFailures []string `json:"audit_failures,omitempty"`
}

// Mismatches returns the number of steps whose result differed from the
// expected one.
func (t *Trace) Mismatches() int {
	n := 0
	for _, o := range t.Outcomes {
		if !o.Matched() {
			n++
		}
	}
	return n
}

// Passed reports whether every step matched and the books always balanced.
func (t *Trace) Passed() bool {
	return t.Mismatches() == 0 && len(t.AuditFailures) == 0
}

// auctionID derives a stable ledger ID from the scenario name so reruns
// produce identical traces.
func auctionID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("auctionledger/scenario/"+name))
}

// Run executes the scenario against a fresh ledger.
// Step failures are recorded in the trace; an error means the scenario
// could not be run at all.
func Run(ctx context.Context, s *Scenario) (*Trace, error) {
	clock := core.NewManualClock(s.Start)
	treasury := newScriptedTreasury()

	ledger, err := core.NewLedger(core.Config{
		ID:                      auctionID(s.Name),
		Duration:                s.Duration,
		Organizer:               s.Organizer,
		ExtensionWindow:         s.ExtensionWindow,
		MinIncrementBasisPoints: s.MinIncrementBasisPoints,
		FeeBasisPoints:          s.FeeBasisPoints,
	}, clock, treasury)
	if err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}

	r := &runner{ledger: ledger, treasury: treasury}
	trace := &Trace{
		Scenario:        s.Name,
		AuctionID:       ledger.ID().String(),
		Organizer:       ledger.Organizer(),
		Start:           s.Start,
		Duration:        s.Duration,
		ExtensionWindow: ledger.Config().ExtensionWindow,
		Outcomes:        make([]Outcome, 0, len(s.Steps)),
	}

	for i, step := range s.Steps {
		clock.Set(s.Start.Add(step.At))

		paidBefore := treasury.totalPaid()
		outcome := r.apply(ctx, step)
		outcome.Step = i + 1
		outcome.Paid = treasury.totalPaid() - paidBefore
		trace.Outcomes = append(trace.Outcomes, outcome)

		if err := ledger.Audit(); err != nil {
			trace.AuditFailures = append(trace.AuditFailures, fmt.Sprintf("step %d: %v", i+1, err))
		}
	}

	trace.Events = ledger.Events()
	trace.Final = ledger.Snapshot()
	trace.Collected = treasury.collected
	trace.Paid = treasury.paid
	return trace, nil
}

type runner struct {
	ledger   *core.Ledger
	treasury *scriptedTreasury
}

// apply runs one step. A step with OnPayment arms the treasury hook so the
// nested step executes from inside the outbound payment.
func (r *runner) apply(ctx context.Context, step Step) Outcome {
	outcome := Outcome{
		At:       step.At,
		Op:       step.Op,
		Caller:   step.Caller,
		Amount:   step.Amount,
		Expected: step.expected(),
	}

	if nested := step.OnPayment; nested != nil {
		r.treasury.onPay = func(ctx context.Context) {
			o := r.apply(ctx, *nested)
			o.At = step.At
			outcome.OnPayment = &o
		}
	}

	err := r.execute(ctx, step)
	// A hook that never fired must not leak into a later step.
	r.treasury.onPay = nil

	if err != nil {
		outcome.Result = resultOf(err)
		outcome.Message = err.Error()
	} else {
		outcome.Result = ResultOK
	}
	return outcome
}

func (r *runner) execute(ctx context.Context, step Step) error {
	switch step.Op {
	case OpPlaceBid:
		return r.ledger.PlaceBid(ctx, step.Caller, step.Amount)
	case OpWithdraw:
		return r.ledger.Withdraw(ctx, step.Caller)
	case OpFinalize:
		return r.ledger.Finalize(ctx)
	case OpWithdrawFees:
		_, err := r.ledger.WithdrawFees(ctx, step.Caller)
		return err
	case OpRefusePayments:
		r.treasury.refusing[step.Caller] = true
		return nil
	case OpAcceptPayments:
		delete(r.treasury.refusing, step.Caller)
		return nil
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func resultOf(err error) string {
	if code := core.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}
