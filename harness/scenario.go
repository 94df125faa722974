package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cloudx-io/auctionledger/core"
)

// Step operations.
const (
	OpPlaceBid       = "place_bid"
	OpWithdraw       = "withdraw"
	OpFinalize       = "finalize"
	OpWithdrawFees   = "withdraw_fees"
	OpRefusePayments = "refuse_payments"
	OpAcceptPayments = "accept_payments"
)

// ResultOK is the result of a step that succeeded.
const ResultOK = "ok"

// DefaultStart is the auction start used when a scenario sets none.
var DefaultStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Scenario describes one scripted auction.
type Scenario struct {
	// Name identifies the scenario and its golden file.
	// Defaults to the file name without extension.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Start is the clock reading when the ledger is created.
	Start time.Time `yaml:"start,omitempty"`

	Duration                time.Duration `yaml:"duration"`
	Organizer               core.Identity `yaml:"organizer"`
	ExtensionWindow         time.Duration `yaml:"extension_window,omitempty"`
	MinIncrementBasisPoints int64         `yaml:"min_increment_bps,omitempty"`
	FeeBasisPoints          int64         `yaml:"fee_bps,omitempty"`

	Steps []Step `yaml:"steps"`
}

// Step is one operation, run when the clock reaches At.
type Step struct {
	// At is the offset from Start. Offsets must not decrease.
	At time.Duration `yaml:"at"`

	Op     string        `yaml:"op"`
	Caller core.Identity `yaml:"caller,omitempty"`
	Amount core.Amount   `yaml:"amount,omitempty"`

	// Expect is the expected error code, or "ok". Defaults to "ok".
	Expect string `yaml:"expect,omitempty"`

	// OnPayment runs once from inside the first payment this step makes,
	// before the payment returns.
	OnPayment *Step `yaml:"on_payment,omitempty"`
}

// expected returns the step's expected result.
func (s Step) expected() string {
	if s.Expect == "" {
		return ResultOK
	}
	return s.Expect
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if scenario.Name == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

// ParseScenario decodes a scenario document. Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Start.IsZero() {
		scenario.Start = DefaultStart
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if s.Organizer == "" {
		return fmt.Errorf("organizer is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	var last time.Duration
	for i, step := range s.Steps {
		if step.At < last {
			return fmt.Errorf("step %d: at %s is before the previous step (%s)", i+1, step.At, last)
		}
		last = step.At

		if err := validateStep(step); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if step.OnPayment != nil {
			if step.OnPayment.OnPayment != nil {
				return fmt.Errorf("step %d: on_payment cannot nest", i+1)
			}
			if err := validateStep(*step.OnPayment); err != nil {
				return fmt.Errorf("step %d on_payment: %w", i+1, err)
			}
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Op {
	case OpPlaceBid, OpWithdraw, OpWithdrawFees, OpRefusePayments, OpAcceptPayments:
		if step.Caller == "" && step.Op != OpPlaceBid {
			return fmt.Errorf("%s requires a caller", step.Op)
		}
	case OpFinalize:
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	switch core.ErrorCode(step.Expect) {
	case "", ResultOK, core.CodeTemporal, core.CodeAuthorization, core.CodeValue,
		core.CodeState, core.CodeInsufficientFunds, core.CodeTransfer:
		return nil
	default:
		return fmt.Errorf("unknown expected result %q", step.Expect)
	}
}
