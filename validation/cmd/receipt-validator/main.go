package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/validation"
)

// plainTextHandler prints only the record message, one per line. CLI output
// has no use for timestamps or levels.
type plainTextHandler struct {
	w io.Writer
}

func (*plainTextHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *plainTextHandler) Handle(_ context.Context, r slog.Record) error {
	_, err := io.WriteString(h.w, r.Message+"\n")
	return err
}

func (h *plainTextHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *plainTextHandler) WithGroup(string) slog.Handler      { return h }

var logger = slog.New(&plainTextHandler{w: os.Stdout})

func main() {
	var (
		receiptInput    = flag.String("receipt", "", "Ledger response, receipt JSON or base64 COSE (file path or inline)")
		pcrsPath        = flag.String("pcrs", "", "Path to known PCR sets JSON (optional)")
		pinnedCertPath  = flag.String("pinned-cert", "", "PEM certificate to trust instead of the AWS Nitro root")
		expectAuction   = flag.String("expect-auction", "", "Expected auction ID")
		expectOperation = flag.String("expect-operation", "", "Expected operation: withdraw, finalize or withdraw_fees")
		expectRecipient = flag.String("expect-recipient", "", "Expected payment recipient")
		expectAmount    = flag.String("expect-amount", "", "Expected payment amount")
		expectDigest    = flag.String("expect-digest", "", "Expected state digest")
		outputFormat    = flag.String("format", "text", "Output format: text or json")
		help            = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if *receiptInput == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --receipt is required\n")
		os.Exit(1)
	}

	input, err := buildValidationInput(readInput(*receiptInput))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading receipt: %v\n", err)
		os.Exit(2)
	}

	if *pcrsPath != "" {
		input.PCRSets, err = validation.LoadPCRsFromFile(*pcrsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading PCRs: %v\n", err)
			os.Exit(2)
		}
	}

	if *pinnedCertPath != "" {
		pemData, err := os.ReadFile(*pinnedCertPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading pinned certificate: %v\n", err)
			os.Exit(2)
		}
		input.PinnedCertificatePEM = string(pemData)
	}

	input.Expected = validation.ReceiptExpectation{
		AuctionID:   *expectAuction,
		Operation:   *expectOperation,
		Recipient:   core.Identity(*expectRecipient),
		StateDigest: *expectDigest,
	}
	if *expectAmount != "" {
		amount, err := strconv.ParseUint(*expectAmount, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing --expect-amount: %v\n", err)
			os.Exit(2)
		}
		expected := core.Amount(amount)
		input.Expected.Amount = &expected
	}

	result, err := validation.ValidateReceipt(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	logger.Info("Auction Ledger Receipt Validator")
	logger.Info("")
	logger.Info("Validates a signed settlement receipt issued by the auction ledger.")
	logger.Info("")
	logger.Info("Usage:")
	logger.Info("  receipt-validator --receipt <json|base64> [options]")
	logger.Info("")
	logger.Info("Required Flags:")
	logger.Info("  --receipt <input>                 Ledger response JSON, receipt JSON or base64 COSE")
	logger.Info("")
	logger.Info("Optional Flags:")
	logger.Info("  --pcrs <path>                     Known PCR sets (skipped when omitted)")
	logger.Info("  --pinned-cert <path>              Trust this PEM certificate instead of the AWS Nitro root")
	logger.Info("  --expect-auction <id>             Expected auction ID")
	logger.Info("  --expect-operation <op>           Expected operation")
	logger.Info("  --expect-recipient <identity>     Expected recipient")
	logger.Info("  --expect-amount <n>               Expected amount")
	logger.Info("  --expect-digest <hex>             Expected state digest")
	logger.Info("  --format <text|json>              Output format (default: text)")
	logger.Info("  --help                            Show this help message")
	logger.Info("")
	logger.Info("Examples:")
	logger.Info("  # A finalize response from a local ledger")
	logger.Info("  receipt-validator --receipt finalize_response.json \\")
	logger.Info("    --pinned-cert local-signer.pem --expect-operation finalize --expect-recipient organizer")
	logger.Info("")
	logger.Info("Exit Codes:")
	logger.Info("  0 - Validation passed")
	logger.Info("  1 - Validation failed")
	logger.Info("  2 - Invalid input or runtime error")
}

func outputText(result *validation.ReceiptValidationResult) {
	logger.Info("Auction Ledger Receipt Validator")
	logger.Info("================================")
	logger.Info("")

	if c := result.Claims; c != nil {
		logger.Info("Receipt:")
		logger.Info(fmt.Sprintf("  Receipt ID:   %s", c.ReceiptID))
		logger.Info(fmt.Sprintf("  Auction ID:   %s", c.AuctionID))
		logger.Info(fmt.Sprintf("  Operation:    %s", c.Operation))
		logger.Info(fmt.Sprintf("  Recipient:    %s", c.Recipient))
		logger.Info(fmt.Sprintf("  Amount:       %d", c.Amount))
		logger.Info(fmt.Sprintf("  Event Seq:    %d", c.EventSeq))
		logger.Info(fmt.Sprintf("  State Digest: %s", c.StateDigest))
		logger.Info("")
	}

	logger.Info("Summary:")
	logger.Info(fmt.Sprintf("  PCRs Valid:          %v", result.PCRsValid))
	logger.Info(fmt.Sprintf("  Certificate Valid:   %v", result.CertificateValid))
	logger.Info(fmt.Sprintf("  Signature Valid:     %v", result.SignatureValid))
	logger.Info(fmt.Sprintf("  Claims Valid:        %v", result.ClaimsValid))

	logger.Info("")
	logger.Info("Details:")
	for _, detail := range result.ValidationDetails {
		logger.Info(fmt.Sprintf("  - %s", detail))
	}

	logger.Info("")
	logger.Info("================================")
	if result.IsValid() {
		logger.Info("VALIDATION: ✓ PASSED")
	} else {
		logger.Info("VALIDATION: ✗ FAILED")
	}
}

func outputJSON(result *validation.ReceiptValidationResult) {
	output := map[string]any{
		"valid":             result.IsValid(),
		"pcrs_valid":        result.PCRsValid,
		"certificate_valid": result.CertificateValid,
		"signature_valid":   result.SignatureValid,
		"claims_valid":      result.ClaimsValid,
		"claims":            result.Claims,
		"details":           result.ValidationDetails,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}
