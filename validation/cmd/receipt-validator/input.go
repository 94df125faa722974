package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	enclaveapi "github.com/cloudx-io/auctionledger/enclaveapi"
	"github.com/cloudx-io/auctionledger/validation"
)

func readInput(input string) []byte {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data
	}
	return []byte(input)
}

// buildValidationInput accepts a ledger response carrying a receipt, a bare
// receipt, or the base64 COSE attestation itself.
func buildValidationInput(data []byte) (*validation.ReceiptValidationInput, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty receipt input")
	}

	if data[0] != '{' {
		return &validation.ReceiptValidationInput{
			Receipt: enclaveapi.AttestationCOSEBase64(data),
		}, nil
	}

	var resp enclaveapi.LedgerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse receipt JSON: %w", err)
	}
	if resp.Receipt != nil && resp.Receipt.AttestationCOSEBase64 != "" {
		return &validation.ReceiptValidationInput{Receipt: resp.Receipt.AttestationCOSEBase64}, nil
	}

	var receipt enclaveapi.Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, fmt.Errorf("parse receipt JSON: %w", err)
	}
	if receipt.AttestationCOSEBase64 == "" {
		return nil, fmt.Errorf("missing 'attestation_cose_base64' in receipt")
	}
	return &validation.ReceiptValidationInput{Receipt: receipt.AttestationCOSEBase64}, nil
}
