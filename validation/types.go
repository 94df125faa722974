package validation

import (
	"github.com/cloudx-io/auctionledger/core"
	enclaveapi "github.com/cloudx-io/auctionledger/enclaveapi"
)

// BaseValidationResult contains the attestation-level validation results
type BaseValidationResult struct {
	PCRsValid         bool
	CertificateValid  bool
	SignatureValid    bool
	ValidationDetails []string
}

// ReceiptValidationResult contains validation results for a settlement receipt
type ReceiptValidationResult struct {
	BaseValidationResult
	ClaimsValid bool

	// Claims are the receipt claims as found in the attestation, if any.
	Claims *enclaveapi.ReceiptClaims
}

// IsValid returns true if all receipt validation checks passed
func (r *ReceiptValidationResult) IsValid() bool {
	return r.PCRsValid && r.CertificateValid && r.SignatureValid && r.ClaimsValid
}

// ReceiptExpectation lists the claims a receipt holder expects. Empty
// fields are not checked.
type ReceiptExpectation struct {
	AuctionID   string
	Operation   string
	Recipient   core.Identity
	Amount      *core.Amount
	StateDigest string
}

// ReceiptValidationInput contains all inputs needed for receipt validation
type ReceiptValidationInput struct {
	Receipt enclaveapi.AttestationCOSEBase64

	// PCRSets are the known-good enclave measurements. When empty the PCR
	// check is skipped and reported as passed.
	PCRSets []PCRSet

	// PinnedCertificatePEM, when set, replaces the AWS Nitro root as the
	// trust anchor. Used for receipts signed by a local key.
	PinnedCertificatePEM string

	Expected ReceiptExpectation
}

// PCRSet represents a known-good set of PCR measurements
type PCRSet struct {
	PCR0       string `json:"pcr0"`
	PCR1       string `json:"pcr1"`
	PCR2       string `json:"pcr2"`
	CommitHash string `json:"commit_hash"` // repo commit used to build the enclave image
}

// PCRConfig represents the PCR configuration file structure
type PCRConfig struct {
	PCRSets []PCRSet `json:"pcr_sets"`
}
