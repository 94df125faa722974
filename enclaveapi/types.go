package enclaveapi

import (
	"time"

	"github.com/cloudx-io/auctionledger/core"
)

// Request types accepted by the enclave host.
const (
	RequestPing          = "ping"
	RequestPlaceBid      = "place_bid"
	RequestWithdraw      = "withdraw"
	RequestFinalize      = "finalize"
	RequestWithdrawFees  = "withdraw_fees"
	RequestCurrentWinner = "current_winner"
	RequestAllBids       = "all_bids"
	RequestTimeRemaining = "time_remaining"
	RequestEvents        = "events"
	RequestDeposit       = "deposit"
	RequestBalance       = "balance"
	RequestSnapshot      = "snapshot"
)

// PCRs represents the Platform Configuration Registers from AWS Nitro Enclaves
type PCRs struct {
	// PCR0: Hash of the Enclave Image File (EIF)
	ImageFileHash string `json:"0"`

	// PCR1: Hash of the Linux kernel and initial RAM data (initramfs)
	KernelHash string `json:"1"`

	// PCR2: Hash of user applications, excluding the boot ramfs
	ApplicationHash string `json:"2"`

	// PCR3: Hash of the IAM role assigned to the parent instance
	IAMRoleHash string `json:"3"`

	// PCR4: Hash of the parent instance's ID
	InstanceIDHash string `json:"4"`

	// PCR8: Hash of the enclave image file's signing certificate
	SigningCertHash string `json:"8,omitempty"`
}

// AttestationDoc represents the structured attestation data common to
// NSM-attested and locally signed receipts.
type AttestationDoc struct {
	ModuleID        string    `json:"module_id"`
	Timestamp       time.Time `json:"timestamp"`
	DigestAlgorithm string    `json:"digest"`
	PCRs            PCRs      `json:"pcrs"`

	// Certificate is the base64 DER signing certificate.
	Certificate string `json:"certificate"`

	// CABundle holds base64 DER certificates for chain validation.
	// Locally signed receipts carry their self-signed certificate here.
	CABundle []string `json:"cabundle"`

	PublicKey string `json:"public_key"`
	Nonce     string `json:"nonce"`
}

// ReceiptAttestationDoc is an attestation whose user data is a settlement receipt.
type ReceiptAttestationDoc struct {
	AttestationDoc
	Claims *ReceiptClaims `json:"claims"`
}

// LedgerRequest is the single request shape accepted by the enclave host.
// Type selects the operation; unused fields are ignored.
type LedgerRequest struct {
	Type   string        `json:"type"`
	Caller core.Identity `json:"caller,omitempty"`
	Amount core.Amount   `json:"amount,omitempty"`

	// SinceSeq filters "events" to sequence numbers greater than it.
	SinceSeq uint64 `json:"since_seq,omitempty"`
}

// LedgerResponse is returned for every request. Only the fields relevant to
// the request type are populated.
type LedgerResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`

	// Code is the core.ErrorCode of a failed ledger operation.
	Code string `json:"code,omitempty"`

	Winner          *core.Bid      `json:"winner,omitempty"`
	Bids            []core.Bid     `json:"bids,omitempty"`
	TimeRemainingMs *int64         `json:"time_remaining_ms,omitempty"`
	Events          []core.Event   `json:"events,omitempty"`
	Balance         *core.Amount   `json:"balance,omitempty"`
	Amount          core.Amount    `json:"amount,omitempty"`
	Snapshot        *core.Snapshot `json:"snapshot,omitempty"`
	StateDigest     string         `json:"state_digest,omitempty"`
	Receipt         *Receipt       `json:"receipt,omitempty"`
	ProcessingTime  int64          `json:"processing_time_ms"`
}

// Receipt is a signed statement of a settled payment out of the ledger.
type Receipt struct {
	Claims                ReceiptClaims         `json:"claims"`
	AttestationCOSEBase64 AttestationCOSEBase64 `json:"attestation_cose_base64"`
}
