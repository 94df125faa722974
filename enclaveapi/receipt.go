package enclaveapi

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/auctionledger/core"
)

// Operations that settle a payment and therefore produce a receipt.
const (
	OperationWithdraw     = "withdraw"
	OperationFinalize     = "finalize"
	OperationWithdrawFees = "withdraw_fees"
)

// ReceiptClaims is embedded as attestation user data. It binds a payment to
// the ledger state that produced it.
type ReceiptClaims struct {
	ReceiptID string        `json:"receipt_id" cbor:"receipt_id"`
	AuctionID string        `json:"auction_id" cbor:"auction_id"`
	Operation string        `json:"operation" cbor:"operation"`
	Recipient core.Identity `json:"recipient" cbor:"recipient"`
	Amount    core.Amount   `json:"amount" cbor:"amount"`

	// EventSeq is the last event sequence number when the payment settled.
	EventSeq uint64 `json:"event_seq" cbor:"event_seq"`

	// StateDigest is core.ComputeStateDigest of the post-payment snapshot.
	StateDigest string    `json:"state_digest" cbor:"state_digest"`
	Timestamp   time.Time `json:"timestamp" cbor:"timestamp"`
}

// Encode returns the canonical CBOR form of the claims.
func (c ReceiptClaims) Encode() ([]byte, error) {
	data, err := core.MarshalCanonical(c)
	if err != nil {
		return nil, fmt.Errorf("encode receipt claims: %w", err)
	}
	return data, nil
}

func DecodeReceiptClaims(data []byte) (*ReceiptClaims, error) {
	var claims ReceiptClaims
	if err := cbor.Unmarshal(data, &claims); err != nil {
		return nil, fmt.Errorf("decode receipt claims: %w", err)
	}
	return &claims, nil
}
