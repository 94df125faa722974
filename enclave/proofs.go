package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/google/uuid"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/enclaveapi"
)

// nonceEntropyBytes is the random part of every receipt nonce.
const nonceEntropyBytes = 16

// EnclaveAttester produces signed attestation documents. The NSM handle
// satisfies it inside an enclave and KeyManager satisfies it locally.
type EnclaveAttester interface {
	Attest(options enclave.AttestationOptions) ([]byte, error)
}

func getEnclaveAttester() (EnclaveAttester, error) {
	handle, err := enclave.GetOrInitializeHandle()
	if err != nil {
		return nil, fmt.Errorf("NSM not available: %w", err)
	}
	return handle, nil
}

// Inside an enclave the kernel entropy pool is fed by the NSM.
func generateSecureRandomBytes(length int) ([]byte, error) {
	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("entropy generation failed: %w", err)
	}
	return randomBytes, nil
}

// receiptNonce ties the attestation nonce to one receipt ID so a document
// cannot be replayed under another receipt.
func receiptNonce(receiptID string) (string, error) {
	entropy, err := generateSecureRandomBytes(nonceEntropyBytes)
	if err != nil {
		return "", fmt.Errorf("generate nonce for receipt %s: %w", receiptID, err)
	}
	return receiptID + "." + hex.EncodeToString(entropy), nil
}

// newReceiptClaims describes a settled transfer against the ledger state
// right after it.
func newReceiptClaims(snapshot core.Snapshot, operation string, recipient core.Identity, amount core.Amount, at time.Time) (enclaveapi.ReceiptClaims, error) {
	digest, err := core.ComputeStateDigest(snapshot)
	if err != nil {
		return enclaveapi.ReceiptClaims{}, fmt.Errorf("compute state digest: %w", err)
	}

	receiptID, err := uuid.NewRandom()
	if err != nil {
		return enclaveapi.ReceiptClaims{}, fmt.Errorf("generate receipt id: %w", err)
	}

	return enclaveapi.ReceiptClaims{
		ReceiptID:   receiptID.String(),
		AuctionID:   snapshot.AuctionID,
		Operation:   operation,
		Recipient:   recipient,
		Amount:      amount,
		EventSeq:    snapshot.LastEventSeq,
		StateDigest: digest,
		Timestamp:   at.UTC(),
	}, nil
}

// attestReceipt signs the claims as attestation user data and wraps the
// result for the response.
func attestReceipt(attester EnclaveAttester, claims enclaveapi.ReceiptClaims) (*enclaveapi.Receipt, error) {
	if attester == nil {
		return nil, fmt.Errorf("enclave attester is nil")
	}

	userData, err := claims.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode receipt claims: %w", err)
	}

	nonce, err := receiptNonce(claims.ReceiptID)
	if err != nil {
		return nil, err
	}

	document, err := attester.Attest(enclave.AttestationOptions{
		UserData: userData,
		Nonce:    []byte(nonce),
	})
	if err != nil {
		log.Printf("ERROR: Receipt attestation failed for %s: %v", claims.ReceiptID, err)
		return nil, fmt.Errorf("receipt attestation failed: %w", err)
	}

	log.Printf("INFO: Receipt %s attested for %s of %d to %s: %d bytes",
		claims.ReceiptID, claims.Operation, claims.Amount, claims.Recipient, len(document))

	return &enclaveapi.Receipt{
		Claims:                claims,
		AttestationCOSEBase64: enclaveapi.AttestationCOSE(document).EncodeBase64(),
	}, nil
}
