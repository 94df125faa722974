package main

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/enclaveapi"
)

func checkHexPattern(t *testing.T, test string) {
	t.Helper()
	matched, err := regexp.MatchString(`^[a-f0-9]+$`, test)
	check.Nil(t, err)
	check.True(t, matched)
}

func TestGenerateSecureRandomBytes(t *testing.T) {
	bytes1, err1 := generateSecureRandomBytes(32)
	bytes2, err2 := generateSecureRandomBytes(32)

	check.NoError(t, err1)
	check.NoError(t, err2)
	check.Equal(t, 32, len(bytes1))
	check.NotEqual(t, bytes1, bytes2)
}

func TestReceiptNonce(t *testing.T) {
	nonce1, err := receiptNonce("receipt-1")
	assert.NoError(t, err)
	nonce2, err := receiptNonce("receipt-1")
	assert.NoError(t, err)

	id, entropy, ok := strings.Cut(nonce1, ".")
	check.True(t, ok)
	check.Equal(t, "receipt-1", id)
	check.Equal(t, 2*nonceEntropyBytes, len(entropy))
	checkHexPattern(t, entropy)
	check.NotEqual(t, nonce1, nonce2)
}

func testClaims() enclaveapi.ReceiptClaims {
	return enclaveapi.ReceiptClaims{
		ReceiptID:   "receipt-1",
		AuctionID:   "auction-1",
		Operation:   enclaveapi.OperationWithdraw,
		Recipient:   "alice",
		Amount:      98,
		EventSeq:    3,
		StateDigest: "digest",
		Timestamp:   testStart,
	}
}

func TestNewReceiptClaims(t *testing.T) {
	snapshot := core.Snapshot{
		AuctionID:    "auction-1",
		Organizer:    "org",
		Deadline:     testStart.Add(time.Hour),
		Highest:      core.Bid{Bidder: "bob", Amount: 105},
		Custody:      105,
		LastEventSeq: 4,
	}
	local := time.FixedZone("UTC+2", 2*60*60)

	claims, err := newReceiptClaims(snapshot, enclaveapi.OperationWithdraw, "alice", 98, testStart.In(local))
	assert.NoError(t, err)

	digest, err := core.ComputeStateDigest(snapshot)
	assert.NoError(t, err)

	_, err = uuid.Parse(claims.ReceiptID)
	check.NoError(t, err)
	check.Equal(t, "auction-1", claims.AuctionID)
	check.Equal(t, core.Identity("alice"), claims.Recipient)
	check.Equal(t, core.Amount(98), claims.Amount)
	check.Equal(t, uint64(4), claims.EventSeq)
	check.Equal(t, digest, claims.StateDigest)
	check.True(t, claims.Timestamp.Location() == time.UTC)
	check.True(t, claims.Timestamp.Equal(testStart))

	again, err := newReceiptClaims(snapshot, enclaveapi.OperationWithdraw, "alice", 98, testStart)
	assert.NoError(t, err)
	check.NotEqual(t, claims.ReceiptID, again.ReceiptID)
	check.Equal(t, claims.StateDigest, again.StateDigest)
}

func TestAttestReceipt(t *testing.T) {
	var seen enclave.AttestationOptions
	mock := CreateMockEnclave(t)
	attest := mock.AttestFunc
	mock.AttestFunc = func(options enclave.AttestationOptions) ([]byte, error) {
		seen = options
		return attest(options)
	}

	issued, err := attestReceipt(mock, testClaims())
	assert.NoError(t, err)
	check.Equal(t, "receipt-1", issued.Claims.ReceiptID)
	check.True(t, strings.HasPrefix(string(seen.Nonce), "receipt-1."))

	coseBytes, err := issued.AttestationCOSEBase64.Decode()
	assert.NoError(t, err)
	receipt, err := coseBytes.ParseReceipt()
	assert.NoError(t, err)
	assert.NotNil(t, receipt.Claims)
	check.Equal(t, "receipt-1", receipt.Claims.ReceiptID)
	check.Equal(t, enclaveapi.OperationWithdraw, receipt.Claims.Operation)
	check.True(t, receipt.Claims.Timestamp.Equal(testStart))
	check.Equal(t, string(seen.Nonce), receipt.Nonce)
	check.True(t, receipt.Timestamp.Equal(time.UnixMilli(1735732800000)))
}

func TestAttestReceipt_Errors(t *testing.T) {
	_, err := attestReceipt(nil, testClaims())
	check.Error(t, err)

	failing := &MockEnclaveHandle{AttestFunc: func(enclave.AttestationOptions) ([]byte, error) {
		return nil, errors.New("nsm device busy")
	}}
	_, err = attestReceipt(failing, testClaims())
	check.Error(t, err)
}
