package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/enclaveapi"
	"github.com/cloudx-io/auctionledger/journal"
)

var testStart = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

const testOrganizer core.Identity = "organizer"

// MockEnclaveHandle implements the Attest method for testing
type MockEnclaveHandle struct {
	AttestFunc func(options enclave.AttestationOptions) ([]byte, error)
}

func (m *MockEnclaveHandle) Attest(options enclave.AttestationOptions) ([]byte, error) {
	if m.AttestFunc != nil {
		return m.AttestFunc(options)
	}
	return nil, fmt.Errorf("mock not configured")
}

// mustDecodeHex decodes hex strings to PCR bytes for testing
func mustDecodeHex(t *testing.T, hexStr string) []byte {
	t.Helper()
	bytes, err := hex.DecodeString(hexStr)
	if err != nil {
		panic(fmt.Sprintf("invalid hex string: %s", hexStr))
	}
	return bytes
}

// CreateMockEnclave creates a mock enclave handle returning an unsigned
// attestation in the AWS Nitro layout
func CreateMockEnclave(t *testing.T) *MockEnclaveHandle {
	t.Helper()
	return &MockEnclaveHandle{
		AttestFunc: func(options enclave.AttestationOptions) ([]byte, error) {
			nestedDoc := map[string]any{
				"module_id": "test-enclave-12345",
				"digest":    "SHA384",
				"timestamp": uint64(1735732800000),
				"pcrs": map[uint64][]byte{
					0: mustDecodeHex(t, "3b4cef27e672fdbcc808960a88ddfe7329dd2e367b6850c9a8d910315f0b47e4224d6db361b75e010c87691d86ca9c57"),
					1: mustDecodeHex(t, "4b4d5b3661b3efc12920900c80e126e4ce783c522de6c02a2a5bf7af3a2b9327b86776f188e4be1c1c404a129dbda493"),
					2: mustDecodeHex(t, "2bdd28c1d85bb3872da3617a29a6bfeb50c65750c995f92e7dac6b5f2c4c72e0f9976bdee62a0b25864d10dffb535e11"),
				},
				"certificate": []byte("test-certificate-data"),
				"cabundle":    [][]byte{[]byte("test-ca-cert")},
				"public_key":  []byte("test-public-key-data"),
				"user_data":   options.UserData,
				"nonce":       options.Nonce,
			}

			nestedBytes, _ := cbor.Marshal(nestedDoc)

			// AWS Nitro 4-element array format: [header, metadata, nested_doc, signature]
			result := []any{
				[]byte{0x01, 0x02, 0x03},
				map[string]any{},
				nestedBytes,
				[]byte{0x04, 0x05, 0x06},
			}
			return cbor.Marshal(result)
		},
	}
}

// recordingJournal keeps journal writes in memory.
type recordingJournal struct {
	mu         sync.Mutex
	events     []core.Event
	operations []journal.Operation
	failWrites bool
}

func (r *recordingJournal) AppendEvents(_ context.Context, _ string, events []core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return fmt.Errorf("journal unavailable")
	}
	r.events = append(r.events, events...)
	return nil
}

func (r *recordingJournal) RecordOperation(_ context.Context, op journal.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return fmt.Errorf("journal unavailable")
	}
	r.operations = append(r.operations, op)
	return nil
}

type testHost struct {
	host    *LedgerHost
	clock   *core.ManualClock
	bank    *Bank
	journal *recordingJournal
}

// newTestHost builds a host over a fresh ledger with a manual clock.
// Every bidder named in funded gets a balance of 1000.
func newTestHost(t *testing.T, attester EnclaveAttester, duration time.Duration, funded ...core.Identity) *testHost {
	t.Helper()
	clock := core.NewManualClock(testStart)
	bank := NewBank()
	for _, id := range funded {
		_, err := bank.Deposit(id, 1000)
		assert.NoError(t, err)
	}

	ledger, err := core.NewLedger(core.Config{
		ID:        uuid.MustParse("00000000-0000-4000-8000-0000000000aa"),
		Duration:  duration,
		Organizer: testOrganizer,
	}, clock, bank)
	assert.NoError(t, err)

	j := &recordingJournal{}
	return &testHost{
		host:    NewLedgerHost(ledger, bank, attester, j, clock),
		clock:   clock,
		bank:    bank,
		journal: j,
	}
}

func (h *testHost) do(reqType string, caller core.Identity, amount core.Amount) enclaveapi.LedgerResponse {
	return h.host.Handle(context.Background(), enclaveapi.LedgerRequest{
		Type:   reqType,
		Caller: caller,
		Amount: amount,
	})
}

// parseReceipt decodes the receipt attestation of a response.
func parseReceipt(t *testing.T, resp enclaveapi.LedgerResponse) *enclaveapi.ReceiptAttestationDoc {
	t.Helper()
	assert.NotNil(t, resp.Receipt)

	coseBytes, err := resp.Receipt.AttestationCOSEBase64.Decode()
	assert.NoError(t, err)

	doc, err := coseBytes.ParseReceipt()
	assert.NoError(t, err)
	assert.NotNil(t, doc.Claims)
	return doc
}
