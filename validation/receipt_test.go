package validation

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctionledger/core"
	enclaveapi "github.com/cloudx-io/auctionledger/enclaveapi"
	"github.com/cloudx-io/auctionledger/enclaveapi/parsing"
)

func hasDetail(details []string, substr string) bool {
	for _, d := range details {
		if strings.Contains(d, substr) {
			return true
		}
	}
	return false
}

func TestValidateReceipt_Valid(t *testing.T) {
	signer := newTestSigner(t)
	claims := testClaims()
	amount := core.Amount(103)

	result, err := ValidateReceipt(&ReceiptValidationInput{
		Receipt:              signer.sign(t, claims, make([]byte, 48)).EncodeBase64(),
		PCRSets:              []PCRSet{{PCR0: zeroPCRHex(), PCR1: zeroPCRHex(), PCR2: zeroPCRHex(), CommitHash: "abc123"}},
		PinnedCertificatePEM: signer.certificatePEM(),
		Expected: ReceiptExpectation{
			AuctionID:   claims.AuctionID,
			Operation:   enclaveapi.OperationFinalize,
			Recipient:   "organizer",
			Amount:      &amount,
			StateDigest: claims.StateDigest,
		},
	})
	assert.NoError(t, err)

	check.True(t, result.PCRsValid)
	check.True(t, result.CertificateValid)
	check.True(t, result.SignatureValid)
	check.True(t, result.ClaimsValid)
	check.True(t, result.IsValid())
	check.True(t, hasDetail(result.ValidationDetails, "commit: abc123"))

	assert.NotNil(t, result.Claims)
	check.Equal(t, claims.ReceiptID, result.Claims.ReceiptID)
	check.Equal(t, uint64(5), result.Claims.EventSeq)
}

func TestValidateReceipt_SkipsPCRsWhenNoneKnown(t *testing.T) {
	signer := newTestSigner(t)

	result, err := ValidateReceipt(&ReceiptValidationInput{
		Receipt:              signer.sign(t, testClaims(), make([]byte, 48)).EncodeBase64(),
		PinnedCertificatePEM: signer.certificatePEM(),
	})
	assert.NoError(t, err)

	check.True(t, result.PCRsValid)
	check.True(t, result.IsValid())
	check.True(t, hasDetail(result.ValidationDetails, "PCR check skipped"))
}

func TestValidateReceipt_PCRMismatch(t *testing.T) {
	signer := newTestSigner(t)
	pcr0 := make([]byte, 48)
	pcr0[0] = 0xff

	result, err := ValidateReceipt(&ReceiptValidationInput{
		Receipt:              signer.sign(t, testClaims(), pcr0).EncodeBase64(),
		PCRSets:              []PCRSet{{PCR0: zeroPCRHex(), PCR1: zeroPCRHex(), PCR2: zeroPCRHex()}},
		PinnedCertificatePEM: signer.certificatePEM(),
	})
	assert.NoError(t, err)

	check.False(t, result.PCRsValid)
	check.True(t, result.SignatureValid)
	check.False(t, result.IsValid())
	check.True(t, hasDetail(result.ValidationDetails, "PCR0: ff"))
}

func TestValidateReceipt_ClaimsMismatch(t *testing.T) {
	signer := newTestSigner(t)
	amount := core.Amount(500)

	result, err := ValidateReceipt(&ReceiptValidationInput{
		Receipt:              signer.sign(t, testClaims(), make([]byte, 48)).EncodeBase64(),
		PinnedCertificatePEM: signer.certificatePEM(),
		Expected: ReceiptExpectation{
			Recipient: "mallory",
			Amount:    &amount,
		},
	})
	assert.NoError(t, err)

	check.True(t, result.SignatureValid)
	check.False(t, result.ClaimsValid)
	check.False(t, result.IsValid())
	check.True(t, hasDetail(result.ValidationDetails, "Recipient mismatch: expected mallory, receipt has organizer"))
	check.True(t, hasDetail(result.ValidationDetails, "Amount mismatch: expected 500, receipt has 103"))
}

func TestValidateReceipt_TamperedPayload(t *testing.T) {
	signer := newTestSigner(t)
	coseBytes := signer.sign(t, testClaims(), make([]byte, 48))

	msg, err := parsing.DecodeCOSESign1(coseBytes)
	assert.NoError(t, err)

	forged := testClaims()
	forged.Amount = 1_000_000
	forgedCOSE := signer.sign(t, forged, make([]byte, 48))
	forgedMsg, err := parsing.DecodeCOSESign1(forgedCOSE)
	assert.NoError(t, err)

	// Forged payload with the original signature
	tampered, err := parsing.EncodeCOSESign1(msg.Protected, forgedMsg.Payload, msg.Signature)
	assert.NoError(t, err)

	result, err := ValidateReceipt(&ReceiptValidationInput{
		Receipt:              enclaveapi.AttestationCOSE(tampered).EncodeBase64(),
		PinnedCertificatePEM: signer.certificatePEM(),
	})
	assert.NoError(t, err)

	check.True(t, result.CertificateValid)
	check.False(t, result.SignatureValid)
	check.False(t, result.IsValid())
}

func TestValidateReceipt_UntrustedCertificate(t *testing.T) {
	signer := newTestSigner(t)
	other := newTestSigner(t)

	result, err := ValidateReceipt(&ReceiptValidationInput{
		Receipt:              signer.sign(t, testClaims(), make([]byte, 48)).EncodeBase64(),
		PinnedCertificatePEM: other.certificatePEM(),
	})
	assert.NoError(t, err)

	check.False(t, result.CertificateValid)
	check.True(t, result.SignatureValid)
	check.False(t, result.IsValid())
}

func TestValidateReceipt_NitroRootRejectsLocalKey(t *testing.T) {
	signer := newTestSigner(t)

	result, err := ValidateReceipt(&ReceiptValidationInput{
		Receipt: signer.sign(t, testClaims(), make([]byte, 48)).EncodeBase64(),
	})
	assert.NoError(t, err)

	check.False(t, result.CertificateValid)
	check.False(t, result.IsValid())
}

func TestValidateReceipt_MalformedInput(t *testing.T) {
	_, err := ValidateReceipt(&ReceiptValidationInput{Receipt: "not base64!!"})
	check.Error(t, err)

	_, err = ValidateReceipt(&ReceiptValidationInput{
		Receipt: enclaveapi.AttestationCOSE([]byte{0x01, 0x02}).EncodeBase64(),
	})
	check.Error(t, err)

	_, err = ValidateReceipt(&ReceiptValidationInput{
		Receipt:              newTestSigner(t).sign(t, testClaims(), make([]byte, 48)).EncodeBase64(),
		PinnedCertificatePEM: "not a certificate",
	})
	check.Error(t, err)
}

func TestLoadPCRsFromFile(t *testing.T) {
	a := strings.Repeat("a", 96)
	d := strings.Repeat("d", 96)
	path := writePCRConfig(t, PCRConfig{PCRSets: []PCRSet{
		{PCR0: a, PCR1: a, PCR2: a, CommitHash: "c1"},
		{PCR0: d, PCR1: d, PCR2: d, CommitHash: "c2"},
	}})

	sets, err := LoadPCRsFromFile(path)
	assert.NoError(t, err)
	check.Equal(t, 2, len(sets))

	upper := strings.ToUpper(d)
	match, idx := ValidatePCRs(enclaveapi.PCRs{ImageFileHash: upper, KernelHash: d, ApplicationHash: d}, sets)
	check.True(t, match)
	check.Equal(t, 1, idx)

	match, idx = ValidatePCRs(enclaveapi.PCRs{ImageFileHash: d}, sets)
	check.False(t, match)
	check.Equal(t, -1, idx)
}

func TestLoadPCRsFromFile_Rejects(t *testing.T) {
	good := strings.Repeat("0", 96)
	tests := []struct {
		name   string
		config PCRConfig
	}{
		{name: "empty", config: PCRConfig{}},
		{name: "short value", config: PCRConfig{PCRSets: []PCRSet{{PCR0: "aa", PCR1: good, PCR2: good}}}},
		{name: "not hex", config: PCRConfig{PCRSets: []PCRSet{{PCR0: good, PCR1: strings.Repeat("z", 96), PCR2: good}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPCRsFromFile(writePCRConfig(t, tt.config))
			check.Error(t, err)
		})
	}

	_, err := LoadPCRsFromFile(filepath.Join(t.TempDir(), "missing.json"))
	check.Error(t, err)
}

func TestDebugPCRSet_MatchesLocalSigner(t *testing.T) {
	debug := DebugPCRSet()
	check.NoError(t, debug.validate())

	zero := zeroPCRHex()
	match, idx := ValidatePCRs(enclaveapi.PCRs{ImageFileHash: zero, KernelHash: zero, ApplicationHash: zero}, []PCRSet{debug})
	check.True(t, match)
	check.Equal(t, 0, idx)
}
