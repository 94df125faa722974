package validation

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/veraison/go-cose"

	enclaveapi "github.com/cloudx-io/auctionledger/enclaveapi"
	"github.com/cloudx-io/auctionledger/enclaveapi/parsing"
)

var testAttestedAt = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// testSigner signs receipts with a self-signed P-384 certificate.
type testSigner struct {
	key     *ecdsa.PrivateKey
	certDER []byte
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "validation-test"},
		NotBefore:             testAttestedAt.Add(-time.Hour),
		NotAfter:              testAttestedAt.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	assert.NoError(t, err)

	return &testSigner{key: key, certDER: certDER}
}

func (s *testSigner) certificatePEM() string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: s.certDER}))
}

// sign builds a signed receipt attestation with the given PCR0 value.
func (s *testSigner) sign(t *testing.T, claims enclaveapi.ReceiptClaims, pcr0 []byte) enclaveapi.AttestationCOSE {
	t.Helper()

	userData, err := claims.Encode()
	assert.NoError(t, err)

	zeroPCR := make([]byte, 48)
	payload, err := cbor.Marshal(parsing.NitroAttestationDocument{
		ModuleID:    "validation-test",
		Digest:      parsing.DigestSHA384,
		Timestamp:   uint64(testAttestedAt.UnixMilli()),
		PCRs:        map[uint64][]byte{0: pcr0, 1: zeroPCR, 2: zeroPCR},
		Certificate: s.certDER,
		CABundle:    [][]byte{s.certDER},
		UserData:    userData,
	})
	assert.NoError(t, err)

	protected, err := cbor.Marshal(map[int]int{1: int(cose.AlgorithmES384)})
	assert.NoError(t, err)

	sigStructure, err := parsing.SigStructure(protected, payload)
	assert.NoError(t, err)

	signer, err := cose.NewSigner(cose.AlgorithmES384, s.key)
	assert.NoError(t, err)
	signature, err := signer.Sign(rand.Reader, sigStructure)
	assert.NoError(t, err)

	coseBytes, err := parsing.EncodeCOSESign1(protected, payload, signature)
	assert.NoError(t, err)
	return enclaveapi.AttestationCOSE(coseBytes)
}

func testClaims() enclaveapi.ReceiptClaims {
	return enclaveapi.ReceiptClaims{
		ReceiptID:   "receipt-1",
		AuctionID:   "00000000-0000-4000-8000-0000000000aa",
		Operation:   enclaveapi.OperationFinalize,
		Recipient:   "organizer",
		Amount:      103,
		EventSeq:    5,
		StateDigest: strings.Repeat("ab", 32),
		Timestamp:   testAttestedAt,
	}
}

func zeroPCRHex() string {
	return strings.Repeat("00", 48)
}

func writePCRConfig(t *testing.T, config PCRConfig) string {
	t.Helper()

	data, err := json.Marshal(config)
	assert.NoError(t, err)

	path := filepath.Join(t.TempDir(), "pcrs.json")
	assert.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
