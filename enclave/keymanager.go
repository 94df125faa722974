package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/auctionledger/enclaveapi/parsing"
)

const localModuleID = "auctionledger-local"

// KeyManager holds a P-384 signing key and a self-signed certificate.
// It signs receipts outside a Nitro enclave, producing the same untagged
// COSE_Sign1 layout the NSM returns.
type KeyManager struct {
	privateKey  *ecdsa.PrivateKey // Keep private - sensitive!
	Certificate *x509.Certificate
	certDER     []byte
	now         func() time.Time
}

// NewKeyManager creates a new KeyManager with a fresh key pair
func NewKeyManager() (*KeyManager, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate certificate serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: localModuleID, Organization: []string{"auctionledger"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return &KeyManager{
		privateKey:  privateKey,
		Certificate: cert,
		certDER:     certDER,
		now:         time.Now,
	}, nil
}

// CertificatePEM returns the signing certificate in PEM format
func (km *KeyManager) CertificatePEM() string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: km.certDER,
	}))
}

// Attest signs an attestation document carrying the given user data.
// PCRs are all zeros, as in a debug-mode enclave.
func (km *KeyManager) Attest(options enclave.AttestationOptions) ([]byte, error) {
	zeroPCR := make([]byte, 48)
	doc := parsing.NitroAttestationDocument{
		ModuleID:  localModuleID,
		Digest:    parsing.DigestSHA384,
		Timestamp: uint64(km.now().UnixMilli()),
		PCRs: map[uint64][]byte{
			0: zeroPCR,
			1: zeroPCR,
			2: zeroPCR,
		},
		Certificate: km.certDER,
		CABundle:    [][]byte{km.certDER},
		UserData:    options.UserData,
		Nonce:       options.Nonce,
	}

	payload, err := cbor.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal attestation document: %w", err)
	}

	// Protected header: {1 (alg): -35 (ES384)}
	protected, err := cbor.Marshal(map[int]int{1: int(cose.AlgorithmES384)})
	if err != nil {
		return nil, fmt.Errorf("marshal protected header: %w", err)
	}

	sigStructure, err := parsing.SigStructure(protected, payload)
	if err != nil {
		return nil, err
	}

	signer, err := cose.NewSigner(cose.AlgorithmES384, km.privateKey)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}
	signature, err := signer.Sign(rand.Reader, sigStructure)
	if err != nil {
		return nil, fmt.Errorf("sign attestation: %w", err)
	}

	return parsing.EncodeCOSESign1(protected, payload, signature)
}
