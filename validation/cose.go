package validation

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	enclaveapi "github.com/cloudx-io/auctionledger/enclaveapi"
	"github.com/cloudx-io/auctionledger/enclaveapi/parsing"
)

// coseHeaderAlgorithm is the COSE header label for the signing algorithm.
const coseHeaderAlgorithm = 1

// VerifyCOSESignature checks that the receipt's COSE_Sign1 signature was
// made with ES384 by the key in the given base64 DER certificate.
func VerifyCOSESignature(coseBytes enclaveapi.AttestationCOSE, certB64 string) error {
	cert, err := parseCertificate(certB64)
	if err != nil {
		return err
	}

	ecdsaKey, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("certificate public key is not ECDSA")
	}

	msg, err := parsing.DecodeCOSESign1(coseBytes)
	if err != nil {
		return err
	}

	if err := checkProtectedAlgorithm(msg.Protected); err != nil {
		return err
	}

	sigStructure, err := parsing.SigStructure(msg.Protected, msg.Payload)
	if err != nil {
		return err
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES384, ecdsaKey)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}
	if err := verifier.Verify(sigStructure, msg.Signature); err != nil {
		return fmt.Errorf("COSE signature verification failed: %w", err)
	}
	return nil
}

// checkProtectedAlgorithm rejects anything but ES384 in the protected header.
// An empty protected header is accepted as Nitro's default.
func checkProtectedAlgorithm(protected []byte) error {
	if len(protected) == 0 {
		return nil
	}

	var header map[int]any
	if err := cbor.Unmarshal(protected, &header); err != nil {
		return fmt.Errorf("decode protected header: %w", err)
	}

	alg, ok := header[coseHeaderAlgorithm]
	if !ok {
		return nil
	}
	if id, ok := alg.(int64); ok && cose.Algorithm(id) == cose.AlgorithmES384 {
		return nil
	}
	return fmt.Errorf("unsupported COSE algorithm %v (want ES384)", alg)
}

func parseCertificate(certB64 string) (*x509.Certificate, error) {
	certDER, err := base64.StdEncoding.DecodeString(certB64)
	if err != nil {
		return nil, fmt.Errorf("decode certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return cert, nil
}
