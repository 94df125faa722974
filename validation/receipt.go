package validation

import (
	"crypto/x509"
	"fmt"

	enclaveapi "github.com/cloudx-io/auctionledger/enclaveapi"
)

// ValidateReceipt validates a settlement receipt and verifies:
// - PCR measurements match a known set (when sets are given)
// - The signing certificate chains to the trust anchor
// - The COSE signature is valid
// - The receipt claims match what the holder expects
//
// Returns:
//   - ReceiptValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed input)
func ValidateReceipt(input *ReceiptValidationInput) (*ReceiptValidationResult, error) {
	coseBytes, err := input.Receipt.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode COSE bytes: %w", err)
	}

	receipt, err := coseBytes.ParseReceipt()
	if err != nil {
		return nil, fmt.Errorf("parse receipt attestation: %w", err)
	}

	roots, err := trustAnchor(input.PinnedCertificatePEM)
	if err != nil {
		return nil, err
	}

	result := &ReceiptValidationResult{
		BaseValidationResult: BaseValidationResult{ValidationDetails: []string{}},
		Claims:               receipt.Claims,
	}

	result.PCRsValid = validatePCRs(input.PCRSets, receipt.AttestationDoc, result)
	result.CertificateValid = validateCertificate(receipt.AttestationDoc, roots, result)

	if err := VerifyCOSESignature(coseBytes, receipt.Certificate); err != nil {
		result.SignatureValid = false
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("COSE signature verification failed: %v", err))
	} else {
		result.SignatureValid = true
		result.ValidationDetails = append(result.ValidationDetails, "COSE signature verified")
	}

	result.ClaimsValid = validateClaims(input.Expected, receipt.Claims, result)
	return result, nil
}

func trustAnchor(pinnedPEM string) (*x509.CertPool, error) {
	if pinnedPEM != "" {
		return PinnedRoots(pinnedPEM)
	}
	return NitroRoots()
}

func validatePCRs(knownPCRs []PCRSet, doc enclaveapi.AttestationDoc, result *ReceiptValidationResult) bool {
	if len(knownPCRs) == 0 {
		result.ValidationDetails = append(result.ValidationDetails, "PCR check skipped: no known PCR sets")
		return true
	}

	pcrMatch, matchedSet := ValidatePCRs(doc.PCRs, knownPCRs)
	if !pcrMatch {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("PCR0: %s (no match)", doc.PCRs.ImageFileHash))
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("PCR1: %s (no match)", doc.PCRs.KernelHash))
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("PCR2: %s (no match)", doc.PCRs.ApplicationHash))
		return false
	}

	result.ValidationDetails = append(result.ValidationDetails, "PCR measurements valid")
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Matched PCR set: #%d (commit: %s)",
		matchedSet, knownPCRs[matchedSet].CommitHash))
	return true
}

func validateCertificate(doc enclaveapi.AttestationDoc, roots *x509.CertPool, result *ReceiptValidationResult) bool {
	if doc.Certificate == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Missing certificate")
		return false
	}
	if len(doc.CABundle) == 0 {
		result.ValidationDetails = append(result.ValidationDetails, "Missing CA bundle")
		return false
	}

	if err := ValidateCertificateChain(doc.Certificate, doc.CABundle, doc.Timestamp, roots); err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Certificate chain validation failed: %v", err))
		return false
	}
	result.ValidationDetails = append(result.ValidationDetails, "Certificate chain verified")
	return true
}

func validateClaims(expected ReceiptExpectation, claims *enclaveapi.ReceiptClaims, result *ReceiptValidationResult) bool {
	if claims == nil {
		result.ValidationDetails = append(result.ValidationDetails, "Receipt claims missing from attestation")
		return false
	}

	valid := true
	mismatch := func(field, want, got string) {
		valid = false
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("%s mismatch: expected %s, receipt has %s", field, want, got))
	}

	if expected.AuctionID != "" && expected.AuctionID != claims.AuctionID {
		mismatch("Auction ID", expected.AuctionID, claims.AuctionID)
	}
	if expected.Operation != "" && expected.Operation != claims.Operation {
		mismatch("Operation", expected.Operation, claims.Operation)
	}
	if expected.Recipient != "" && expected.Recipient != claims.Recipient {
		mismatch("Recipient", string(expected.Recipient), string(claims.Recipient))
	}
	if expected.Amount != nil && *expected.Amount != claims.Amount {
		mismatch("Amount", fmt.Sprint(*expected.Amount), fmt.Sprint(claims.Amount))
	}
	if expected.StateDigest != "" && expected.StateDigest != claims.StateDigest {
		mismatch("State digest", expected.StateDigest, claims.StateDigest)
	}

	if valid {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Receipt claims valid: %s of %d to %s", claims.Operation, claims.Amount, claims.Recipient))
	}
	return valid
}
