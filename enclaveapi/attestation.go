package enclaveapi

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/cloudx-io/auctionledger/enclaveapi/parsing"
)

// AttestationCOSE is a raw untagged COSE_Sign1 attestation.
type AttestationCOSE []byte

// AttestationCOSEBase64 is an AttestationCOSE in standard base64, as carried in JSON.
type AttestationCOSEBase64 string

// AttestationCOSEURLBase64 is an AttestationCOSE in unpadded URL-safe base64.
type AttestationCOSEURLBase64 string

// AttestationCOSEGzip is a gzipped AttestationCOSE in unpadded URL-safe base64.
// It is the compact form used when a receipt travels with a payment memo.
type AttestationCOSEGzip string

func (a AttestationCOSE) EncodeBase64() AttestationCOSEBase64 {
	return AttestationCOSEBase64(base64.StdEncoding.EncodeToString(a))
}

func (a AttestationCOSE) EncodeURLSafe() AttestationCOSEURLBase64 {
	return AttestationCOSEURLBase64(base64.RawURLEncoding.EncodeToString(a))
}

// CompressGzip compresses the attestation. Output is deterministic for equal input.
func (a AttestationCOSE) CompressGzip() (AttestationCOSEGzip, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(a); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return AttestationCOSEGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

// ParseAttestationDoc decodes the attestation document carried in the COSE
// payload. It returns the document and its raw user data.
func (a AttestationCOSE) ParseAttestationDoc() (AttestationDoc, []byte, error) {
	payload, err := parsing.ExtractCOSEPayload(a)
	if err != nil {
		return AttestationDoc{}, nil, fmt.Errorf("extract COSE payload: %w", err)
	}

	raw, err := parsing.DecodeNitroDocument(payload)
	if err != nil {
		return AttestationDoc{}, nil, err
	}

	doc := AttestationDoc{
		ModuleID:        raw.ModuleID,
		Timestamp:       raw.Time(),
		DigestAlgorithm: raw.Digest,
		PCRs:            pcrsOf(raw),
		Certificate:     base64.StdEncoding.EncodeToString(raw.Certificate),
		CABundle:        parsing.EncodeCertificateBundle(raw.CABundle),
		PublicKey:       base64.StdEncoding.EncodeToString(raw.PublicKey),
		Nonce:           string(raw.Nonce),
	}
	return doc, raw.UserData, nil
}

// ParseReceipt decodes the attestation document and the receipt claims it carries.
func (a AttestationCOSE) ParseReceipt() (*ReceiptAttestationDoc, error) {
	doc, userData, err := a.ParseAttestationDoc()
	if err != nil {
		return nil, err
	}

	result := &ReceiptAttestationDoc{AttestationDoc: doc}
	if len(userData) == 0 {
		return result, nil
	}

	claims, err := DecodeReceiptClaims(userData)
	if err != nil {
		return nil, fmt.Errorf("parse user data: %w", err)
	}
	result.Claims = claims
	return result, nil
}

func (b AttestationCOSEBase64) Decode() (AttestationCOSE, error) {
	data, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil {
		return nil, fmt.Errorf("decode COSE base64: %w", err)
	}
	return AttestationCOSE(data), nil
}

func (b AttestationCOSEBase64) CompressGzip() (AttestationCOSEGzip, error) {
	coseBytes, err := b.Decode()
	if err != nil {
		return "", err
	}
	return coseBytes.CompressGzip()
}

func (b AttestationCOSEBase64) String() string { return string(b) }

// Decode accepts both padded and unpadded input.
func (u AttestationCOSEURLBase64) Decode() (AttestationCOSE, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(string(u), "="))
	if err != nil {
		return nil, fmt.Errorf("decode COSE base64url: %w", err)
	}
	return AttestationCOSE(data), nil
}

func (u AttestationCOSEURLBase64) String() string { return string(u) }

func (g AttestationCOSEGzip) Decompress() (AttestationCOSE, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(g))
	if err != nil {
		return nil, fmt.Errorf("decode base64url: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip reader: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("read gzip data: %w", err)
	}
	return AttestationCOSE(data), nil
}

func (g AttestationCOSEGzip) String() string { return string(g) }

func pcrsOf(doc *parsing.NitroAttestationDocument) PCRs {
	return PCRs{
		ImageFileHash:   doc.PCR(0),
		KernelHash:      doc.PCR(1),
		ApplicationHash: doc.PCR(2),
		IAMRoleHash:     doc.PCR(3),
		InstanceIDHash:  doc.PCR(4),
		SigningCertHash: doc.PCR(8),
	}
}
