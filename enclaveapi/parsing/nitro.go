package parsing

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// DigestSHA384 is the only digest Nitro attestation documents use.
const DigestSHA384 = "SHA384"

// NitroAttestationDocument represents the raw CBOR structure from AWS Nitro Enclaves.
// Locally signed receipts use the same layout.
type NitroAttestationDocument struct {
	ModuleID    string            `cbor:"module_id"`
	Digest      string            `cbor:"digest"`
	Timestamp   uint64            `cbor:"timestamp"` // milliseconds since the Unix epoch
	PCRs        map[uint64][]byte `cbor:"pcrs"`
	Certificate []byte            `cbor:"certificate"`
	CABundle    [][]byte          `cbor:"cabundle"`
	PublicKey   []byte            `cbor:"public_key"`
	UserData    []byte            `cbor:"user_data"` // receipt claims, canonical CBOR
	Nonce       []byte            `cbor:"nonce"`
}

// DecodeNitroDocument decodes a COSE payload into an attestation document
// and checks the fields every receipt relies on.
func DecodeNitroDocument(payload []byte) (*NitroAttestationDocument, error) {
	var doc NitroAttestationDocument
	if err := cbor.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse attestation document: %w", err)
	}
	if doc.ModuleID == "" {
		return nil, fmt.Errorf("attestation document has no module_id")
	}
	if doc.Digest != DigestSHA384 {
		return nil, fmt.Errorf("unsupported attestation digest %q", doc.Digest)
	}
	if doc.Timestamp == 0 {
		return nil, fmt.Errorf("attestation document has no timestamp")
	}
	return &doc, nil
}

// Time returns the document timestamp in UTC.
func (d *NitroAttestationDocument) Time() time.Time {
	return time.UnixMilli(int64(d.Timestamp)).UTC()
}

// PCR returns PCR index as lowercase hex, or "" when absent.
func (d *NitroAttestationDocument) PCR(index uint64) string {
	return FormatPCR(d.PCRs[index])
}

// FormatPCR formats PCR bytes as hex string
func FormatPCR(pcrData []byte) string {
	if len(pcrData) == 0 {
		return ""
	}
	return fmt.Sprintf("%x", pcrData)
}

// EncodeCertificateBundle converts certificate bundle to base64 strings
func EncodeCertificateBundle(bundle [][]byte) []string {
	result := make([]string, len(bundle))
	for i, cert := range bundle {
		result[i] = base64.StdEncoding.EncodeToString(cert)
	}
	return result
}
