package core

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// canonicalEncMode encodes with RFC 8949 core deterministic rules and
// RFC 3339 nanosecond timestamps, so equal values always hash equally.
var canonicalEncMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("core: invalid canonical CBOR options: %v", err))
	}
	return em
}()

// MarshalCanonical encodes v as deterministic CBOR.
// This is used for state digests and for signed receipt claims.
func MarshalCanonical(v any) ([]byte, error) {
	data, err := canonicalEncMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical cbor: %w", err)
	}
	return data, nil
}

// ComputeStateDigest hashes a ledger snapshot.
//
// Formula: hex(SHA256(canonical_cbor(snapshot)))
//
// Two ledgers in the same observable state produce the same digest, which lets
// a receipt holder check which state a settlement was issued against.
func ComputeStateDigest(snapshot Snapshot) (string, error) {
	data, err := MarshalCanonical(snapshot)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}
