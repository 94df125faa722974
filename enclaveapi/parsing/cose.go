package parsing

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// COSESign1 holds the four elements of an untagged COSE_Sign1 array:
// [protected, unprotected, payload, signature]
type COSESign1 struct {
	Protected []byte
	Payload   []byte
	Signature []byte
}

// DecodeCOSESign1 splits an untagged COSE_Sign1 array into its parts.
func DecodeCOSESign1(coseBytes []byte) (*COSESign1, error) {
	var coseArray []any
	err := cbor.Unmarshal(coseBytes, &coseArray)
	if err != nil {
		return nil, fmt.Errorf("parse COSE array: %w", err)
	}

	if len(coseArray) != 4 {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
	}

	protected, ok := coseArray[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid protected headers in COSE structure")
	}

	payload, ok := coseArray[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid payload in COSE structure")
	}

	signature, ok := coseArray[3].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid signature in COSE structure")
	}

	return &COSESign1{Protected: protected, Payload: payload, Signature: signature}, nil
}

// ExtractCOSEPayload returns element 2 of a COSE_Sign1 array.
func ExtractCOSEPayload(coseBytes []byte) ([]byte, error) {
	msg, err := DecodeCOSESign1(coseBytes)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

// SigStructure builds the bytes that are signed for a COSE_Sign1 message:
// ["Signature1", protected, external_aad, payload] with an empty external_aad.
func SigStructure(protected, payload []byte) ([]byte, error) {
	sigStructure := []any{
		"Signature1",
		protected,
		[]byte{},
		payload,
	}

	data, err := cbor.Marshal(sigStructure)
	if err != nil {
		return nil, fmt.Errorf("marshal Sig_structure: %w", err)
	}
	return data, nil
}

// EncodeCOSESign1 assembles an untagged COSE_Sign1 array with an empty
// unprotected header map.
func EncodeCOSESign1(protected, payload, signature []byte) ([]byte, error) {
	data, err := cbor.Marshal([]any{
		protected,
		map[int]any{},
		payload,
		signature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal COSE_Sign1: %w", err)
	}
	return data, nil
}
