package validation

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	enclaveapi "github.com/cloudx-io/auctionledger/enclaveapi"
)

// pcrHexLen is the hex length of a SHA-384 PCR value.
const pcrHexLen = 96

// DebugPCRSet is the all-zero measurement reported by enclaves running in
// debug mode and by the local signer.
func DebugPCRSet() PCRSet {
	zero := strings.Repeat("0", pcrHexLen)
	return PCRSet{PCR0: zero, PCR1: zero, PCR2: zero, CommitHash: "debug"}
}

// LoadPCRsFromFile reads known PCR sets from a JSON config. Every set must
// carry three SHA-384 hex values.
func LoadPCRsFromFile(path string) ([]PCRSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read PCR config %s: %w", path, err)
	}

	var config PCRConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse PCR config %s: %w", path, err)
	}
	if len(config.PCRSets) == 0 {
		return nil, fmt.Errorf("PCR config %s has no pcr_sets", path)
	}

	for i, set := range config.PCRSets {
		if err := set.validate(); err != nil {
			return nil, fmt.Errorf("PCR set #%d: %w", i, err)
		}
	}
	return config.PCRSets, nil
}

func (s PCRSet) validate() error {
	for name, value := range map[string]string{"pcr0": s.PCR0, "pcr1": s.PCR1, "pcr2": s.PCR2} {
		if len(value) != pcrHexLen {
			return fmt.Errorf("%s must be %d hex characters, got %d", name, pcrHexLen, len(value))
		}
		if _, err := hex.DecodeString(value); err != nil {
			return fmt.Errorf("%s is not hex: %w", name, err)
		}
	}
	return nil
}

func (s PCRSet) matches(pcrs enclaveapi.PCRs) bool {
	return strings.EqualFold(pcrs.ImageFileHash, s.PCR0) &&
		strings.EqualFold(pcrs.KernelHash, s.PCR1) &&
		strings.EqualFold(pcrs.ApplicationHash, s.PCR2)
}

// ValidatePCRs returns the index of the first known set the measurements
// match. Hex case is ignored. Without a match it returns (false, -1).
func ValidatePCRs(pcrs enclaveapi.PCRs, knownSets []PCRSet) (bool, int) {
	for i, set := range knownSets {
		if set.matches(pcrs) {
			return true, i
		}
	}
	return false, -1
}
