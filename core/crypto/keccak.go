package crypto

import (
	"github.com/keep-starknet-strange/zaun/core/felt"
	"golang.org/x/crypto/sha3"
)

// Selectors of the default entry points are zero rather than the keccak of their name.
const (
	defaultEntryPointName   = "__default__"
	defaultL1EntryPointName = "__l1_default__"
)

// StarknetKeccak implements [StarkNet keccak]
//
// [StarkNet keccak]: https://docs.starknet.io/documentation/develop/Hashing/hash-functions/#starknet_keccak
func StarknetKeccak(b []byte) (*felt.Felt, error) {
	h := sha3.NewLegacyKeccak256()
	_, err := h.Write(b)
	if err != nil {
		return nil, err
	}
	d := h.Sum(nil)
	// Remove the first 6 bits from the first byte
	d[0] &= 3
	return new(felt.Felt).SetBytes(d), nil
}

// SelectorFromName returns the entry point selector for a Cairo function name.
func SelectorFromName(name string) (*felt.Felt, error) {
	if name == defaultEntryPointName || name == defaultL1EntryPointName {
		return new(felt.Felt), nil
	}
	return StarknetKeccak([]byte(name))
}

// Keccak256 hashes the concatenation of the given 32-byte words.
func Keccak256(words ...[32]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for i := range words {
		h.Write(words[i][:]) //nolint:errcheck
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}
