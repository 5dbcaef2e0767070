package felt

import "math/big"

// NewFromUint64 returns a new felt holding v.
func NewFromUint64(v uint64) *Felt {
	return new(Felt).SetUint64(v)
}

// NewFromString parses a decimal or 0x-prefixed hex string.
func NewFromString(s string) (*Felt, error) {
	return new(Felt).SetString(s)
}

// ToBigInts converts felts to the *big.Int form expected by uint256 ABI arguments.
func ToBigInts(felts []*Felt) []*big.Int {
	out := make([]*big.Int, len(felts))
	for i, f := range felts {
		out[i] = f.BigInt(new(big.Int))
	}
	return out
}

// FromBigInts converts uint256 ABI values to felts, failing on values outside the field.
func FromBigInts(values []*big.Int) ([]*Felt, error) {
	out := make([]*Felt, len(values))
	for i, v := range values {
		f, err := new(Felt).SetBigInt(v)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
