package felt

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
)

type Felt struct {
	val fp.Element
}

const (
	Limbs = fp.Limbs // number of 64 bits words needed to represent a Element
	Bits  = fp.Bits  // number of bits needed to represent a Element
	Bytes = fp.Bytes // number of bytes needed to represent a Element
)

const (
	Base10 = 10
	Base16 = 16
)

// Zero felt constant
var Zero = Felt{}

var ErrOutOfRange = errors.New("value is not a canonical field element")

var bigIntPool = sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func NewFelt(element *fp.Element) *Felt {
	return &Felt{
		val: *element,
	}
}

// Impl returns the underlying field element type
func (z *Felt) Impl() *fp.Element {
	return &z.val
}

// UnmarshalJSON accepts numbers and strings as input.
// See Element.SetString for valid prefixes (0x, 0b, ...).
// If there is an error, we try to explicitly unmarshal from hex before
// returning an error. This implementation is taken from [gnark-crypto].
//
// [gnark-crypto]: https://github.com/ConsenSys/gnark-crypto/blob/9fd0a7de2044f088a29cfac373da73d868230148/ecc/stark-curve/fp/element.go#L1028-L1056
func (z *Felt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) > fp.Bits*3 {
		return errors.New("value too large (max = Element.Bits * 3)")
	}

	// we accept numbers and strings, remove leading and trailing quotes if any
	if len(s) > 0 && s[0] == '"' {
		s = s[1:]
	}
	if len(s) > 0 && s[len(s)-1] == '"' {
		s = s[:len(s)-1]
	}

	// get temporary big int from the pool
	vv := bigIntPool.Get().(*big.Int)
	defer bigIntPool.Put(vv)

	if _, ok := vv.SetString(s, 0); !ok {
		if _, ok := vv.SetString(s, 16); !ok {
			return errors.New("can't parse into a big.Int: " + s)
		}
	}

	z.val.SetBigInt(vv)
	return nil
}

// MarshalJSON forwards the call to underlying field element implementation
func (z *Felt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + z.String() + `"`), nil
}

// UnmarshalText lets felts be decoded from flags, YAML and mapstructure hooks.
func (z *Felt) UnmarshalText(text []byte) error {
	_, err := z.SetString(string(text))
	return err
}

func (z *Felt) MarshalText() ([]byte, error) {
	return []byte(z.String()), nil
}

// SetBytes forwards the call to underlying field element implementation.
// Values larger than the modulus are reduced.
func (z *Felt) SetBytes(e []byte) *Felt {
	z.val.SetBytes(e)
	return z
}

// SetBytesCanonical sets z to the big-endian value of data, which is left-padded
// to 32 bytes. It fails instead of reducing when the value is not below the modulus.
func (z *Felt) SetBytesCanonical(data []byte) error {
	if len(data) > Bytes {
		return ErrOutOfRange
	}
	vv := bigIntPool.Get().(*big.Int)
	defer bigIntPool.Put(vv)

	vv.SetBytes(data)
	if vv.Cmp(fp.Modulus()) >= 0 {
		return ErrOutOfRange
	}
	z.val.SetBigInt(vv)
	return nil
}

// SetBigInt sets z to v, failing if v is negative or not below the modulus.
func (z *Felt) SetBigInt(v *big.Int) (*Felt, error) {
	if v.Sign() < 0 || v.Cmp(fp.Modulus()) >= 0 {
		return nil, fmt.Errorf("%s: %w", v.String(), ErrOutOfRange)
	}
	z.val.SetBigInt(v)
	return z, nil
}

// BigInt writes the regular (non-Montgomery) value of z into res and returns it
func (z *Felt) BigInt(res *big.Int) *big.Int {
	return z.val.BigInt(res)
}

// SetString forwards the call to underlying field element implementation
func (z *Felt) SetString(number string) (*Felt, error) {
	_, err := z.val.SetString(number)
	return z, err
}

// SetUint64 forwards the call to underlying field element implementation
func (z *Felt) SetUint64(v uint64) *Felt {
	z.val.SetUint64(v)
	return z
}

// SetRandom forwards the call to underlying field element implementation
func (z *Felt) SetRandom() (*Felt, error) {
	_, err := z.val.SetRandom()
	return z, err
}

// Set copies x into z
func (z *Felt) Set(x *Felt) *Felt {
	z.val.Set(&x.val)
	return z
}

// String returns the 0x-prefixed hexadecimal representation of z
func (z *Felt) String() string {
	return "0x" + z.val.Text(Base16)
}

// ShortString returns the hex representation of z, eliding the middle digits when long
func (z *Felt) ShortString() string {
	hex := z.val.Text(Base16)
	if len(hex) <= 8 { //nolint:mnd
		return "0x" + hex
	}
	return fmt.Sprintf("0x%s...%s", hex[:4], hex[len(hex)-4:])
}

// Text forwards the call to underlying field element implementation
func (z *Felt) Text(base int) string {
	return z.val.Text(base)
}

// Equal forwards the call to underlying field element implementation
func (z *Felt) Equal(x *Felt) bool {
	return z.val.Equal(&x.val)
}

// Marshal forwards the call to underlying field element implementation
func (z *Felt) Marshal() []byte {
	return z.val.Marshal()
}

// Bytes forwards the call to underlying field element implementation
func (z *Felt) Bytes() [32]byte {
	return z.val.Bytes()
}

// IsOne forwards the call to underlying field element implementation
func (z *Felt) IsOne() bool {
	return z.val.IsOne()
}

// IsZero forwards the call to underlying field element implementation
func (z *Felt) IsZero() bool {
	return z.val.IsZero()
}

// Add forwards the call to underlying field element implementation
func (z *Felt) Add(x, y *Felt) *Felt {
	z.val.Add(&x.val, &y.val)
	return z
}

// Sub forwards the call to underlying field element implementation
func (z *Felt) Sub(x, y *Felt) *Felt {
	z.val.Sub(&x.val, &y.val)
	return z
}

// Cmp forwards the call to underlying field element implementation
func (z *Felt) Cmp(x *Felt) int {
	return z.val.Cmp(&x.val)
}
