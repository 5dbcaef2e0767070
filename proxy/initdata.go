package proxy

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/keep-starknet-strange/zaun/contract"
)

const WordSize = 32

var (
	uint256Type, _ = abi.NewType("uint256", "", nil)
	int256Type, _  = abi.NewType("int256", "", nil)
	addressType, _ = abi.NewType("address", "", nil)

	errWrongLength = errors.New("wrong length")
)

// field is one positional word of an init payload. ptr is a **big.Int or a *common.Address.
type field struct {
	name string
	typ  abi.Type
	ptr  any
}

// InitData is the implementation-specific tail of an InitializeData payload.
// Every field is a single 32-byte word.
type InitData interface {
	fields() []field
}

// StarknetState is the initial state the core contract starts from.
type StarknetState struct {
	StateRoot *big.Int
	// Signed: -1 means no block has been applied yet.
	BlockNumber *big.Int
	BlockHash   *big.Int
}

func (s *StarknetState) fields() []field {
	return []field{
		{name: "state_root", typ: uint256Type, ptr: &s.StateRoot},
		{name: "block_number", typ: int256Type, ptr: &s.BlockNumber},
		{name: "block_hash", typ: uint256Type, ptr: &s.BlockHash},
	}
}

// CoreContractInitData is the init payload of the Starknet core contract
// implementation: 6 words.
type CoreContractInitData struct {
	ProgramHash     *big.Int
	VerifierAddress common.Address
	ConfigHash      *big.Int
	InitialState    StarknetState
}

func (d *CoreContractInitData) fields() []field {
	return append([]field{
		{name: "program_hash", typ: uint256Type, ptr: &d.ProgramHash},
		{name: "verifier_address", typ: addressType, ptr: &d.VerifierAddress},
		{name: "config_hash", typ: uint256Type, ptr: &d.ConfigHash},
	}, d.InitialState.fields()...)
}

// AggregatorInitData is the init payload of core contract implementations that
// also verify an aggregator program: 7 words.
type AggregatorInitData struct {
	ProgramHash           *big.Int
	AggregatorProgramHash *big.Int
	VerifierAddress       common.Address
	ConfigHash            *big.Int
	InitialState          StarknetState
}

func (d *AggregatorInitData) fields() []field {
	return append([]field{
		{name: "program_hash", typ: uint256Type, ptr: &d.ProgramHash},
		{name: "aggregator_program_hash", typ: uint256Type, ptr: &d.AggregatorProgramHash},
		{name: "verifier_address", typ: addressType, ptr: &d.VerifierAddress},
		{name: "config_hash", typ: uint256Type, ptr: &d.ConfigHash},
	}, d.InitialState.fields()...)
}

// InitializeData is the payload the proxy hands to the implementation's
// initialize entry point. The number of sub-contract addresses is fixed by the
// implementation and passed to Encode and Decode explicitly.
type InitializeData struct {
	SubContractAddresses []common.Address
	// Zero means no external initializer.
	EICAddress common.Address
	InitData   InitData
}

func (d *InitializeData) fields() []field {
	out := make([]field, 0, len(d.SubContractAddresses)+1)
	for i := range d.SubContractAddresses {
		out = append(out, field{
			name: fmt.Sprintf("sub_contract_addresses[%d]", i),
			typ:  addressType,
			ptr:  &d.SubContractAddresses[i],
		})
	}
	out = append(out, field{name: "eic_address", typ: addressType, ptr: &d.EICAddress})
	return append(out, d.InitData.fields()...)
}

// EncodedLen is the payload size for n sub-contracts and the given init data layout.
func EncodedLen(n int, initData InitData) int {
	return (n + 1 + len(initData.fields())) * WordSize
}

// Encode serialises d as consecutive 32-byte words: each sub-contract address,
// the EIC address, then every init data field in declaration order. There are
// no length prefixes or offsets. Nil integers encode as zero.
func Encode(n int, d *InitializeData) ([]byte, error) {
	if d.InitData == nil {
		return nil, &contract.EncodingError{Field: "init_data", Err: errors.New("missing")}
	}
	if len(d.SubContractAddresses) != n {
		return nil, &contract.EncodingError{
			Field: "sub_contract_addresses",
			Err:   fmt.Errorf("%w: have %d, want %d", errWrongLength, len(d.SubContractAddresses), n),
		}
	}

	fields := d.fields()
	args := make(abi.Arguments, len(fields))
	values := make([]any, len(fields))
	for i, f := range fields {
		args[i] = abi.Argument{Name: f.name, Type: f.typ}
		value, err := f.value()
		if err != nil {
			return nil, &contract.EncodingError{Field: f.name, Err: err}
		}
		values[i] = value
	}

	data, err := args.Pack(values...)
	if err != nil {
		return nil, &contract.EncodingError{Field: "initialize_data", Err: err}
	}
	return data, nil
}

// Decode parses data produced by Encode into a payload with n sub-contracts
// and init data written into initData.
func Decode(n int, data []byte, initData InitData) (*InitializeData, error) {
	if initData == nil {
		return nil, &contract.EncodingError{Field: "init_data", Err: errors.New("missing")}
	}
	if n < 0 {
		return nil, &contract.EncodingError{Field: "sub_contract_addresses", Err: errWrongLength}
	}
	// n is compared in words so a huge count cannot overflow the byte size
	fixed := 1 + len(initData.fields())
	if len(data)%WordSize != 0 || len(data)/WordSize-fixed != n {
		return nil, &contract.EncodingError{
			Field: "initialize_data",
			Err:   fmt.Errorf("%w: have %d bytes, want %d words", errWrongLength, len(data), uint64(n)+uint64(fixed)),
		}
	}
	d := &InitializeData{
		SubContractAddresses: make([]common.Address, n),
		InitData:             initData,
	}
	fields := d.fields()

	args := make(abi.Arguments, len(fields))
	for i, f := range fields {
		args[i] = abi.Argument{Name: f.name, Type: f.typ}
	}
	values, err := args.Unpack(data)
	if err != nil {
		return nil, &contract.EncodingError{Field: "initialize_data", Err: err}
	}
	for i, f := range fields {
		if err := f.set(values[i]); err != nil {
			return nil, &contract.EncodingError{Field: f.name, Err: err}
		}
	}
	return d, nil
}

var (
	minInt256 = new(big.Int).Neg(math.BigPow(2, 255))
	maxInt256 = new(big.Int).Sub(math.BigPow(2, 255), big.NewInt(1))
)

func (f field) value() (any, error) {
	switch ptr := f.ptr.(type) {
	case *common.Address:
		return *ptr, nil
	case **big.Int:
		v := *ptr
		if v == nil {
			return new(big.Int), nil
		}
		switch f.typ.T {
		case abi.IntTy:
			if v.Cmp(minInt256) < 0 || v.Cmp(maxInt256) > 0 {
				return nil, fmt.Errorf("%s does not fit int256", v)
			}
		default:
			if v.Sign() < 0 || v.BitLen() > 256 {
				return nil, fmt.Errorf("%s does not fit uint256", v)
			}
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported field type %T", f.ptr)
	}
}

func (f field) set(value any) error {
	switch ptr := f.ptr.(type) {
	case *common.Address:
		v, ok := value.(common.Address)
		if !ok {
			return fmt.Errorf("unexpected %T", value)
		}
		*ptr = v
	case **big.Int:
		v, ok := value.(*big.Int)
		if !ok {
			return fmt.Errorf("unexpected %T", value)
		}
		*ptr = v
	default:
		return fmt.Errorf("unsupported field type %T", f.ptr)
	}
	return nil
}
