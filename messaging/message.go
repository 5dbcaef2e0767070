package messaging

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/core/crypto"
	"github.com/keep-starknet-strange/zaun/core/felt"
)

type Direction uint8

const (
	L1ToL2 Direction = iota + 1
	L2ToL1
)

func (d Direction) String() string {
	switch d {
	case L1ToL2:
		return "L1->L2"
	case L2ToL1:
		return "L2->L1"
	default:
		return "unknown"
	}
}

// Message is a directed cross-chain message identified by its hash.
type Message interface {
	Direction() Direction
	Hash() common.Hash
}

var (
	_ Message = (*MessageToL2)(nil)
	_ Message = (*MessageToL1)(nil)
)

// MessageToL2 is an L1->L2 message. Fee is carried as the transaction value and
// is not part of the identity. A nil Nonce hashes as zero.
type MessageToL2 struct {
	FromAddress common.Address
	ToAddress   *felt.Felt
	Selector    *felt.Felt
	Payload     []*felt.Felt
	Nonce       *uint256.Int
	Fee         *big.Int
}

func (m *MessageToL2) Direction() Direction { return L1ToL2 }

// Hash is keccak256 over the 32-byte words
// from | to | nonce | selector | len(payload) | payload...
func (m *MessageToL2) Hash() common.Hash {
	words := make([][32]byte, 0, 5+len(m.Payload))
	words = append(words,
		addressWord(m.FromAddress),
		feltWord(m.ToAddress),
		uintWord(m.Nonce),
		feltWord(m.Selector),
		lenWord(m.Payload))
	words = appendPayload(words, m.Payload)
	return crypto.Keccak256(words...)
}

// Validate reports missing fields as *contract.EncodingError.
func (m *MessageToL2) Validate() error {
	if m.ToAddress == nil || m.ToAddress.IsZero() {
		return &contract.EncodingError{Field: "toAddress", Err: ErrEmptyAddress}
	}
	if m.Selector == nil {
		return &contract.EncodingError{Field: "selector", Err: ErrNilSelector}
	}
	return validatePayload(m.Payload)
}

func (m *MessageToL2) String() string {
	return fmt.Sprintf("%s message %s from %s to %s selector %s nonce %s",
		m.Direction(), m.Hash().Hex(), m.FromAddress.Hex(), m.ToAddress.ShortString(), m.Selector.ShortString(), nonceString(m.Nonce))
}

// MessageToL1 is an L2->L1 message sent by an L2 contract to an L1 address.
type MessageToL1 struct {
	FromAddress *felt.Felt
	ToAddress   common.Address
	Payload     []*felt.Felt
}

func (m *MessageToL1) Direction() Direction { return L2ToL1 }

// Hash is keccak256 over the 32-byte words from | to | len(payload) | payload...
func (m *MessageToL1) Hash() common.Hash {
	words := make([][32]byte, 0, 3+len(m.Payload))
	words = append(words,
		feltWord(m.FromAddress),
		addressWord(m.ToAddress),
		lenWord(m.Payload))
	words = appendPayload(words, m.Payload)
	return crypto.Keccak256(words...)
}

func (m *MessageToL1) Validate() error {
	if m.FromAddress == nil || m.FromAddress.IsZero() {
		return &contract.EncodingError{Field: "fromAddress", Err: ErrEmptyAddress}
	}
	return validatePayload(m.Payload)
}

func (m *MessageToL1) String() string {
	return fmt.Sprintf("%s message %s from %s to %s",
		m.Direction(), m.Hash().Hex(), m.FromAddress.ShortString(), m.ToAddress.Hex())
}

func validatePayload(payload []*felt.Felt) error {
	for i, elem := range payload {
		if elem == nil {
			return &contract.EncodingError{Field: fmt.Sprintf("payload[%d]", i), Err: errors.New("nil element")}
		}
	}
	return nil
}

func addressWord(a common.Address) [32]byte {
	return common.BytesToHash(a.Bytes())
}

func feltWord(f *felt.Felt) [32]byte {
	if f == nil {
		return [32]byte{}
	}
	return f.Bytes()
}

func uintWord(v *uint256.Int) [32]byte {
	if v == nil {
		return [32]byte{}
	}
	return v.Bytes32()
}

func lenWord(payload []*felt.Felt) [32]byte {
	return uint256.NewInt(uint64(len(payload))).Bytes32()
}

func appendPayload(words [][32]byte, payload []*felt.Felt) [][32]byte {
	for _, elem := range payload {
		words = append(words, feltWord(elem))
	}
	return words
}

func nonceString(n *uint256.Int) string {
	if n == nil {
		return "0"
	}
	return n.Dec()
}
