package messaging

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/keep-starknet-strange/zaun/core/felt"
)

const (
	EventLogMessageToL1                 = "LogMessageToL1"
	EventLogMessageToL2                 = "LogMessageToL2"
	EventConsumedMessageToL1            = "ConsumedMessageToL1"
	EventConsumedMessageToL2            = "ConsumedMessageToL2"
	EventMessageToL2CancellationStarted = "MessageToL2CancellationStarted"
	EventMessageToL2Canceled            = "MessageToL2Canceled"
)

// Events lists every messaging event name.
var Events = []string{
	EventLogMessageToL1,
	EventLogMessageToL2,
	EventConsumedMessageToL1,
	EventConsumedMessageToL2,
	EventMessageToL2CancellationStarted,
	EventMessageToL2Canceled,
}

// LogMessageToL1 is emitted when an L2->L1 message reaches the L1 mailbox with a state update.
type LogMessageToL1 struct {
	FromAddress *big.Int
	ToAddress   common.Address
	Payload     []*big.Int
	Raw         types.Log
}

func (e *LogMessageToL1) Message() (*MessageToL1, error) {
	return toMessageToL1(e.FromAddress, e.ToAddress, e.Payload)
}

// LogMessageToL2 is emitted by sendMessageToL2.
type LogMessageToL2 struct {
	FromAddress common.Address
	ToAddress   *big.Int
	Selector    *big.Int
	Payload     []*big.Int
	Nonce       *big.Int
	Fee         *big.Int
	Raw         types.Log
}

func (e *LogMessageToL2) Message() (*MessageToL2, error) {
	msg, err := toMessageToL2(e.FromAddress, e.ToAddress, e.Selector, e.Payload, e.Nonce)
	if err != nil {
		return nil, err
	}
	msg.Fee = e.Fee
	return msg, nil
}

// ConsumedMessageToL1 is emitted by consumeMessageFromL2.
type ConsumedMessageToL1 struct {
	FromAddress *big.Int
	ToAddress   common.Address
	Payload     []*big.Int
	Raw         types.Log
}

func (e *ConsumedMessageToL1) Message() (*MessageToL1, error) {
	return toMessageToL1(e.FromAddress, e.ToAddress, e.Payload)
}

// MessageToL2Event is the shape shared by ConsumedMessageToL2,
// MessageToL2CancellationStarted and MessageToL2Canceled.
type MessageToL2Event struct {
	FromAddress common.Address
	ToAddress   *big.Int
	Selector    *big.Int
	Payload     []*big.Int
	Nonce       *big.Int
	Raw         types.Log
}

func (e *MessageToL2Event) Message() (*MessageToL2, error) {
	return toMessageToL2(e.FromAddress, e.ToAddress, e.Selector, e.Payload, e.Nonce)
}

type (
	ConsumedMessageToL2            = MessageToL2Event
	MessageToL2CancellationStarted = MessageToL2Event
	MessageToL2Canceled            = MessageToL2Event
)

func toMessageToL2(from common.Address, to, selector *big.Int, payload []*big.Int,
	nonce *big.Int,
) (*MessageToL2, error) {
	toFelt, err := new(felt.Felt).SetBigInt(to)
	if err != nil {
		return nil, fmt.Errorf("toAddress: %w", err)
	}
	selectorFelt, err := new(felt.Felt).SetBigInt(selector)
	if err != nil {
		return nil, fmt.Errorf("selector: %w", err)
	}
	payloadFelts, err := felt.FromBigInts(payload)
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	n, overflow := uint256.FromBig(nonce)
	if overflow {
		return nil, fmt.Errorf("nonce %s overflows uint256", nonce)
	}
	return &MessageToL2{
		FromAddress: from,
		ToAddress:   toFelt,
		Selector:    selectorFelt,
		Payload:     payloadFelts,
		Nonce:       n,
	}, nil
}

func toMessageToL1(from *big.Int, to common.Address, payload []*big.Int) (*MessageToL1, error) {
	fromFelt, err := new(felt.Felt).SetBigInt(from)
	if err != nil {
		return nil, fmt.Errorf("fromAddress: %w", err)
	}
	payloadFelts, err := felt.FromBigInts(payload)
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	return &MessageToL1{
		FromAddress: fromFelt,
		ToAddress:   to,
		Payload:     payloadFelts,
	}, nil
}
