// Package appchain drives the messaging entry points of an appchain core
// contract deployed on Starknet, which settles an L3 the way the L1 core
// contract settles Starknet.
package appchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/keep-starknet-strange/zaun/core/felt"
	"github.com/keep-starknet-strange/zaun/utils"
)

//go:generate mockgen -destination=../mocks/mock_appchain.go -package=mocks github.com/keep-starknet-strange/zaun/appchain Invoker

// Invoker is the Starknet account and provider the client runs on.
type Invoker interface {
	// Invoke submits a transaction calling entryPoint and waits until it is
	// accepted, returning its hash.
	Invoke(ctx context.Context, contractAddress, entryPoint *felt.Felt, calldata []*felt.Felt) (*felt.Felt, error)
	Call(ctx context.Context, contractAddress, entryPoint *felt.Felt, calldata []*felt.Felt) ([]*felt.Felt, error)
}

var (
	SendMessageToAppchain      = mustSelector("send_message_to_appchain")
	ConsumeMessageFromAppchain = mustSelector("consume_message_from_appchain")
	StartMessageCancellation   = mustSelector("start_message_cancellation")
	CancelMessage              = mustSelector("cancel_message")
	SnToAppchainMessages       = mustSelector("sn_to_appchain_messages")
	AppchainToSnMessages       = mustSelector("appchain_to_sn_messages")
)

var ErrUnexpectedResult = errors.New("unexpected call result")

type Client struct {
	address *felt.Felt
	invoker Invoker
	log     utils.SimpleLogger
}

func New(address *felt.Felt, invoker Invoker, log utils.SimpleLogger) *Client {
	return &Client{address: address, invoker: invoker, log: log}
}

func (c *Client) Address() *felt.Felt {
	return c.address
}

// SendMessageToAppchain queues payload for the selector of an appchain contract.
func (c *Client) SendMessageToAppchain(ctx context.Context, to, selector *felt.Felt, payload []*felt.Felt) (*felt.Felt, error) {
	calldata, err := new(Calldata).
		Felt("to_address", to).
		Felt("selector", selector).
		Span("payload", payload).
		Build()
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, "send_message_to_appchain", SendMessageToAppchain, calldata)
}

// ConsumeMessageFromAppchain consumes a settled appchain message addressed to the caller.
func (c *Client) ConsumeMessageFromAppchain(ctx context.Context, from *felt.Felt, payload []*felt.Felt) (*felt.Felt, error) {
	calldata, err := new(Calldata).
		Felt("from_address", from).
		Span("payload", payload).
		Build()
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, "consume_message_from_appchain", ConsumeMessageFromAppchain, calldata)
}

func (c *Client) StartMessageCancellation(ctx context.Context, to, selector *felt.Felt, payload []*felt.Felt,
	nonce *felt.Felt,
) (*felt.Felt, error) {
	calldata, err := messageCalldata(to, selector, payload, nonce)
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, "start_message_cancellation", StartMessageCancellation, calldata)
}

// CancelMessage cancels a message once its cancellation delay has elapsed.
func (c *Client) CancelMessage(ctx context.Context, to, selector *felt.Felt, payload []*felt.Felt,
	nonce *felt.Felt,
) (*felt.Felt, error) {
	calldata, err := messageCalldata(to, selector, payload, nonce)
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, "cancel_message", CancelMessage, calldata)
}

func messageCalldata(to, selector *felt.Felt, payload []*felt.Felt, nonce *felt.Felt) ([]*felt.Felt, error) {
	return new(Calldata).
		Felt("to_address", to).
		Felt("selector", selector).
		Span("payload", payload).
		Felt("nonce", nonce).
		Build()
}

func (c *Client) invoke(ctx context.Context, name string, entryPoint *felt.Felt, calldata []*felt.Felt) (*felt.Felt, error) {
	txHash, err := c.invoker.Invoke(ctx, c.address, entryPoint, calldata)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	c.log.Infow("Appchain messaging call accepted", "entryPoint", name, "tx", txHash.ShortString())
	return txHash, nil
}

// ToAppchainState is the status of a Starknet -> appchain message.
type ToAppchainState uint8

const (
	NotSent ToAppchainState = iota
	Sealed
	Cancelled
	PendingOnAppchain
)

func (s ToAppchainState) String() string {
	switch s {
	case NotSent:
		return "not sent"
	case Sealed:
		return "sealed"
	case Cancelled:
		return "cancelled"
	case PendingOnAppchain:
		return "pending"
	default:
		return "unknown"
	}
}

type ToAppchainStatus struct {
	State ToAppchainState
	// Set while pending.
	Nonce *felt.Felt
}

// ToAppchainStatus reads the status of the message with the given hash.
func (c *Client) ToAppchainStatus(ctx context.Context, hash *felt.Felt) (*ToAppchainStatus, error) {
	variant, value, err := c.callEnum(ctx, "sn_to_appchain_messages", SnToAppchainMessages, hash)
	if err != nil {
		return nil, err
	}
	switch state := ToAppchainState(variant); state {
	case NotSent, Sealed, Cancelled:
		return &ToAppchainStatus{State: state}, nil
	case PendingOnAppchain:
		if value == nil {
			return nil, fmt.Errorf("sn_to_appchain_messages: pending without nonce: %w", ErrUnexpectedResult)
		}
		return &ToAppchainStatus{State: state, Nonce: value}, nil
	default:
		return nil, fmt.Errorf("sn_to_appchain_messages: variant %d: %w", variant, ErrUnexpectedResult)
	}
}

// ToStarknetPending returns how many copies of an appchain -> Starknet message
// are ready to consume.
func (c *Client) ToStarknetPending(ctx context.Context, hash *felt.Felt) (uint64, error) {
	variant, value, err := c.callEnum(ctx, "appchain_to_sn_messages", AppchainToSnMessages, hash)
	if err != nil {
		return 0, err
	}
	switch variant {
	case 0:
		return 0, nil
	case 1:
		if value == nil {
			return 0, fmt.Errorf("appchain_to_sn_messages: ready without count: %w", ErrUnexpectedResult)
		}
		count, err := feltToUint64(value)
		if err != nil {
			return 0, fmt.Errorf("appchain_to_sn_messages: %w", err)
		}
		return count, nil
	default:
		return 0, fmt.Errorf("appchain_to_sn_messages: variant %d: %w", variant, ErrUnexpectedResult)
	}
}

// callEnum decodes a Cairo enum result: the variant index, then its payload if any.
func (c *Client) callEnum(ctx context.Context, name string, entryPoint, hash *felt.Felt) (uint64, *felt.Felt, error) {
	calldata, err := new(Calldata).Felt("message_hash", hash).Build()
	if err != nil {
		return 0, nil, err
	}
	result, err := c.invoker.Call(ctx, c.address, entryPoint, calldata)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(result) == 0 || len(result) > 2 {
		return 0, nil, fmt.Errorf("%s: %d felts: %w", name, len(result), ErrUnexpectedResult)
	}
	variant, err := feltToUint64(result[0])
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(result) == 1 {
		return variant, nil, nil
	}
	return variant, result[1], nil
}

func feltToUint64(f *felt.Felt) (uint64, error) {
	b := f.Bytes()
	v := new(uint256.Int).SetBytes32(b[:])
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s does not fit uint64: %w", f.ShortString(), ErrUnexpectedResult)
	}
	return v.Uint64(), nil
}
