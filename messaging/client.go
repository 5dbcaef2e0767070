// Package messaging drives the Starknet L1<->L2 message mailbox held by the
// core contract on L1.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/core/felt"
	"github.com/keep-starknet-strange/zaun/l1"
	"github.com/keep-starknet-strange/zaun/utils"
)

// Submission is the confirmed outcome of one mailbox transaction.
type Submission struct {
	MessageHash common.Hash
	Receipt     *types.Receipt
}

// SentMessage is a confirmed sendMessageToL2. Message carries the nonce and
// fee assigned on-chain.
type SentMessage struct {
	Submission
	Message *MessageToL2
}

// Client issues the four mailbox operations and reads mailbox state. It keeps
// no state between calls; the chain is the only source of truth.
type Client struct {
	contract *contract.Contract
	log      utils.SimpleLogger
}

func New(address common.Address, backend l1.Backend, log utils.SimpleLogger) *Client {
	return NewWithContract(contract.New(Name, address, parsedABI, backend).WithLogger(log), log)
}

// NewWithContract shares an existing binding, which must carry the messaging ABI.
func NewWithContract(c *contract.Contract, log utils.SimpleLogger) *Client {
	return &Client{contract: c, log: log}
}

func (c *Client) Contract() *contract.Contract {
	return c.contract
}

func (c *Client) Address() common.Address {
	return c.contract.Address()
}

// Sender is the account whose messages this client sends, cancels and consumes.
func (c *Client) Sender() common.Address {
	return c.contract.Backend().From()
}

type options struct {
	preflight bool
}

type Option func(*options)

// SkipPreflight submits without the advisory local read of mailbox state.
func SkipPreflight() Option {
	return func(o *options) { o.preflight = false }
}

func buildOptions(opts []Option) options {
	o := options{preflight: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SendMessageToL2 sends payload to the selector of an L2 contract, paying fee wei.
// The returned message carries the nonce assigned by the contract.
func (c *Client) SendMessageToL2(ctx context.Context, to, selector *felt.Felt, payload []*felt.Felt,
	fee *big.Int, opts ...Option,
) (*SentMessage, error) {
	requested := &MessageToL2{
		FromAddress: c.Sender(),
		ToAddress:   to,
		Selector:    selector,
		Payload:     payload,
		Fee:         fee,
	}
	if err := requested.Validate(); err != nil {
		return nil, err
	}
	if fee == nil || fee.Sign() <= 0 {
		return nil, &contract.EncodingError{Field: "fee", Err: ErrFeeRequired}
	}
	if buildOptions(opts).preflight {
		maxFee, err := c.MaxL1MsgFee(ctx)
		switch {
		case errors.Is(err, l1.ErrReverted):
			c.log.Debugw("Skipping L1 message fee bound check", "err", err)
		case err != nil:
			return nil, err
		case fee.Cmp(maxFee) > 0:
			c.log.Warnw("L1 message fee above the contract maximum", "fee", fee, "max", maxFee)
			return nil, &contract.PreconditionError{Op: "sendMessageToL2", Err: ErrMaxFeeExceeded}
		}
	}

	receipt, err := c.contract.Transact(ctx, "sendMessageToL2", fee,
		to.BigInt(new(big.Int)), selector.BigInt(new(big.Int)), felt.ToBigInts(payload))
	if err != nil {
		return nil, err
	}

	sent, err := c.findSent(receipt, requested)
	if err != nil {
		return nil, err
	}
	c.log.Infow("Sent message to L2",
		"hash", sent.MessageHash.Hex(),
		"nonce", nonceString(sent.Message.Nonce),
		"to", to.ShortString(),
		"selector", selector.ShortString(),
		"tx", receipt.TxHash.Hex())
	return sent, nil
}

// findSent locates the LogMessageToL2 of requested in receipt. The nonce comes
// from the event since it is assigned on-chain.
func (c *Client) findSent(receipt *types.Receipt, requested *MessageToL2) (*SentMessage, error) {
	logs, err := contract.ParseReceipt[LogMessageToL2](c.contract, receipt, EventLogMessageToL2)
	if err != nil {
		return nil, err
	}
	for _, log := range logs {
		msg, err := log.Message()
		if err != nil {
			return nil, err
		}
		if msg.FromAddress != requested.FromAddress || !msg.ToAddress.Equal(requested.ToAddress) ||
			!msg.Selector.Equal(requested.Selector) || !slices.EqualFunc(msg.Payload, requested.Payload, feltsEqual) {
			continue
		}
		return &SentMessage{
			Submission: Submission{MessageHash: msg.Hash(), Receipt: receipt},
			Message:    msg,
		}, nil
	}
	return nil, fmt.Errorf("tx %s: %w", receipt.TxHash.Hex(), errMissingSendEvent)
}

// ConsumeMessageFromL2 consumes an L2->L1 message addressed to the sender. A
// missing or already consumed message is rejected with ErrInvalidMessageToConsume;
// use L2ToL1Messages to tell the two apart before retrying.
func (c *Client) ConsumeMessageFromL2(ctx context.Context, from *felt.Felt, payload []*felt.Felt) (*Submission, error) {
	msg := &MessageToL1{FromAddress: from, ToAddress: c.Sender(), Payload: payload}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	receipt, err := c.contract.Transact(ctx, "consumeMessageFromL2", nil,
		from.BigInt(new(big.Int)), felt.ToBigInts(payload))
	if err != nil {
		return nil, err
	}
	hash := msg.Hash()
	c.log.Infow("Consumed message from L2", "hash", hash.Hex(), "from", from.ShortString(), "tx", receipt.TxHash.Hex())
	return &Submission{MessageHash: hash, Receipt: receipt}, nil
}

// StartCancellation requests cancellation of a pending L1->L2 message sent by
// the sender. It becomes cancelable once MessageCancellationDelay has elapsed
// on-chain.
func (c *Client) StartCancellation(ctx context.Context, to, selector *felt.Felt, payload []*felt.Felt,
	nonce *uint256.Int, opts ...Option,
) (*Submission, error) {
	msg := c.ownMessage(to, selector, payload, nonce)
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if buildOptions(opts).preflight {
		status, err := c.Status(ctx, msg)
		if err != nil {
			return nil, err
		}
		if status.State == NotPending {
			return nil, &contract.PreconditionError{Op: "startL1ToL2MessageCancellation", Err: ErrNoMessageToCancel}
		}
	}
	return c.transactMessageToL2(ctx, "startL1ToL2MessageCancellation", msg)
}

// FinalizeCancellation cancels a message whose cancellation delay has elapsed.
// It races with consumption on L2: whichever transaction lands first wins.
func (c *Client) FinalizeCancellation(ctx context.Context, to, selector *felt.Felt, payload []*felt.Felt,
	nonce *uint256.Int, opts ...Option,
) (*Submission, error) {
	msg := c.ownMessage(to, selector, payload, nonce)
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if buildOptions(opts).preflight {
		status, err := c.Status(ctx, msg)
		if err != nil {
			return nil, err
		}
		var reason error
		switch status.State {
		case NotPending:
			reason = ErrNoMessageToCancel
		case Pending:
			reason = ErrCancellationNotRequested
		case CancellationStarted:
			reason = ErrCancellationNotAllowedYet
			if status.CancelAllowedTimeOverflow {
				reason = ErrCancelAllowedTimeOverflow
			}
		}
		if reason != nil {
			c.log.Warnw("Message cancellation not finalizable", "hash", status.Hash.Hex(), "state", status.State)
			return nil, &contract.PreconditionError{Op: "cancelL1ToL2Message", Err: reason}
		}
	}
	return c.transactMessageToL2(ctx, "cancelL1ToL2Message", msg)
}

func (c *Client) ownMessage(to, selector *felt.Felt, payload []*felt.Felt, nonce *uint256.Int) *MessageToL2 {
	return &MessageToL2{
		FromAddress: c.Sender(),
		ToAddress:   to,
		Selector:    selector,
		Payload:     payload,
		Nonce:       nonce,
	}
}

func (c *Client) transactMessageToL2(ctx context.Context, method string, msg *MessageToL2) (*Submission, error) {
	nonce := new(big.Int)
	if msg.Nonce != nil {
		nonce = msg.Nonce.ToBig()
	}
	receipt, err := c.contract.Transact(ctx, method, nil,
		msg.ToAddress.BigInt(new(big.Int)), msg.Selector.BigInt(new(big.Int)), felt.ToBigInts(msg.Payload), nonce)
	if err != nil {
		return nil, err
	}
	hash := msg.Hash()
	c.log.Infow("Message cancellation step confirmed", "method", method, "hash", hash.Hex(), "tx", receipt.TxHash.Hex())
	return &Submission{MessageHash: hash, Receipt: receipt}, nil
}

// L1ToL2Messages returns the raw mailbox value of an L1->L2 message: zero when
// nothing is pending, otherwise the paid fee plus one.
func (c *Client) L1ToL2Messages(ctx context.Context, hash common.Hash) (*big.Int, error) {
	return contract.CallOne[*big.Int](ctx, c.contract, "l1ToL2Messages", hash)
}

// L2ToL1Messages returns how many copies of an L2->L1 message are ready to consume.
func (c *Client) L2ToL1Messages(ctx context.Context, hash common.Hash) (*big.Int, error) {
	return contract.CallOne[*big.Int](ctx, c.contract, "l2ToL1Messages", hash)
}

// L1ToL2MessageCancellations returns the timestamp cancellation was requested at, or zero.
func (c *Client) L1ToL2MessageCancellations(ctx context.Context, hash common.Hash) (*big.Int, error) {
	return contract.CallOne[*big.Int](ctx, c.contract, "l1ToL2MessageCancellations", hash)
}

// MessageCancellationDelay is in seconds.
func (c *Client) MessageCancellationDelay(ctx context.Context) (*big.Int, error) {
	return contract.CallOne[*big.Int](ctx, c.contract, "messageCancellationDelay")
}

// L1ToL2MessageNonce is the nonce the next sent message will get.
func (c *Client) L1ToL2MessageNonce(ctx context.Context) (*big.Int, error) {
	return contract.CallOne[*big.Int](ctx, c.contract, "l1ToL2MessageNonce")
}

func (c *Client) MaxL1MsgFee(ctx context.Context) (*big.Int, error) {
	return contract.CallOne[*big.Int](ctx, c.contract, "getMaxL1MsgFee")
}

func feltsEqual(a, b *felt.Felt) bool {
	return a.Equal(b)
}

func feltOrZero(f *felt.Felt) *big.Int {
	if f == nil {
		return new(big.Int)
	}
	return f.BigInt(new(big.Int))
}
