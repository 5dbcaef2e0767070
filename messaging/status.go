package messaging

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/keep-starknet-strange/zaun/l1"
	"github.com/sourcegraph/conc/pool"
)

// State of an L1->L2 message.
type State uint8

const (
	// NotPending means the mailbox holds no entry: the message was never sent,
	// was consumed on L2 or was cancelled. Outcome tells these apart.
	NotPending State = iota
	Pending
	CancellationStarted
	Cancelable
	Unsent
	Consumed
	Canceled
)

func (s State) String() string {
	switch s {
	case NotPending:
		return "not pending"
	case Pending:
		return "pending"
	case CancellationStarted:
		return "cancellation started"
	case Cancelable:
		return "cancelable"
	case Unsent:
		return "unsent"
	case Consumed:
		return "consumed"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further mailbox transition is possible.
func (s State) Terminal() bool {
	return s == Consumed || s == Canceled
}

// Status is a snapshot of the mailbox for one L1->L2 message. Timestamps are
// L1 block timestamps in seconds.
type Status struct {
	Hash  common.Hash
	State State
	// Raw mailbox value, fee+1 while pending.
	MailboxValue *big.Int
	// Zero when no cancellation was requested.
	CancellationRequestedAt uint64
	// Saturates at math.MaxUint64.
	CancellationDelay uint64
	// Zero when no cancellation was requested. math.MaxUint64 when the delay
	// puts it beyond any uint64 timestamp.
	CancelableAt uint64
	// Set when request time plus delay overflows uint256, so the cancellation
	// can never be finalized.
	CancelAllowedTimeOverflow bool
	// Timestamp of the latest L1 block the status was computed against.
	ChainTime uint64
}

// Status reads the mailbox entry, the cancellation record, the cancellation
// delay and the latest block timestamp concurrently and derives the state.
// Whether the delay has elapsed is decided by chain time, never the local clock.
func (c *Client) Status(ctx context.Context, msg *MessageToL2) (*Status, error) {
	hash := msg.Hash()
	var (
		value, requestedAt, delay *big.Int
		chainTime                 uint64
	)

	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		value, err = c.L1ToL2Messages(ctx, hash)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		requestedAt, err = c.L1ToL2MessageCancellations(ctx, hash)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		delay, err = c.MessageCancellationDelay(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		head, err := c.contract.Backend().HeaderByNumber(ctx, nil)
		if err != nil {
			return fmt.Errorf("latest L1 header: %w", err)
		}
		chainTime = head.Time
		return nil
	})
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("status of %s: %w", hash.Hex(), err)
	}
	return deriveStatus(hash, value, requestedAt, delay, chainTime), nil
}

func deriveStatus(hash common.Hash, value, requestedAt, delay *big.Int, chainTime uint64) *Status {
	status := &Status{
		Hash:              hash,
		MailboxValue:      value,
		CancellationDelay: saturateUint64(delay),
		ChainTime:         chainTime,
	}
	switch {
	case value.Sign() == 0:
		status.State = NotPending
	case requestedAt.Sign() == 0:
		status.State = Pending
	default:
		status.State = CancellationStarted
		status.CancellationRequestedAt = saturateUint64(requestedAt)
		start, _ := uint256.FromBig(requestedAt)
		wait, _ := uint256.FromBig(delay)
		allowedAt, overflow := new(uint256.Int).AddOverflow(start, wait)
		if overflow {
			// cancelL1ToL2Message reverts with CANCEL_ALLOWED_TIME_OVERFLOW
			status.CancelAllowedTimeOverflow = true
			status.CancelableAt = math.MaxUint64
			return status
		}
		if !allowedAt.IsUint64() {
			status.CancelableAt = math.MaxUint64
			return status
		}
		status.CancelableAt = allowedAt.Uint64()
		if chainTime >= status.CancelableAt {
			status.State = Cancelable
		}
	}
	return status
}

func saturateUint64(v *big.Int) uint64 {
	if v.IsUint64() {
		return v.Uint64()
	}
	return math.MaxUint64
}

// L2ToL1Pending reports how many copies of msg are waiting to be consumed on L1.
func (c *Client) L2ToL1Pending(ctx context.Context, msg *MessageToL1) (uint64, error) {
	count, err := c.L2ToL1Messages(ctx, msg.Hash())
	if err != nil {
		return 0, err
	}
	return count.Uint64(), nil
}

// Resolution is the terminal fate of an L1->L2 message found in the logs.
type Resolution struct {
	State       State
	TxHash      common.Hash
	BlockNumber uint64
	// BlockNumber is at or below the finalised L1 head. Always false when the
	// backend is not a FinalityReader.
	Finalized bool
}

// FinalityReader is implemented by backends that know the finalised L1 head.
type FinalityReader interface {
	FinalisedHeight(ctx context.Context) (uint64, error)
}

var _ FinalityReader = (*l1.EthClient)(nil)

// Outcome searches the consumption and cancellation logs from fromBlock on to
// tell which of consumption and cancellation won. Messages still in the mailbox
// resolve to their mailbox state with no transaction.
func (c *Client) Outcome(ctx context.Context, msg *MessageToL2, fromBlock uint64) (*Resolution, error) {
	status, err := c.Status(ctx, msg)
	if err != nil {
		return nil, err
	}
	if status.State != NotPending {
		return &Resolution{State: status.State}, nil
	}

	hash := msg.Hash()
	topics := [][]any{
		{msg.FromAddress},
		{feltOrZero(msg.ToAddress)},
		{feltOrZero(msg.Selector)},
	}
	for _, candidate := range []struct {
		event string
		state State
	}{
		{EventConsumedMessageToL2, Consumed},
		{EventMessageToL2Canceled, Canceled},
	} {
		logs, err := c.contract.FilterLogs(ctx, candidate.event, fromBlock, nil, topics...)
		if err != nil {
			return nil, err
		}
		for _, log := range logs {
			event := new(MessageToL2Event)
			if err := c.contract.ParseLog(event, log, candidate.event); err != nil {
				return nil, fmt.Errorf("parse %s: %w", candidate.event, err)
			}
			observed, err := event.Message()
			if err != nil {
				return nil, err
			}
			if observed.Hash() == hash {
				resolution := &Resolution{State: candidate.state, TxHash: log.TxHash, BlockNumber: log.BlockNumber}
				if err := c.checkFinality(ctx, resolution); err != nil {
					return nil, err
				}
				return resolution, nil
			}
		}
	}
	return &Resolution{State: Unsent}, nil
}

func (c *Client) checkFinality(ctx context.Context, resolution *Resolution) error {
	reader, ok := c.contract.Backend().(FinalityReader)
	if !ok {
		return nil
	}
	height, err := reader.FinalisedHeight(ctx)
	if err != nil {
		return err
	}
	resolution.Finalized = resolution.BlockNumber <= height
	return nil
}
