package corecontract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/sourcegraph/conc/pool"
)

// State is the settled L2 state and configuration held by the core contract.
type State struct {
	Identify    string
	ProgramHash *big.Int
	ConfigHash  *big.Int
	StateRoot   *big.Int
	// -1 before the first state update.
	BlockNumber *big.Int
	BlockHash   *big.Int
}

func (c *Client) ProgramHash(ctx context.Context) (*big.Int, error) {
	return contract.CallOne[*big.Int](ctx, c.contract, "programHash")
}

func (c *Client) ConfigHash(ctx context.Context) (*big.Int, error) {
	return contract.CallOne[*big.Int](ctx, c.contract, "configHash")
}

// Identify returns the implementation's name and version string.
func (c *Client) Identify(ctx context.Context) (string, error) {
	return contract.CallOne[string](ctx, c.contract, "identify")
}

func (c *Client) StateRoot(ctx context.Context) (*big.Int, error) {
	return contract.CallOne[*big.Int](ctx, c.contract, "stateRoot")
}

func (c *Client) StateBlockNumber(ctx context.Context) (*big.Int, error) {
	return contract.CallOne[*big.Int](ctx, c.contract, "stateBlockNumber")
}

func (c *Client) StateBlockHash(ctx context.Context) (*big.Int, error) {
	return contract.CallOne[*big.Int](ctx, c.contract, "stateBlockHash")
}

// State reads all core state getters concurrently.
func (c *Client) State(ctx context.Context) (*State, error) {
	var s State
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) (err error) {
		s.Identify, err = c.Identify(ctx)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		s.ProgramHash, err = c.ProgramHash(ctx)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		s.ConfigHash, err = c.ConfigHash(ctx)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		s.StateRoot, err = c.StateRoot(ctx)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		s.BlockNumber, err = c.StateBlockNumber(ctx)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		s.BlockHash, err = c.StateBlockHash(ctx)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) SetProgramHash(ctx context.Context, programHash *big.Int) (*types.Receipt, error) {
	return c.setter(ctx, "setProgramHash", programHash)
}

func (c *Client) SetConfigHash(ctx context.Context, configHash *big.Int) (*types.Receipt, error) {
	return c.setter(ctx, "setConfigHash", configHash)
}

// SetMessageCancellationDelay sets how long an L1->L2 message cancellation waits, in seconds.
func (c *Client) SetMessageCancellationDelay(ctx context.Context, seconds uint64) (*types.Receipt, error) {
	return c.setter(ctx, "setMessageCancellationDelay", new(big.Int).SetUint64(seconds))
}

// setter submits a governance-only configuration change. Finalized contracts
// reject these, which IsFinalized tells in advance.
func (c *Client) setter(ctx context.Context, method string, value *big.Int) (*types.Receipt, error) {
	if value == nil || value.Sign() < 0 {
		return nil, &contract.EncodingError{Field: method, Err: errors.New("value must be a non-negative integer")}
	}
	receipt, err := c.contract.Transact(ctx, method, nil, value)
	if err != nil {
		return nil, err
	}
	c.log.Infow("Updated core contract configuration", "method", method, "value", value.String(), "tx", receipt.TxHash.Hex())
	return receipt, nil
}

// StateUpdate is the data availability commitment of a validity update. It is
// ignored by sovereign contracts.
type StateUpdate struct {
	ProgramOutput   []*big.Int
	OnchainDataHash *big.Int
	OnchainDataSize *big.Int
}

// UpdateState submits a proven state transition. The result carries the
// LogStateUpdate the contract emitted.
func (c *Client) UpdateState(ctx context.Context, update *StateUpdate) (*LogStateUpdate, *types.Receipt, error) {
	if len(update.ProgramOutput) == 0 {
		return nil, nil, &contract.EncodingError{Field: "programOutput", Err: errors.New("empty")}
	}

	var (
		receipt *types.Receipt
		err     error
	)
	switch c.flavour {
	case Validity:
		receipt, err = c.contract.Transact(ctx, "updateState", nil,
			update.ProgramOutput, bigOrZero(update.OnchainDataHash), bigOrZero(update.OnchainDataSize))
	case Sovereign:
		if update.OnchainDataHash != nil || update.OnchainDataSize != nil {
			return nil, nil, fmt.Errorf("onchain data commitment: %w", ErrWrongFlavour)
		}
		receipt, err = c.contract.Transact(ctx, "updateState", nil, update.ProgramOutput)
	default:
		return nil, nil, fmt.Errorf("flavour %d: %w", c.flavour, ErrWrongFlavour)
	}
	if err != nil {
		return nil, nil, err
	}

	logs, err := contract.ParseReceipt[LogStateUpdate](c.contract, receipt, EventLogStateUpdate)
	if err != nil {
		return nil, receipt, err
	}
	if len(logs) == 0 {
		return nil, receipt, fmt.Errorf("tx %s: no %s log", receipt.TxHash.Hex(), EventLogStateUpdate)
	}
	accepted := logs[len(logs)-1]
	c.log.Infow("Updated L2 state",
		"blockNumber", accepted.BlockNumber.String(),
		"stateRoot", common.BigToHash(accepted.GlobalRoot).Hex(),
		"tx", receipt.TxHash.Hex())
	return accepted, receipt, nil
}

// LogStateUpdate is emitted on each accepted state transition.
type LogStateUpdate struct {
	GlobalRoot  *big.Int
	BlockNumber *big.Int
	BlockHash   *big.Int
	Raw         types.Log
}

// StateUpdates lists the state transitions accepted in [fromBlock, toBlock].
// A nil toBlock means up to the latest block.
func (c *Client) StateUpdates(ctx context.Context, fromBlock uint64, toBlock *uint64) ([]*LogStateUpdate, error) {
	logs, err := c.contract.FilterLogs(ctx, EventLogStateUpdate, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	updates := make([]*LogStateUpdate, 0, len(logs))
	for _, log := range logs {
		update := &LogStateUpdate{Raw: log}
		if err := c.contract.ParseLog(update, log, EventLogStateUpdate); err != nil {
			return nil, fmt.Errorf("parse %s: %w", EventLogStateUpdate, err)
		}
		updates = append(updates, update)
	}
	return updates, nil
}
