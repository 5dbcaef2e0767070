package contract

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/keep-starknet-strange/zaun/l1"
	"github.com/keep-starknet-strange/zaun/utils"
)

// Contract binds an ABI to an address on L1.
type Contract struct {
	name     string
	address  common.Address
	abi      abi.ABI
	backend  l1.Backend
	listener EventListener
	log      utils.SimpleLogger
}

func New(name string, address common.Address, contractABI abi.ABI, backend l1.Backend) *Contract {
	return &Contract{
		name:     name,
		address:  address,
		abi:      contractABI,
		backend:  backend,
		listener: &SelectiveListener{},
		log:      utils.NewNopZapLogger(),
	}
}

func (c *Contract) WithListener(l EventListener) *Contract {
	c.listener = l
	return c
}

func (c *Contract) WithLogger(log utils.SimpleLogger) *Contract {
	c.log = log
	return c
}

// MustParseABI panics on a malformed ABI and is meant for package-level ABI definitions.
func MustParseABI(abiJSON string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// MergeABI combines the facets of a contract that is reached through one
// address. Entries with the same name must describe the same signature; later
// ones win.
func MergeABI(parts ...abi.ABI) abi.ABI {
	merged := abi.ABI{
		Methods: make(map[string]abi.Method),
		Events:  make(map[string]abi.Event),
		Errors:  make(map[string]abi.Error),
	}
	for _, part := range parts {
		maps.Copy(merged.Methods, part.Methods)
		maps.Copy(merged.Events, part.Events)
		maps.Copy(merged.Errors, part.Errors)
		if len(part.Constructor.Inputs) > 0 {
			merged.Constructor = part.Constructor
		}
	}
	return merged
}

func (c *Contract) Name() string {
	return c.name
}

func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) Abi() abi.ABI {
	return c.abi
}

func (c *Contract) Backend() l1.Backend {
	return c.backend
}

// Pack encodes a method call. Input shape errors are reported as *EncodingError.
func (c *Contract) Pack(method string, args ...any) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, &EncodingError{Field: method, Err: err}
	}
	return data, nil
}

// Call runs a read-only method against the latest block.
func (c *Contract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		From: c.backend.From(),
		To:   &c.address,
		Data: data,
	}, nil)
	c.listener.OnCall(c.name, method, time.Since(start), err)
	if err != nil {
		if revertErr, ok := l1.AsRevert(err); ok {
			return nil, fmt.Errorf("%s.%s: %w", c.name, method, revertErr)
		}
		return nil, fmt.Errorf("%s.%s: %w", c.name, method, err)
	}

	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: unpack result: %w", c.name, method, err)
	}
	return values, nil
}

// CallOne runs a read-only method and returns its single result as T.
func CallOne[T any](ctx context.Context, c *Contract, method string, args ...any) (T, error) {
	var zero T
	values, err := c.Call(ctx, method, args...)
	if err != nil {
		return zero, err
	}
	if len(values) == 0 {
		return zero, fmt.Errorf("%s.%s: empty result", c.name, method)
	}
	v, ok := values[0].(T)
	if !ok {
		return zero, fmt.Errorf("%s.%s: unexpected result type %T", c.name, method, values[0])
	}
	return v, nil
}

// Transact submits a state-changing method call with value wei attached.
func (c *Contract) Transact(ctx context.Context, method string, value *big.Int, args ...any) (*types.Receipt, error) {
	data, err := c.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	receipt, err := c.backend.SubmitCall(ctx, l1.Call{To: c.address, Data: data, Value: value})
	c.listener.OnTransact(c.name, method, time.Since(start), err)
	if err != nil {
		var revertErr *l1.RevertError
		if errors.As(err, &revertErr) {
			c.log.Warnw("Contract call rejected", "contract", c.name, "method", method, "reason", revertErr.Reason)
		}
		return receipt, fmt.Errorf("%s.%s: %w", c.name, method, err)
	}
	c.log.Infow("Contract call confirmed",
		"contract", c.name,
		"method", method,
		"tx", receipt.TxHash.Hex(),
		"block", receipt.BlockNumber)
	return receipt, nil
}

// EventID returns the topic of the named event.
func (c *Contract) EventID(name string) (common.Hash, error) {
	event, ok := c.abi.Events[name]
	if !ok {
		return common.Hash{}, fmt.Errorf("%s: no event %q", c.name, name)
	}
	return event.ID, nil
}

func (c *Contract) ParseLog(out any, log types.Log, name string) error {
	event, ok := c.abi.Events[name]
	if !ok {
		return fmt.Errorf("%s: no event %q", c.name, name)
	}
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return errors.New("event signature mismatch")
	}
	if len(log.Data) > 0 {
		if err := c.abi.UnpackIntoInterface(out, name, log.Data); err != nil {
			return err
		}
	}
	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return abi.ParseTopics(out, indexed, log.Topics[1:])
}

// ParseReceipt decodes every log of the named event emitted by this contract in receipt.
func ParseReceipt[T any](c *Contract, receipt *types.Receipt, name string) ([]*T, error) {
	id, err := c.EventID(name)
	if err != nil {
		return nil, err
	}
	var events []*T
	for _, log := range receipt.Logs {
		if log == nil || log.Address != c.address || len(log.Topics) == 0 || log.Topics[0] != id {
			continue
		}
		event := new(T)
		if err := c.ParseLog(event, *log, name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// Query builds a filter for the named event. Each element of topics filters one
// indexed argument in order; nil matches anything.
func (c *Contract) Query(name string, fromBlock uint64, toBlock *uint64, topics ...[]any) (ethereum.FilterQuery, error) {
	id, err := c.EventID(name)
	if err != nil {
		return ethereum.FilterQuery{}, err
	}
	rest, err := abi.MakeTopics(topics...)
	if err != nil {
		return ethereum.FilterQuery{}, &EncodingError{Field: name + " topics", Err: err}
	}
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{c.address},
		Topics:    append([][]common.Hash{{id}}, rest...),
	}
	if toBlock != nil {
		q.ToBlock = new(big.Int).SetUint64(*toBlock)
	}
	return q, nil
}

func (c *Contract) FilterLogs(ctx context.Context, name string, fromBlock uint64, toBlock *uint64,
	topics ...[]any,
) ([]types.Log, error) {
	q, err := c.Query(name, fromBlock, toBlock, topics...)
	if err != nil {
		return nil, err
	}
	logs, err := c.backend.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("filter %s logs: %w", name, err)
	}
	return logs, nil
}

// SubscribeFilterLogs streams every log of the named events emitted by this contract.
func (c *Contract) SubscribeFilterLogs(ctx context.Context, sink chan<- types.Log,
	names ...string,
) (ethereum.Subscription, error) {
	ids := make([]common.Hash, 0, len(names))
	for _, name := range names {
		id, err := c.EventID(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	q := ethereum.FilterQuery{
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{ids},
	}
	return c.backend.SubscribeFilterLogs(ctx, q, sink)
}

// EventName resolves the event a log belongs to.
func (c *Contract) EventName(log types.Log) (string, bool) {
	if len(log.Topics) == 0 {
		return "", false
	}
	event, err := c.abi.EventByID(log.Topics[0])
	if err != nil {
		return "", false
	}
	return event.Name, true
}
