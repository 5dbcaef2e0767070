package messaging_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/l1"
	"github.com/keep-starknet-strange/zaun/messaging"
	"github.com/stretchr/testify/require"
)

var mailboxAddress = common.HexToAddress("0xE2Bb56ee936fd6433DC0F6e7e3b8365C906AA057")

// fakeMailbox is an in-memory StarknetMessaging contract. It decodes real
// calldata, applies the on-chain mailbox rules and emits ABI-encoded logs.
type fakeMailbox struct {
	t   *testing.T
	abi abi.ABI

	mu            sync.Mutex
	sender        common.Address
	now           uint64
	block         uint64
	delay         uint64
	reportedDelay *big.Int
	maxFeeErr     error
	finalised     uint64
	nonce         uint64
	submissions   int
	l1ToL2        map[common.Hash]*big.Int
	l2ToL1        map[common.Hash]uint64
	cancellations map[common.Hash]uint64
	logs          []types.Log
	sinks         []chan<- types.Log
}

var (
	_ l1.Backend               = (*fakeMailbox)(nil)
	_ messaging.FinalityReader = (*fakeMailbox)(nil)
)

func newFakeMailbox(t *testing.T, delay uint64) *fakeMailbox {
	t.Helper()
	return &fakeMailbox{
		t:             t,
		abi:           contract.MustParseABI(messaging.ABI),
		sender:        sender,
		now:           1_700_000_000,
		block:         100,
		delay:         delay,
		l1ToL2:        make(map[common.Hash]*big.Int),
		l2ToL1:        make(map[common.Hash]uint64),
		cancellations: make(map[common.Hash]uint64),
	}
}

func (m *fakeMailbox) advance(seconds uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += seconds
	m.block++
}

func word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func l1ToL2Hash(from common.Address, to, selector *big.Int, payload []*big.Int, nonce *big.Int) common.Hash {
	data := word(new(big.Int).SetBytes(from.Bytes()))
	data = append(data, word(to)...)
	data = append(data, word(nonce)...)
	data = append(data, word(selector)...)
	data = append(data, word(big.NewInt(int64(len(payload))))...)
	for _, p := range payload {
		data = append(data, word(p)...)
	}
	return crypto.Keccak256Hash(data)
}

func l2ToL1Hash(from *big.Int, to common.Address, payload []*big.Int) common.Hash {
	data := word(from)
	data = append(data, word(new(big.Int).SetBytes(to.Bytes()))...)
	data = append(data, word(big.NewInt(int64(len(payload))))...)
	for _, p := range payload {
		data = append(data, word(p)...)
	}
	return crypto.Keccak256Hash(data)
}

func revert(reason string) error {
	return &l1.RevertError{Reason: reason}
}

// deliverFromL2 makes an L2->L1 message consumable, as a state update would.
func (m *fakeMailbox) deliverFromL2(from *big.Int, to common.Address, payload []*big.Int) common.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash := l2ToL1Hash(from, to, payload)
	m.l2ToL1[hash]++
	m.emit(common.Hash{}, messaging.EventLogMessageToL1, []any{from, to}, payload)
	return hash
}

// consumeOnL2 marks a pending L1->L2 message as handled on L2.
func (m *fakeMailbox) consumeOnL2(from common.Address, to, selector *big.Int, payload []*big.Int, nonce *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash := l1ToL2Hash(from, to, selector, payload, nonce)
	require.NotZero(m.t, m.l1ToL2[hash].Sign(), "message must be pending")
	m.l1ToL2[hash] = new(big.Int)
	m.emit(common.HexToHash(fmt.Sprintf("0x%x", m.block)), messaging.EventConsumedMessageToL2,
		[]any{from, to, selector}, payload, nonce)
}

func (m *fakeMailbox) emit(txHash common.Hash, name string, indexed []any, nonIndexed ...any) *types.Log {
	event := m.abi.Events[name]
	topics := []common.Hash{event.ID}
	for _, v := range indexed {
		switch v := v.(type) {
		case common.Address:
			topics = append(topics, common.BytesToHash(v.Bytes()))
		case *big.Int:
			topics = append(topics, common.BigToHash(v))
		default:
			m.t.Fatalf("unsupported topic %T", v)
		}
	}
	data, err := event.Inputs.NonIndexed().Pack(nonIndexed...)
	require.NoError(m.t, err)

	log := types.Log{
		Address:     mailboxAddress,
		Topics:      topics,
		Data:        data,
		BlockNumber: m.block,
		TxHash:      txHash,
	}
	m.logs = append(m.logs, log)
	for _, sink := range m.sinks {
		sink <- log
	}
	return &log
}

func (m *fakeMailbox) From() common.Address {
	return m.sender
}

func (m *fakeMailbox) decode(data []byte) (*abi.Method, []any) {
	method, err := m.abi.MethodById(data[:4])
	require.NoError(m.t, err)
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(m.t, err)
	return method, args
}

func (m *fakeMailbox) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Equal(m.t, mailboxAddress, *msg.To)

	method, args := m.decode(msg.Data)
	var out *big.Int
	switch method.Name {
	case "l1ToL2Messages":
		out = new(big.Int)
		if v, ok := m.l1ToL2[args[0].([32]byte)]; ok {
			out.Set(v)
		}
	case "l2ToL1Messages":
		out = new(big.Int).SetUint64(m.l2ToL1[args[0].([32]byte)])
	case "l1ToL2MessageCancellations":
		out = new(big.Int).SetUint64(m.cancellations[args[0].([32]byte)])
	case "messageCancellationDelay":
		out = new(big.Int).SetUint64(m.delay)
		if m.reportedDelay != nil {
			out = m.reportedDelay
		}
	case "l1ToL2MessageNonce":
		out = new(big.Int).SetUint64(m.nonce)
	case "getMaxL1MsgFee":
		if m.maxFeeErr != nil {
			return nil, m.maxFeeErr
		}
		out = big.NewInt(params.Ether)
	default:
		return nil, fmt.Errorf("unexpected call %s", method.Name)
	}
	return method.Outputs.Pack(out)
}

func (m *fakeMailbox) SubmitCall(_ context.Context, call l1.Call) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Equal(m.t, mailboxAddress, call.To)
	m.submissions++

	method, args := m.decode(call.Data)
	m.block++
	txHash := crypto.Keccak256Hash(call.Data, big.NewInt(int64(m.submissions)).Bytes())
	first := len(m.logs)

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	if method.Name != "sendMessageToL2" && value.Sign() != 0 {
		return nil, errors.New("non-payable method")
	}

	switch method.Name {
	case "sendMessageToL2":
		to, selector, payload := args[0].(*big.Int), args[1].(*big.Int), args[2].([]*big.Int)
		if value.Sign() == 0 {
			return nil, revert("L1_MSG_FEE_MUST_BE_GREATER_THAN_0")
		}
		if value.Cmp(big.NewInt(params.Ether)) > 0 {
			return nil, revert("MAX_L1_MSG_FEE_EXCEEDED")
		}
		nonce := new(big.Int).SetUint64(m.nonce)
		m.nonce++
		hash := l1ToL2Hash(m.sender, to, selector, payload, nonce)
		m.l1ToL2[hash] = new(big.Int).Add(value, big.NewInt(1))
		m.emit(txHash, messaging.EventLogMessageToL2, []any{m.sender, to, selector}, payload, nonce, value)
	case "consumeMessageFromL2":
		from, payload := args[0].(*big.Int), args[1].([]*big.Int)
		hash := l2ToL1Hash(from, m.sender, payload)
		if m.l2ToL1[hash] == 0 {
			return nil, revert("INVALID_MESSAGE_TO_CONSUME")
		}
		m.l2ToL1[hash]--
		m.emit(txHash, messaging.EventConsumedMessageToL1, []any{from, m.sender}, payload)
	case "startL1ToL2MessageCancellation":
		to, selector, payload, nonce := args[0].(*big.Int), args[1].(*big.Int), args[2].([]*big.Int), args[3].(*big.Int)
		hash := l1ToL2Hash(m.sender, to, selector, payload, nonce)
		if v := m.l1ToL2[hash]; v == nil || v.Sign() == 0 {
			return nil, revert("NO_MESSAGE_TO_CANCEL")
		}
		m.cancellations[hash] = m.now
		m.emit(txHash, messaging.EventMessageToL2CancellationStarted, []any{m.sender, to, selector}, payload, nonce)
	case "cancelL1ToL2Message":
		to, selector, payload, nonce := args[0].(*big.Int), args[1].(*big.Int), args[2].([]*big.Int), args[3].(*big.Int)
		hash := l1ToL2Hash(m.sender, to, selector, payload, nonce)
		if v := m.l1ToL2[hash]; v == nil || v.Sign() == 0 {
			return nil, revert("NO_MESSAGE_TO_CANCEL")
		}
		requestedAt := m.cancellations[hash]
		if requestedAt == 0 {
			return nil, revert("MESSAGE_CANCELLATION_NOT_REQUESTED")
		}
		if m.now < requestedAt+m.delay {
			return nil, revert("MESSAGE_CANCELLATION_NOT_ALLOWED_YET")
		}
		m.l1ToL2[hash] = new(big.Int)
		delete(m.cancellations, hash)
		m.emit(txHash, messaging.EventMessageToL2Canceled, []any{m.sender, to, selector}, payload, nonce)
	default:
		return nil, fmt.Errorf("unexpected transaction %s", method.Name)
	}

	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockNumber: new(big.Int).SetUint64(m.block),
	}
	for i := first; i < len(m.logs); i++ {
		receipt.Logs = append(receipt.Logs, &m.logs[i])
	}
	return receipt, nil
}

func (m *fakeMailbox) FinalisedHeight(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalised, nil
}

func (m *fakeMailbox) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Nil(m.t, number)
	return &types.Header{Number: new(big.Int).SetUint64(m.block), Time: m.now}, nil
}

func (m *fakeMailbox) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.Log
	for _, log := range m.logs {
		if q.FromBlock != nil && log.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if matchTopics(log.Topics, q.Topics) {
			out = append(out, log)
		}
	}
	return out, nil
}

func matchTopics(topics []common.Hash, query [][]common.Hash) bool {
	if len(query) > len(topics) {
		return false
	}
	for i, options := range query {
		if len(options) == 0 {
			continue
		}
		matched := false
		for _, option := range options {
			if topics[i] == option {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func (m *fakeMailbox) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery,
	ch chan<- types.Log,
) (ethereum.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, ch)
	return newFakeSubscription(), nil
}

type fakeSubscription struct {
	errChan chan error
	closed  bool
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{
		errChan: make(chan error),
	}
}

func (s *fakeSubscription) Err() <-chan error {
	return s.errChan
}

func (s *fakeSubscription) Unsubscribe() {
	if !s.closed {
		close(s.errChan)
		s.closed = true
	}
}
