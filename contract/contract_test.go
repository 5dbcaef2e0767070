package contract_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/l1"
	"github.com/keep-starknet-strange/zaun/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testABI = `[
	{"type":"function","name":"isFrozen","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"setValue","stateMutability":"payable","inputs":[{"name":"v","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"ValueSet","anonymous":false,"inputs":[
		{"name":"who","type":"address","indexed":true},
		{"name":"v","type":"uint256","indexed":false}
	]}
]`

type valueSet struct {
	Who common.Address
	V   *big.Int
}

var address = common.HexToAddress("0xE2Bb56ee936fd6433DC0F6e7e3b8365C906AA057")

func word(v int64) []byte {
	return common.LeftPadBytes(big.NewInt(v).Bytes(), 32)
}

func newContract(t *testing.T) (*contract.Contract, *mocks.MockBackend) {
	t.Helper()
	backend := mocks.NewMockBackend(gomock.NewController(t))
	backend.EXPECT().From().Return(common.Address{}).AnyTimes()
	return contract.New("test", address, contract.MustParseABI(testABI), backend), backend
}

func TestCall(t *testing.T) {
	t.Run("decodes the single result", func(t *testing.T) {
		c, backend := newContract(t)
		selector := c.Abi().Methods["isFrozen"].ID

		backend.EXPECT().
			CallContract(gomock.Any(), gomock.Any(), nil).
			DoAndReturn(func(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
				assert.Equal(t, address, *msg.To)
				assert.Equal(t, selector, msg.Data)
				return word(1), nil
			})

		frozen, err := contract.CallOne[bool](context.Background(), c, "isFrozen")
		require.NoError(t, err)
		assert.True(t, frozen)
	})

	t.Run("revert", func(t *testing.T) {
		c, backend := newContract(t)
		backend.EXPECT().
			CallContract(gomock.Any(), gomock.Any(), nil).
			Return(nil, errors.New("execution reverted: ONLY_GOVERNANCE"))

		_, err := contract.CallOne[bool](context.Background(), c, "isFrozen")
		require.ErrorIs(t, err, l1.ErrReverted)
		require.ErrorIs(t, err, &l1.RevertError{Reason: "ONLY_GOVERNANCE"})
	})

	t.Run("wrong result type", func(t *testing.T) {
		c, backend := newContract(t)
		backend.EXPECT().CallContract(gomock.Any(), gomock.Any(), nil).Return(word(1), nil)

		_, err := contract.CallOne[*big.Int](context.Background(), c, "isFrozen")
		require.Error(t, err)
	})
}

func TestTransact(t *testing.T) {
	t.Run("submits packed calldata", func(t *testing.T) {
		c, backend := newContract(t)

		var calls []string
		c.WithListener(&contract.SelectiveListener{
			OnTransactCb: func(_, method string, _ time.Duration, err error) {
				require.NoError(t, err)
				calls = append(calls, method)
			},
		})

		expected, err := c.Pack("setValue", big.NewInt(5))
		require.NoError(t, err)
		receipt := &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}
		backend.EXPECT().
			SubmitCall(gomock.Any(), l1.Call{To: address, Data: expected, Value: big.NewInt(9)}).
			Return(receipt, nil)

		got, err := c.Transact(context.Background(), "setValue", big.NewInt(9), big.NewInt(5))
		require.NoError(t, err)
		assert.Same(t, receipt, got)
		assert.Equal(t, []string{"setValue"}, calls)
	})

	t.Run("encoding errors are local", func(t *testing.T) {
		c, _ := newContract(t)

		_, err := c.Transact(context.Background(), "setValue", nil, "not a number")
		require.ErrorIs(t, err, contract.ErrEncoding)

		var encErr *contract.EncodingError
		require.ErrorAs(t, err, &encErr)
		assert.Equal(t, "setValue", encErr.Field)
	})
}

func TestParseReceipt(t *testing.T) {
	c, _ := newContract(t)
	id, err := c.EventID("ValueSet")
	require.NoError(t, err)

	who := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: common.HexToAddress("0x01"), Topics: []common.Hash{id, common.BytesToHash(who.Bytes())}, Data: word(1)},
		{Address: address, Topics: []common.Hash{id, common.BytesToHash(who.Bytes())}, Data: word(42)},
	}}

	events, err := contract.ParseReceipt[valueSet](c, receipt, "ValueSet")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, who, events[0].Who)
	assert.Equal(t, big.NewInt(42), events[0].V)

	name, ok := c.EventName(*receipt.Logs[1])
	require.True(t, ok)
	assert.Equal(t, "ValueSet", name)

	_, err = c.EventID("Unknown")
	require.Error(t, err)
}

func TestQuery(t *testing.T) {
	c, _ := newContract(t)
	id, err := c.EventID("ValueSet")
	require.NoError(t, err)

	who := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	to := uint64(20)
	q, err := c.Query("ValueSet", 10, &to, []any{who})
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(10), q.FromBlock)
	assert.Equal(t, big.NewInt(20), q.ToBlock)
	assert.Equal(t, []common.Address{address}, q.Addresses)
	assert.Equal(t, [][]common.Hash{{id}, {common.BytesToHash(who.Bytes())}}, q.Topics)
}

func TestPreconditionError(t *testing.T) {
	sentinel := &l1.RevertError{Reason: "STATE_IS_FROZEN"}
	err := &contract.PreconditionError{Op: "upgrade", Err: sentinel}

	require.ErrorIs(t, err, sentinel)
	require.ErrorIs(t, err, contract.ErrPrecondition)
	assert.NotErrorIs(t, err, l1.ErrReverted)
	assert.NotErrorIs(t, err, &l1.RevertError{Reason: "FINALIZED"})
}

func TestMergeABI(t *testing.T) {
	other := contract.MustParseABI(`[
		{"type":"function","name":"isFrozen","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
		{"type":"function","name":"finalize","stateMutability":"nonpayable","inputs":[],"outputs":[]},
		{"type":"event","name":"Finalized","anonymous":false,"inputs":[]}
	]`)
	merged := contract.MergeABI(contract.MustParseABI(testABI), other)

	assert.Len(t, merged.Methods, 3)
	assert.Len(t, merged.Events, 2)
	assert.Contains(t, merged.Methods, "setValue")
	assert.Contains(t, merged.Methods, "finalize")

	method, err := merged.MethodById(other.Methods["finalize"].ID)
	require.NoError(t, err)
	assert.Equal(t, "finalize", method.Name)
}
