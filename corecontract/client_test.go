package corecontract_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/corecontract"
	"github.com/keep-starknet-strange/zaun/l1"
	"github.com/keep-starknet-strange/zaun/mocks"
	"github.com/keep-starknet-strange/zaun/proxy"
	"github.com/keep-starknet-strange/zaun/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	coreAddress = common.HexToAddress("0xc662c410C0ECf747543f5bA90660f6ABeBD9C8c4")
	operator    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

// fakeCore is an in-memory core contract behind a proxy.
type fakeCore struct {
	mu        sync.Mutex
	abi       abi.ABI
	operators map[common.Address]bool
	finalized bool
	root      *big.Int
	number    *big.Int
	hash      *big.Int
	program   *big.Int
	delay     *big.Int
	calls     []string
}

func newFakeCore(t *testing.T, flavour corecontract.Flavour) (*fakeCore, *corecontract.Client) {
	t.Helper()
	f := &fakeCore{
		abi:       corecontract.ABI(flavour, proxy.V302),
		operators: map[common.Address]bool{operator: true},
		root:      new(big.Int),
		number:    big.NewInt(-1),
		hash:      new(big.Int),
		program:   big.NewInt(0x5eed),
		delay:     big.NewInt(432000),
	}
	backend := mocks.NewMockBackend(gomock.NewController(t))
	backend.EXPECT().From().Return(operator).AnyTimes()
	backend.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(f.call).AnyTimes()
	backend.EXPECT().SubmitCall(gomock.Any(), gomock.Any()).DoAndReturn(f.submit).AnyTimes()
	return f, corecontract.New(coreAddress, backend, flavour, proxy.V302, utils.NewNopZapLogger())
}

func (f *fakeCore) call(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	method, err := f.abi.MethodById(msg.Data)
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "identify":
		return method.Outputs.Pack("StarkWare_Starknet_2024_9")
	case "programHash":
		return method.Outputs.Pack(f.program)
	case "configHash":
		return method.Outputs.Pack(big.NewInt(0xc0f))
	case "stateRoot":
		return method.Outputs.Pack(f.root)
	case "stateBlockNumber":
		return method.Outputs.Pack(f.number)
	case "stateBlockHash":
		return method.Outputs.Pack(f.hash)
	case "isOperator":
		return method.Outputs.Pack(f.operators[args[0].(common.Address)])
	case "isFinalized":
		return method.Outputs.Pack(f.finalized)
	case "messageCancellationDelay":
		return method.Outputs.Pack(f.delay)
	case "isFrozen":
		return method.Outputs.Pack(false)
	case "starknetIsGovernor":
		return method.Outputs.Pack(args[0].(common.Address) == operator)
	}
	return nil, errors.New("execution reverted")
}

func (f *fakeCore) submit(_ context.Context, call l1.Call) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	method, err := f.abi.MethodById(call.Data)
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	f.calls = append(f.calls, method.Name)
	receipt := &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(int64(len(f.calls)))}

	switch method.Name {
	case "updateState":
		if !f.operators[operator] {
			return nil, corecontract.ErrOnlyOperator
		}
		output := args[0].([]*big.Int)
		f.root = output[0]
		f.number = new(big.Int).Add(f.number, big.NewInt(1))
		f.hash = output[1]
		event := f.abi.Events[corecontract.EventLogStateUpdate]
		data, err := event.Inputs.NonIndexed().Pack(f.root, f.number, f.hash)
		if err != nil {
			return nil, err
		}
		receipt.Logs = []*types.Log{{Address: coreAddress, Topics: []common.Hash{event.ID}, Data: data}}
	case "registerOperator":
		f.operators[args[0].(common.Address)] = true
	case "unregisterOperator":
		delete(f.operators, args[0].(common.Address))
	case "setProgramHash", "setMessageCancellationDelay":
		if f.finalized {
			return nil, corecontract.ErrFinalized
		}
		if method.Name == "setProgramHash" {
			f.program = args[0].(*big.Int)
		} else {
			f.delay = args[0].(*big.Int)
		}
	case "finalize":
		if f.finalized {
			return nil, corecontract.ErrFinalized
		}
		f.finalized = true
	default:
		return nil, errors.New("unexpected call " + method.Name)
	}
	return receipt, nil
}

func TestABI(t *testing.T) {
	validity := corecontract.ABI(corecontract.Validity, proxy.V302)
	sovereign := corecontract.ABI(corecontract.Sovereign, proxy.V500)

	assert.Len(t, validity.Methods["updateState"].Inputs, 3)
	assert.Len(t, sovereign.Methods["updateState"].Inputs, 1)

	for _, method := range []string{"sendMessageToL2", "upgradeTo", "isFrozen", "starknetIsGovernor", "proxyIsGovernor", "finalize"} {
		assert.Contains(t, validity.Methods, method)
	}
	assert.NotContains(t, validity.Methods, "registerSecurityAgent")
	assert.Contains(t, sovereign.Methods, "registerSecurityAgent")
	assert.Contains(t, validity.Events, "LogMessageToL2")
	assert.Contains(t, validity.Events, corecontract.EventLogStateUpdate)
}

func TestFacetsShareBinding(t *testing.T) {
	_, client := newFakeCore(t, corecontract.Validity)

	assert.Same(t, client.Contract(), client.Messaging().Contract())
	assert.Same(t, client.Contract(), client.Proxy().Contract())
	assert.Equal(t, coreAddress, client.Messaging().Address())

	delay, err := client.Messaging().MessageCancellationDelay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(432000), delay.Int64())

	frozen, err := client.ProxySupport().IsFrozen(context.Background())
	require.NoError(t, err)
	assert.False(t, frozen)

	isGovernor, err := client.Governance().IsGovernor(context.Background(), operator)
	require.NoError(t, err)
	assert.True(t, isGovernor)
}

func TestState(t *testing.T) {
	_, client := newFakeCore(t, corecontract.Validity)

	state, err := client.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "StarkWare_Starknet_2024_9", state.Identify)
	assert.Equal(t, int64(0x5eed), state.ProgramHash.Int64())
	assert.Equal(t, int64(0xc0f), state.ConfigHash.Int64())
	assert.Equal(t, int64(-1), state.BlockNumber.Int64())
}

func TestUpdateState(t *testing.T) {
	t.Run("validity", func(t *testing.T) {
		f, client := newFakeCore(t, corecontract.Validity)

		update, receipt, err := client.UpdateState(context.Background(), &corecontract.StateUpdate{
			ProgramOutput:   []*big.Int{big.NewInt(0xaaa), big.NewInt(0xbbb)},
			OnchainDataHash: big.NewInt(1),
			OnchainDataSize: big.NewInt(2),
		})
		require.NoError(t, err)
		require.NotNil(t, receipt)
		assert.Equal(t, int64(0xaaa), update.GlobalRoot.Int64())
		assert.Equal(t, int64(0), update.BlockNumber.Int64())
		assert.Equal(t, int64(0xbbb), update.BlockHash.Int64())
		assert.Equal(t, []string{"updateState"}, f.calls)

		number, err := client.StateBlockNumber(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(0), number.Int64())
	})

	t.Run("sovereign rejects a data commitment", func(t *testing.T) {
		f, client := newFakeCore(t, corecontract.Sovereign)

		_, _, err := client.UpdateState(context.Background(), &corecontract.StateUpdate{
			ProgramOutput:   []*big.Int{big.NewInt(1), big.NewInt(2)},
			OnchainDataHash: big.NewInt(1),
		})
		require.ErrorIs(t, err, corecontract.ErrWrongFlavour)
		assert.Empty(t, f.calls)

		update, _, err := client.UpdateState(context.Background(), &corecontract.StateUpdate{
			ProgramOutput: []*big.Int{big.NewInt(1), big.NewInt(2)},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), update.GlobalRoot.Int64())
	})

	t.Run("only operators", func(t *testing.T) {
		f, client := newFakeCore(t, corecontract.Validity)
		delete(f.operators, operator)

		_, _, err := client.UpdateState(context.Background(), &corecontract.StateUpdate{
			ProgramOutput: []*big.Int{big.NewInt(1), big.NewInt(2)},
		})
		require.ErrorIs(t, err, corecontract.ErrOnlyOperator)
		require.ErrorIs(t, err, l1.ErrReverted)
	})

	t.Run("empty output", func(t *testing.T) {
		_, client := newFakeCore(t, corecontract.Validity)
		_, _, err := client.UpdateState(context.Background(), &corecontract.StateUpdate{})
		require.ErrorIs(t, err, contract.ErrEncoding)
	})
}

func TestOperators(t *testing.T) {
	_, client := newFakeCore(t, corecontract.Validity)
	ops := client.Operators()
	newOperator := common.HexToAddress("0xb2")

	_, err := ops.Register(context.Background(), common.Address{})
	require.ErrorIs(t, err, contract.ErrEncoding)

	_, err = ops.Register(context.Background(), newOperator)
	require.NoError(t, err)
	ok, err := ops.IsOperator(context.Background(), newOperator)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = ops.Unregister(context.Background(), newOperator)
	require.NoError(t, err)
	ok, err = ops.IsOperator(context.Background(), newOperator)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFinalize(t *testing.T) {
	_, client := newFakeCore(t, corecontract.Validity)

	_, err := client.SetProgramHash(context.Background(), big.NewInt(-1))
	require.ErrorIs(t, err, contract.ErrEncoding)

	_, err = client.SetMessageCancellationDelay(context.Background(), 60)
	require.NoError(t, err)
	delay, err := client.Messaging().MessageCancellationDelay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(60), delay.Int64())

	_, err = client.Finalize(context.Background())
	require.NoError(t, err)
	finalized, err := client.IsFinalized(context.Background())
	require.NoError(t, err)
	assert.True(t, finalized)

	_, err = client.SetProgramHash(context.Background(), big.NewInt(7))
	require.ErrorIs(t, err, corecontract.ErrFinalized)
	_, err = client.Finalize(context.Background())
	require.ErrorIs(t, err, corecontract.ErrFinalized)
}

func TestFlavourFlag(t *testing.T) {
	var f corecontract.Flavour
	require.NoError(t, f.Set("sovereign"))
	assert.Equal(t, corecontract.Sovereign, f)
	assert.Equal(t, "sovereign", f.String())
	require.Error(t, f.Set("optimistic"))
}
