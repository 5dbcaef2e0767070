package governance_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/governance"
	"github.com/keep-starknet-strange/zaun/l1"
	"github.com/keep-starknet-strange/zaun/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const governanceABI = `[
	{"type":"function","name":"starknetIsGovernor","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"starknetNominateNewGovernor","stateMutability":"nonpayable","inputs":[{"name":"newGovernor","type":"address"}],"outputs":[]},
	{"type":"function","name":"starknetRemoveGovernor","stateMutability":"nonpayable","inputs":[{"name":"governorForRemoval","type":"address"}],"outputs":[]},
	{"type":"function","name":"starknetAcceptGovernance","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"starknetCancelNomination","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

var (
	core     = common.HexToAddress("0xc662c410C0ECf747543f5bA90660f6ABeBD9C8c4")
	sender   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	nominee  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	contrABI = contract.MustParseABI(governanceABI)
)

func boolWord(v bool) []byte {
	w := make([]byte, 32)
	if v {
		w[31] = 1
	}
	return w
}

func setup(t *testing.T) (*governance.Governance, *mocks.MockBackend) {
	t.Helper()
	backend := mocks.NewMockBackend(gomock.NewController(t))
	backend.EXPECT().From().Return(sender).AnyTimes()
	c := contract.New("core", core, contrABI, backend)
	return governance.New(c, governance.Starknet), backend
}

func expectIsGovernor(backend *mocks.MockBackend, who common.Address, result bool) {
	data, err := contrABI.Pack("starknetIsGovernor", who)
	if err != nil {
		panic(err)
	}
	backend.EXPECT().
		CallContract(gomock.Any(), ethereum.CallMsg{From: sender, To: &core, Data: data}, nil).
		Return(boolWord(result), nil)
}

func TestIsGovernor(t *testing.T) {
	g, backend := setup(t)
	expectIsGovernor(backend, sender, true)

	ok, err := g.IsGovernor(context.Background(), sender)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNominateNewGovernor(t *testing.T) {
	t.Run("zero address", func(t *testing.T) {
		g, _ := setup(t)
		_, err := g.NominateNewGovernor(context.Background(), common.Address{})
		require.ErrorIs(t, err, contract.ErrEncoding)
	})

	t.Run("already governor", func(t *testing.T) {
		g, backend := setup(t)
		expectIsGovernor(backend, nominee, true)

		_, err := g.NominateNewGovernor(context.Background(), nominee)
		require.ErrorIs(t, err, governance.ErrAlreadyGovernor)
		require.ErrorIs(t, err, contract.ErrPrecondition)
	})

	t.Run("submits the nomination", func(t *testing.T) {
		g, backend := setup(t)
		expectIsGovernor(backend, nominee, false)

		data, err := contrABI.Pack("starknetNominateNewGovernor", nominee)
		require.NoError(t, err)
		receipt := &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(3)}
		backend.EXPECT().SubmitCall(gomock.Any(), l1.Call{To: core, Data: data}).Return(receipt, nil)

		got, err := g.NominateNewGovernor(context.Background(), nominee)
		require.NoError(t, err)
		assert.Same(t, receipt, got)
	})

	t.Run("rejected by contract", func(t *testing.T) {
		g, backend := setup(t)
		expectIsGovernor(backend, nominee, false)
		backend.EXPECT().SubmitCall(gomock.Any(), gomock.Any()).Return(nil, governance.ErrOnlyGovernance)

		_, err := g.NominateNewGovernor(context.Background(), nominee)
		require.ErrorIs(t, err, l1.ErrReverted)
		require.ErrorIs(t, err, governance.ErrOnlyGovernance)
	})
}

func TestRemoveGovernor(t *testing.T) {
	t.Run("self removal", func(t *testing.T) {
		g, _ := setup(t)
		_, err := g.RemoveGovernor(context.Background(), sender)
		require.ErrorIs(t, err, governance.ErrSelfRemove)
		assert.NotErrorIs(t, err, l1.ErrReverted)
	})

	t.Run("removes another governor", func(t *testing.T) {
		g, backend := setup(t)
		data, err := contrABI.Pack("starknetRemoveGovernor", nominee)
		require.NoError(t, err)
		backend.EXPECT().SubmitCall(gomock.Any(), l1.Call{To: core, Data: data}).Return(&types.Receipt{BlockNumber: big.NewInt(1)}, nil)

		_, err = g.RemoveGovernor(context.Background(), nominee)
		require.NoError(t, err)
	})
}

func TestAcceptAndCancel(t *testing.T) {
	g, backend := setup(t)

	accept, err := contrABI.Pack("starknetAcceptGovernance")
	require.NoError(t, err)
	cancel, err := contrABI.Pack("starknetCancelNomination")
	require.NoError(t, err)

	gomock.InOrder(
		backend.EXPECT().SubmitCall(gomock.Any(), l1.Call{To: core, Data: cancel}).Return(&types.Receipt{BlockNumber: big.NewInt(1)}, nil),
		backend.EXPECT().SubmitCall(gomock.Any(), l1.Call{To: core, Data: accept}).Return(nil, governance.ErrOnlyCandidate),
	)

	_, err = g.CancelNomination(context.Background())
	require.NoError(t, err)
	_, err = g.AcceptGovernance(context.Background())
	require.ErrorIs(t, err, governance.ErrOnlyCandidate)
}
