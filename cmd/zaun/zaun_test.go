package main_test

import (
	"bytes"
	"context"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	zaun "github.com/keep-starknet-strange/zaun/cmd/zaun"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/core/felt"
	"github.com/keep-starknet-strange/zaun/l1"
	"github.com/keep-starknet-strange/zaun/messaging"
	"github.com/keep-starknet-strange/zaun/mocks"
	"github.com/keep-starknet-strange/zaun/proxy"
	"github.com/keep-starknet-strange/zaun/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gopkg.in/yaml.v3"
)

const sender = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

// spyL1 records the configuration it was dialled with and every call made
// through it. All views read as zero.
type spyL1 struct {
	mu    sync.Mutex
	cfg   *l1.Config
	calls []ethereum.CallMsg
}

func (s *spyL1) dial(t *testing.T) zaun.BackendFn {
	return func(_ context.Context, cfg l1.Config, _ l1.EventListener, _ utils.SimpleLogger) (l1.Backend, error) {
		s.cfg = &cfg

		backend := mocks.NewMockBackend(gomock.NewController(t))
		backend.EXPECT().From().Return(common.HexToAddress(sender)).AnyTimes()
		backend.EXPECT().HeaderByNumber(gomock.Any(), gomock.Any()).
			Return(&types.Header{Time: 1000}, nil).AnyTimes()
		backend.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
				s.mu.Lock()
				defer s.mu.Unlock()
				s.calls = append(s.calls, msg)
				return make([]byte, 32), nil
			}).AnyTimes()
		return backend, nil
	}
}

func run(t *testing.T, newBackend zaun.BackendFn, args ...string) (string, error) {
	t.Helper()
	b := new(bytes.Buffer)
	cmd := zaun.NewCmd(newBackend)
	cmd.SetOut(b)
	cmd.SetErr(b)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return b.String(), err
}

func tempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigPrecedence(t *testing.T) {
	account := "0x0000000000000000000000000000000000000042"
	sepoliaCore := common.HexToAddress("0xE2Bb56ee936fd6433DC0F6e7e3b8365C906AA057")
	customCore := common.HexToAddress("0x00000000000000000000000000000000000000c0")

	tests := map[string]struct {
		cfgFile bool
		cfg     string
		env     map[string]string
		args    []string
		wantL1  l1.Config
		wantTo  common.Address
	}{
		"defaults": {
			wantL1: l1.Config{
				RPCEndpoint:       "ws://localhost:8546",
				ChainID:           1,
				GasLimitBufferPct: 20,
				ReceiptTimeout:    5 * time.Minute,
			},
			wantTo: common.HexToAddress("0xc662c410C0ECf747543f5bA90660f6ABeBD9C8c4"),
		},
		"config file": {
			cfgFile: true,
			cfg: `network: sepolia
eth-node: http://file:8545
gas-limit-buffer: 50
receipt-timeout: 1m
max-fee-per-gas: "100000000000"
`,
			wantL1: l1.Config{
				RPCEndpoint:       "http://file:8545",
				ChainID:           11155111,
				GasLimitBufferPct: 50,
				MaxFeePerGasWei:   "100000000000",
				ReceiptTimeout:    time.Minute,
			},
			wantTo: sepoliaCore,
		},
		"environment overrides config file": {
			cfgFile: true,
			cfg: `network: sepolia
eth-node: http://file:8545
`,
			env: map[string]string{
				"ZAUN_ETH_NODE":    "http://env:8545",
				"ZAUN_L1_CHAIN_ID": "5",
			},
			wantL1: l1.Config{
				RPCEndpoint:       "http://env:8545",
				ChainID:           5,
				GasLimitBufferPct: 20,
				ReceiptTimeout:    5 * time.Minute,
			},
			wantTo: sepoliaCore,
		},
		"flags override environment": {
			env: map[string]string{
				"ZAUN_ETH_NODE":      "http://env:8545",
				"ZAUN_CORE_CONTRACT": "0x00000000000000000000000000000000000000c1",
			},
			args: []string{
				"--eth-node", "http://flag:8545",
				"--network", "devnet",
				"--core-contract", customCore.Hex(),
				"--receipt-timeout", "30s",
			},
			wantL1: l1.Config{
				RPCEndpoint:       "http://flag:8545",
				ChainID:           31337,
				GasLimitBufferPct: 20,
				ReceiptTimeout:    30 * time.Second,
			},
			wantTo: customCore,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			args := []string{"core", "is-operator", account}
			if tc.cfgFile {
				args = append(args, "--config", tempConfig(t, tc.cfg))
			}
			args = append(args, tc.args...)

			spy := new(spyL1)
			out, err := run(t, spy.dial(t), args...)
			require.NoError(t, err)
			assert.Contains(t, out, "false")

			require.NotNil(t, spy.cfg)
			assert.Equal(t, tc.wantL1, *spy.cfg)
			require.NotEmpty(t, spy.calls)
			assert.Equal(t, tc.wantTo, *spy.calls[0].To)
		})
	}
}

func TestConfigErrors(t *testing.T) {
	tests := map[string]struct {
		args []string
		want error
	}{
		"devnet needs a core contract": {
			args: []string{"--network", "devnet"},
			want: utils.ErrNoKnownCoreContract,
		},
		"unknown network": {
			args: []string{"--network", "goerli"},
		},
		"malformed core contract": {
			args: []string{"--core-contract", "0x1234"},
		},
		"proxy version is not semver": {
			args: []string{"--proxy-version", "latest"},
		},
		"gas buffer above 100 percent": {
			args: []string{"--gas-limit-buffer", "150"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			spy := new(spyL1)
			args := append([]string{"core", "is-operator", "0x0000000000000000000000000000000000000042"}, tc.args...)
			_, err := run(t, spy.dial(t), args...)
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
			assert.Empty(t, spy.calls)
		})
	}
}

func TestMessageHash(t *testing.T) {
	offline := func(context.Context, l1.Config, l1.EventListener, utils.SimpleLogger) (l1.Backend, error) {
		t.Fatal("hash must not dial L1")
		return nil, nil
	}

	t.Run("L1 to L2", func(t *testing.T) {
		for nonce, want := range map[string]string{
			"0": "0x216a8a8bb2319e99ba22f6021de2cfa80bcea90d64fbf3a7023c025879109bfd",
			"1": "0xfd964eb9eee28dbab3d7bc45349686e2e67f85acd57675ceefefe430ef6c2d11",
		} {
			out, err := run(t, offline, "message", "hash",
				"--from", sender, "--to", "0xa", "--selector", "1", "--payload", "7", "--nonce", nonce)
			require.NoError(t, err)
			assert.Equal(t, want+"\n", out)
		}
	})

	t.Run("selector by name", func(t *testing.T) {
		byName, err := run(t, offline, "message", "hash",
			"--from", sender, "--to", "0xa", "--selector", "transfer", "--nonce", "3")
		require.NoError(t, err)
		byFelt, err := run(t, offline, "message", "hash",
			"--from", sender, "--to", "0xa", "--nonce", "3",
			"--selector", "0x83afd3f4caedc6eebf44246fe54e38c95e3179a5ec9ea81740eca5b482d12e")
		require.NoError(t, err)
		assert.Equal(t, byFelt, byName)
	})

	t.Run("L2 to L1", func(t *testing.T) {
		msg := messaging.MessageToL1{
			FromAddress: felt.NewFromUint64(0xbeef),
			ToAddress:   common.HexToAddress(sender),
			Payload:     []*felt.Felt{felt.NewFromUint64(1), felt.NewFromUint64(2)},
		}
		out, err := run(t, offline, "message", "hash", "--l2-to-l1",
			"--from", "0xbeef", "--to", sender, "--payload", "1,2")
		require.NoError(t, err)
		assert.Equal(t, msg.Hash().Hex()+"\n", out)
	})

	t.Run("missing recipient", func(t *testing.T) {
		_, err := run(t, offline, "message", "hash", "--from", sender, "--selector", "1", "--nonce", "0")
		require.ErrorContains(t, err, "--to")
	})

	t.Run("missing nonce", func(t *testing.T) {
		_, err := run(t, offline, "message", "hash", "--from", sender, "--to", "0xa", "--selector", "1")
		require.ErrorContains(t, err, "--nonce")
	})
}

func TestMessageStatus(t *testing.T) {
	spy := new(spyL1)
	out, err := run(t, spy.dial(t), "message", "status",
		"--from", sender, "--to", "0xa", "--selector", "1", "--payload", "7", "--nonce", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "0x216a8a8bb2319e99ba22f6021de2cfa80bcea90d64fbf3a7023c025879109bfd")
	assert.Contains(t, out, messaging.NotPending.String())
	assert.Len(t, spy.calls, 3)
}

func TestEncodeInit(t *testing.T) {
	offline := func(context.Context, l1.Config, l1.EventListener, utils.SimpleLogger) (l1.Backend, error) {
		t.Fatal("encode-init must not dial L1")
		return nil, nil
	}

	t.Run("all defaults", func(t *testing.T) {
		out, err := run(t, offline, "proxy", "encode-init")
		require.NoError(t, err)
		assert.Equal(t, "0x"+strings.Repeat("0", 448)+"\n", out)
	})

	t.Run("aggregator layout", func(t *testing.T) {
		out, err := run(t, offline, "proxy", "encode-init", "--aggregator")
		require.NoError(t, err)
		assert.Equal(t, "0x"+strings.Repeat("0", 512)+"\n", out)
	})

	t.Run("round trip through decode-init", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "init.yaml")
		require.NoError(t, os.WriteFile(file, []byte(`sub_contract_addresses:
  - "0x00000000000000000000000000000000000000aa"
eic_address: "0x00000000000000000000000000000000000000bb"
program_hash: "0x1234"
verifier_address: "0x00000000000000000000000000000000000000cc"
config_hash: "0x5678"
initial_state:
  state_root: "0x9"
  block_number: -1
  block_hash: "0x0"
`), 0o600))

		encoded, err := run(t, offline, "proxy", "encode-init", "--file", file)
		require.NoError(t, err)
		encoded = strings.TrimSpace(encoded)
		assert.Len(t, encoded, 2+2*proxy.EncodedLen(1, new(proxy.CoreContractInitData)))

		decoded, err := run(t, offline, "proxy", "decode-init", "--sub-contracts", "1", encoded)
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(decoded), &got))
		subContract := common.HexToAddress("0x00000000000000000000000000000000000000aa")
		assert.Equal(t, []any{subContract.Hex()}, got["sub_contract_addresses"])
		assert.Equal(t, "0x1234", got["program_hash"])
		assert.Equal(t, "0x5678", got["config_hash"])
		assert.Equal(t, map[string]any{
			"state_root":   "0x9",
			"block_number": "-1",
			"block_hash":   "0x0",
		}, got["initial_state"])
	})

	t.Run("decode rejects a wrong length", func(t *testing.T) {
		_, err := run(t, offline, "proxy", "decode-init", "0x"+strings.Repeat("0", 446))
		require.Error(t, err)
	})

	t.Run("decode rejects a huge sub-contract count", func(t *testing.T) {
		_, err := run(t, offline, "proxy", "decode-init", "--sub-contracts", "4611686018427387904",
			"0x"+strings.Repeat("0", 448))
		require.ErrorIs(t, err, contract.ErrEncoding)
	})
}

func TestProxyStatus(t *testing.T) {
	spy := new(spyL1)
	proxyAddress := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	out, err := run(t, spy.dial(t), "proxy", "status", "--proxy", proxyAddress.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, proxyAddress.Hex())
	assert.Contains(t, out, "5.0.0")
	require.Len(t, spy.calls, 4)
	for _, call := range spy.calls {
		assert.Equal(t, proxyAddress, *call.To)
	}
}

func TestRegisterRoleNeedsRoles(t *testing.T) {
	spy := new(spyL1)
	_, err := run(t, spy.dial(t), "proxy", "register-role", "--proxy-version", "3.0.2",
		"--role", "security-agent", "--account", sender)
	require.ErrorIs(t, err, proxy.ErrUnsupportedVersion)
}

func TestUpgradeNeedsImplementation(t *testing.T) {
	spy := new(spyL1)
	_, err := run(t, spy.dial(t), "proxy", "upgrade")
	require.ErrorContains(t, err, "--implementation")
	assert.Nil(t, spy.cfg)
}
