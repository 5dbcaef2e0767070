package main

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/corecontract"
	"github.com/keep-starknet-strange/zaun/l1"
	"github.com/keep-starknet-strange/zaun/metrics"
	"github.com/keep-starknet-strange/zaun/proxy"
	"github.com/keep-starknet-strange/zaun/utils"
	"github.com/keep-starknet-strange/zaun/validator"
	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Version string

const (
	configF         = "config"
	logLevelF       = "log-level"
	colourF         = "colour"
	networkF        = "network"
	ethNodeF        = "eth-node"
	l1ChainIDF      = "l1-chain-id"
	coreContractF   = "core-contract"
	privateKeyF     = "private-key"
	proxyVersionF   = "proxy-version"
	flavourF        = "flavour"
	gasLimitBufferF = "gas-limit-buffer"
	maxFeeF         = "max-fee-per-gas"
	maxTipF         = "max-priority-fee"
	receiptTimeoutF = "receipt-timeout"
	metricsAddrF    = "metrics-addr"

	defaultConfig         = ""
	defaultColour         = true
	defaultEthNode        = "ws://localhost:8546"
	defaultL1ChainID      = uint64(0)
	defaultCoreContract   = ""
	defaultPrivateKey     = ""
	defaultProxyVersion   = "5.0.0"
	defaultGasLimitBuffer = uint64(20)
	defaultMaxFee         = ""
	defaultMaxTip         = ""
	defaultReceiptTimeout = 5 * time.Minute
	defaultMetricsAddr    = ""

	configFlagUsage   = "The YAML configuration file."
	logLevelFlagUsage = "Options: debug, info, warn, error."
	colourUsage       = "Use `--colour=false` command to disable colourized outputs (ANSI Escape Codes)."
	networkUsage      = "Options: mainnet, sepolia, sepolia-integration, devnet. " +
		"Selects the default core contract address and L1 chain id."
	ethNodeUsage      = "WebSocket or HTTP endpoint of the Ethereum node. Use WebSocket for `watch`."
	l1ChainIDUsage    = "L1 chain id used for signing. Zero uses the network default."
	coreContractUsage = "Address of the Starknet core contract proxy on L1. " +
		"Required on devnet, overrides the network default elsewhere."
	privateKeyUsage = "Hex encoded ECDSA key used to sign L1 transactions. " +
		"Without a key only read commands are available."
	proxyVersionUsage   = "Version of the proxy contract in front of the core contract, e.g. 3.0.2 or 5.0.0."
	flavourUsage        = "Core contract flavour. Options: validity, sovereign."
	gasLimitBufferUsage = "Percentage added on top of the estimated gas limit."
	maxFeeUsage         = "Upper bound on the max fee per gas in wei. Empty means no bound."
	maxTipUsage         = "Upper bound on the priority fee in wei. Empty means no bound."
	receiptTimeoutUsage = "How long to wait for a transaction receipt. Zero waits until interrupted."
	metricsAddrUsage    = "Address to serve prometheus metrics on, e.g. localhost:9090. Empty disables metrics."
)

// Config is the resolved CLI configuration. Keys match the flag names so the
// same names work on the command line, in the YAML file and as ZAUN_ variables.
type Config struct {
	LogLevel       utils.LogLevel       `mapstructure:"log-level"`
	Colour         bool                 `mapstructure:"colour"`
	Network        utils.Network        `mapstructure:"network" validate:"required"`
	EthNode        string               `mapstructure:"eth-node" validate:"required"`
	L1ChainID      uint64               `mapstructure:"l1-chain-id"`
	CoreContract   common.Address       `mapstructure:"core-contract"`
	PrivateKey     string               `mapstructure:"private-key" validate:"omitempty,hexadecimal"`
	ProxyVersion   string               `mapstructure:"proxy-version" validate:"required,semver"`
	Flavour        corecontract.Flavour `mapstructure:"flavour"`
	GasLimitBuffer uint64               `mapstructure:"gas-limit-buffer" validate:"lte=100"`
	MaxFeePerGas   string               `mapstructure:"max-fee-per-gas" validate:"omitempty,numeric"`
	MaxPriorityFee string               `mapstructure:"max-priority-fee" validate:"omitempty,numeric"`
	ReceiptTimeout time.Duration        `mapstructure:"receipt-timeout"`
	MetricsAddr    string               `mapstructure:"metrics-addr" validate:"omitempty,hostname_port"`
}

// L1 is the transport configuration derived from c.
func (c *Config) L1() l1.Config {
	chainID := c.L1ChainID
	if chainID == 0 {
		chainID = c.Network.DefaultL1ChainID().Uint64()
	}
	return l1.Config{
		RPCEndpoint:       c.EthNode,
		ChainID:           chainID,
		GasLimitBufferPct: c.GasLimitBuffer,
		MaxFeePerGasWei:   c.MaxFeePerGas,
		MaxPriorityFeeWei: c.MaxPriorityFee,
		ReceiptTimeout:    c.ReceiptTimeout,
		PrivateKeyHex:     strings.TrimPrefix(c.PrivateKey, "0x"),
	}
}

// CoreContractAddress is the configured address or the network default.
func (c *Config) CoreContractAddress() (common.Address, error) {
	if c.CoreContract != (common.Address{}) {
		return c.CoreContract, nil
	}
	address, err := c.Network.CoreContractAddress()
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w, set --%s", c.Network, err, coreContractF)
	}
	return address, nil
}

// BackendFn connects to L1. The listener observes every submitted transaction.
type BackendFn func(ctx context.Context, cfg l1.Config, listener l1.EventListener,
	log utils.SimpleLogger) (l1.Backend, error)

// DialBackend connects an EthClient, signing with the configured key if any.
func DialBackend(ctx context.Context, cfg l1.Config, listener l1.EventListener,
	log utils.SimpleLogger,
) (l1.Backend, error) {
	client, err := l1.NewEthClient(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return client.WithListener(listener), nil
}

// app is the state shared by all commands of one invocation.
type app struct {
	cfg        Config
	log        *utils.ZapLogger
	registry   *prometheus.Registry
	newBackend BackendFn
	backend    l1.Backend
	calls      contract.EventListener
}

// Backend dials L1 on first use.
func (a *app) Backend(ctx context.Context) (l1.Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	backend, err := a.newBackend(ctx, a.cfg.L1(), metrics.MakeL1Metrics(a.registry), a.log)
	if err != nil {
		return nil, fmt.Errorf("connect to L1: %w", err)
	}
	a.backend = backend
	return backend, nil
}

func (a *app) close() {
	if closer, ok := a.backend.(interface{ Close() }); ok {
		closer.Close()
	}
}

// CoreContract binds the configured core contract with metrics attached.
func (a *app) CoreContract(ctx context.Context) (*corecontract.Client, error) {
	address, err := a.cfg.CoreContractAddress()
	if err != nil {
		return nil, err
	}
	variant, err := proxy.ParseVariant(a.cfg.ProxyVersion)
	if err != nil {
		return nil, err
	}
	backend, err := a.Backend(ctx)
	if err != nil {
		return nil, err
	}
	core := corecontract.New(address, backend, a.cfg.Flavour, variant, a.log)
	core.Contract().WithListener(a.contractMetrics())
	return core, nil
}

func (a *app) contractMetrics() contract.EventListener {
	if a.calls == nil {
		a.calls = metrics.MakeContractMetrics(a.registry)
	}
	return a.calls
}

// NewCmd builds the root command. Subcommands dial L1 lazily through newBackend.
func NewCmd(newBackend BackendFn) *cobra.Command {
	a := &app{
		newBackend: newBackend,
		registry:   prometheus.NewRegistry(),
	}

	var cfgFile string
	zaunCmd := &cobra.Command{
		Use:           "zaun",
		Short:         "Starknet L1 core contract and messaging client.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	zaunCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := loadConfig(cmd, cfgFile, &a.cfg); err != nil {
			return err
		}
		log, err := utils.NewZapLogger(a.cfg.LogLevel, a.cfg.Colour)
		if err != nil {
			return err
		}
		a.log = log
		return nil
	}
	zaunCmd.PersistentPostRun = func(*cobra.Command, []string) {
		a.close()
	}

	defaultLogLevel := utils.INFO
	defaultNetwork := utils.Mainnet
	defaultFlavour := corecontract.Validity

	flags := zaunCmd.PersistentFlags()
	flags.StringVar(&cfgFile, configF, defaultConfig, configFlagUsage)
	flags.Var(&defaultLogLevel, logLevelF, logLevelFlagUsage)
	flags.Bool(colourF, defaultColour, colourUsage)
	flags.Var(&defaultNetwork, networkF, networkUsage)
	flags.String(ethNodeF, defaultEthNode, ethNodeUsage)
	flags.Uint64(l1ChainIDF, defaultL1ChainID, l1ChainIDUsage)
	flags.String(coreContractF, defaultCoreContract, coreContractUsage)
	flags.String(privateKeyF, defaultPrivateKey, privateKeyUsage)
	flags.String(proxyVersionF, defaultProxyVersion, proxyVersionUsage)
	flags.Var(&defaultFlavour, flavourF, flavourUsage)
	flags.Uint64(gasLimitBufferF, defaultGasLimitBuffer, gasLimitBufferUsage)
	flags.String(maxFeeF, defaultMaxFee, maxFeeUsage)
	flags.String(maxTipF, defaultMaxTip, maxTipUsage)
	flags.Duration(receiptTimeoutF, defaultReceiptTimeout, receiptTimeoutUsage)

	zaunCmd.AddCommand(
		newMessageCmd(a),
		newProxyCmd(a),
		newCoreCmd(a),
		newWatchCmd(a),
	)
	return zaunCmd
}

// loadConfig resolves cfg with precedence flag > environment > config file > default.
func loadConfig(cmd *cobra.Command, cfgFile string, cfg *Config) error {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	v.SetEnvPrefix("ZAUN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	*cfg = Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		addressHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return err
	}
	return validator.Validator().Struct(cfg)
}

var errInvalidAddress = errors.New("invalid L1 address")

// addressHookFunc decodes hex strings into common.Address. An empty string is
// the zero address.
func addressHookFunc() mapstructure.DecodeHookFuncType {
	addressType := reflect.TypeOf(common.Address{})
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != addressType {
			return data, nil
		}
		s, _ := data.(string)
		if s == "" {
			return common.Address{}, nil
		}
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%w: %q", errInvalidAddress, s)
		}
		return common.HexToAddress(s), nil
	}
}
