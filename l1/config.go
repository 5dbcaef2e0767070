package l1

import "time"

// Config holds the L1 connection and transaction settings.
type Config struct {
	// RPC endpoint to an Ethereum node. Prefer WS for subscriptions.
	RPCEndpoint string `mapstructure:"rpc_endpoint" yaml:"rpc_endpoint" validate:"required"`

	// Zero means the chain id is fetched from the node.
	ChainID uint64 `mapstructure:"chain_id" yaml:"chain_id"`

	// Gas/fees configuration (EIP-1559)
	GasLimitBufferPct uint64 `mapstructure:"gas_limit_buffer_pct" yaml:"gas_limit_buffer_pct" validate:"lte=100"`
	MaxFeePerGasWei   string `mapstructure:"max_fee_per_gas_wei"  yaml:"max_fee_per_gas_wei"  validate:"omitempty,numeric"`
	MaxPriorityFeeWei string `mapstructure:"max_priority_fee_wei" yaml:"max_priority_fee_wei" validate:"omitempty,numeric"`

	// Upper bound on waiting for a receipt. Zero waits until the context is done.
	ReceiptTimeout time.Duration `mapstructure:"receipt_timeout" yaml:"receipt_timeout"`

	// Without a key the client is read-only.
	PrivateKeyHex string `mapstructure:"private_key" yaml:"private_key"`
}

func DefaultConfig() Config {
	return Config{
		RPCEndpoint:       "ws://localhost:8546",
		GasLimitBufferPct: 20,
		ReceiptTimeout:    5 * time.Minute,
	}
}
