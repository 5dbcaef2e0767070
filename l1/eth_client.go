package l1

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/keep-starknet-strange/zaun/utils"
)

// ethBackend is the subset of go-ethereum's client the EthClient relies on.
type ethBackend interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

const defaultTipCap = 2_000_000_000

// EthClient is the Backend over a JSON-RPC Ethereum node.
type EthClient struct {
	cfg      Config
	client   ethBackend
	closer   func()
	chainID  *big.Int
	signer   Signer
	listener EventListener
	log      utils.SimpleLogger
}

var _ Backend = (*EthClient)(nil)

// NewEthClient dials cfg.RPCEndpoint and resolves the chain id. A signer is
// built from cfg.PrivateKeyHex when it is set.
func NewEthClient(ctx context.Context, cfg Config, log utils.SimpleLogger) (*EthClient, error) {
	if cfg.RPCEndpoint == "" {
		return nil, errors.New("rpc endpoint must be provided")
	}
	dialCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	rpcClient, err := rpc.DialContext(dialCtx, cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCEndpoint, err)
	}
	ethClient := ethclient.NewClient(rpcClient)

	c, err := newEthClient(ctx, cfg, ethClient, log)
	if err != nil {
		ethClient.Close()
		return nil, err
	}
	c.closer = ethClient.Close
	return c, nil
}

func newEthClient(ctx context.Context, cfg Config, backend ethBackend, log utils.SimpleLogger) (*EthClient, error) {
	rpcChainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	chainID := rpcChainID
	if cfg.ChainID != 0 {
		chainID = new(big.Int).SetUint64(cfg.ChainID)
		if chainID.Cmp(rpcChainID) != 0 {
			return nil, fmt.Errorf("%w: configured %s, node %s", ErrChainIDMismatch, chainID, rpcChainID)
		}
	}

	c := &EthClient{
		cfg:      cfg,
		client:   backend,
		closer:   func() {},
		chainID:  chainID,
		listener: SelectiveListener{},
		log:      log,
	}
	if cfg.PrivateKeyHex != "" {
		signer, err := NewLocalECDSASignerFromHex(chainID, cfg.PrivateKeyHex)
		if err != nil {
			return nil, err
		}
		c.signer = signer
	}
	return c, nil
}

// WithSigner replaces the signer used by SubmitCall.
func (c *EthClient) WithSigner(signer Signer) *EthClient {
	c.signer = signer
	return c
}

func (c *EthClient) WithListener(l EventListener) *EthClient {
	c.listener = l
	return c
}

func (c *EthClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// From returns the signing account, or the zero address for a read-only client.
func (c *EthClient) From() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.From()
}

func (c *EthClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.client.CallContract(ctx, msg, blockNumber)
}

func (c *EthClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.client.HeaderByNumber(ctx, number)
}

func (c *EthClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return c.client.FilterLogs(ctx, q)
}

func (c *EthClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery,
	ch chan<- types.Log,
) (ethereum.Subscription, error) {
	return c.client.SubscribeFilterLogs(ctx, q, ch)
}

// FinalisedHeight returns the number of the latest finalised L1 block.
func (c *EthClient) FinalisedHeight(ctx context.Context) (uint64, error) {
	header, err := c.client.HeaderByNumber(ctx, big.NewInt(int64(rpc.FinalizedBlockNumber)))
	if err != nil {
		return 0, fmt.Errorf("get finalised Ethereum block: %w", err)
	}
	return header.Number.Uint64(), nil
}

// SubmitCall estimates, signs, broadcasts and waits for call. Gas estimation
// failing with a revert returns the *RevertError without broadcasting. A mined
// but failed transaction is replayed at its block to recover the reason.
func (c *EthClient) SubmitCall(ctx context.Context, call Call) (*types.Receipt, error) {
	if c.signer == nil {
		return nil, ErrNoSigner
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	from := c.signer.From()
	to := call.To
	msg := ethereum.CallMsg{From: from, To: &to, Value: value, Data: call.Data}

	gas, err := c.client.EstimateGas(ctx, msg)
	if err != nil {
		if revertErr, ok := AsRevert(err); ok {
			c.listener.OnRevert(revertErr.Reason)
			c.log.Warnw("L1 call rejected during gas estimation", "to", to.Hex(), "reason", revertErr.Reason)
			return nil, revertErr
		}
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * c.cfg.GasLimitBufferPct / 100

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}
	tipCap, feeCap := c.suggestFees(ctx)

	unsigned := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		To:        &to,
		Value:     value,
		Gas:       gas,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Data:      call.Data,
	})
	signed, err := c.signer.SignTx(ctx, unsigned)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err = c.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx %s: %w", signed.Hash().Hex(), err)
	}
	c.listener.OnTxSent(signed.Hash())
	c.log.Debugw("Submitted L1 transaction",
		"hash", signed.Hash().Hex(),
		"nonce", nonce,
		"gas", gas,
		"tipCap", tipCap,
		"feeCap", feeCap)

	waitCtx := ctx
	if c.cfg.ReceiptTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.cfg.ReceiptTimeout)
		defer cancel()
	}
	start := time.Now()
	receipt, err := bind.WaitMined(waitCtx, c.client, signed)
	if err != nil {
		return nil, fmt.Errorf("wait for receipt of %s: %w", signed.Hash().Hex(), err)
	}
	c.listener.OnTxMined(receipt, time.Since(start))

	if receipt.Status == types.ReceiptStatusFailed {
		revertErr := &RevertError{Reason: c.replayRevert(ctx, msg, receipt.BlockNumber), TxHash: signed.Hash()}
		c.listener.OnRevert(revertErr.Reason)
		c.log.Warnw("L1 transaction reverted",
			"hash", signed.Hash().Hex(),
			"block", receipt.BlockNumber,
			"reason", revertErr.Reason)
		return receipt, revertErr
	}
	return receipt, nil
}

func (c *EthClient) replayRevert(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) string {
	_, err := c.client.CallContract(ctx, msg, blockNumber)
	if revertErr, ok := AsRevert(err); ok {
		return revertErr.Reason
	}
	return ""
}

// suggestFees returns EIP-1559 tip and fee caps with config overrides
func (c *EthClient) suggestFees(ctx context.Context) (*big.Int, *big.Int) {
	head, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		c.log.Debugw("Failed to fetch the latest L1 header for fee estimation", "err", err)
	}
	tipCap, err := c.client.SuggestGasTipCap(ctx)
	if err != nil || tipCap == nil {
		tipCap = big.NewInt(defaultTipCap)
	}
	var feeCap *big.Int
	if head != nil && head.BaseFee != nil {
		feeCap = new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tipCap)
	} else if sp, err := c.client.SuggestGasPrice(ctx); err == nil && sp != nil {
		feeCap = sp
	} else {
		feeCap = new(big.Int).Add(big.NewInt(defaultTipCap), tipCap)
	}
	if v, ok := new(big.Int).SetString(c.cfg.MaxPriorityFeeWei, 10); ok && v.Sign() > 0 && v.Cmp(tipCap) < 0 {
		tipCap = v
	}
	if v, ok := new(big.Int).SetString(c.cfg.MaxFeePerGasWei, 10); ok && v.Sign() > 0 && v.Cmp(feeCap) < 0 {
		feeCap = v
	}
	if feeCap.Cmp(tipCap) < 0 {
		tipCap = new(big.Int).Set(feeCap)
	}
	return tipCap, feeCap
}

func (c *EthClient) Close() {
	c.closer()
}
