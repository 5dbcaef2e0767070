package proxy

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/l1"
	"github.com/sourcegraph/conc/pool"
)

// UpgradeIntent names the implementation to switch to and the calldata its
// initialize entry point receives. Finalize locks the proxy to the
// implementation forever and must only be set on explicit request.
type UpgradeIntent struct {
	NewImplementation common.Address
	InitCalldata      []byte
	Finalize          bool
}

func (u *UpgradeIntent) Validate() error {
	if u.NewImplementation == (common.Address{}) {
		return &contract.EncodingError{Field: "new_implementation", Err: ErrMissingImplementation}
	}
	return nil
}

func (u *UpgradeIntent) args() []any {
	data := u.InitCalldata
	if data == nil {
		data = []byte{}
	}
	return []any{u.NewImplementation, data, u.Finalize}
}

// UpgradeResult reports how far Upgrade got. Upgraded is nil when the proxy
// has an activation delay and upgradeTo has to wait until EnabledAt.
type UpgradeResult struct {
	Added    *types.Receipt
	Upgraded *types.Receipt
	// L1 block timestamp from which upgradeTo is accepted.
	EnabledAt uint64
	Finalized bool
}

// Pending reports whether the implementation was added but not yet activated.
func (r *UpgradeResult) Pending() bool {
	return r.Upgraded == nil
}

type options struct {
	preflight bool
}

type Option func(*options)

// SkipPreflight submits without the advisory freeze and finalization reads.
func SkipPreflight() Option {
	return func(o *options) { o.preflight = false }
}

func buildOptions(opts []Option) options {
	o := options{preflight: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// AddImplementation registers intent with the proxy and starts its activation delay.
func (c *Client) AddImplementation(ctx context.Context, intent *UpgradeIntent) (*types.Receipt, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	receipt, err := c.contract.Transact(ctx, "addImplementation", nil, intent.args()...)
	if err != nil {
		return nil, err
	}
	c.log.Infow("Added proxy implementation",
		"implementation", intent.NewImplementation.Hex(),
		"finalize", intent.Finalize,
		"tx", receipt.TxHash.Hex())
	return receipt, nil
}

// RemoveImplementation withdraws a previously added intent. The calldata and
// finalize flag must match the ones it was added with.
func (c *Client) RemoveImplementation(ctx context.Context, intent *UpgradeIntent) (*types.Receipt, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	receipt, err := c.contract.Transact(ctx, "removeImplementation", nil, intent.args()...)
	if err != nil {
		return nil, err
	}
	c.log.Infow("Removed proxy implementation", "implementation", intent.NewImplementation.Hex(), "tx", receipt.TxHash.Hex())
	return receipt, nil
}

// UpgradeTo switches the proxy to an added implementation. Unless preflight is
// skipped, a frozen or finalized proxy is rejected before submission; the
// on-chain revert stays authoritative either way.
func (c *Client) UpgradeTo(ctx context.Context, intent *UpgradeIntent, opts ...Option) (*types.Receipt, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	if buildOptions(opts).preflight {
		if err := c.preflight(ctx); err != nil {
			return nil, err
		}
	}
	if intent.Finalize {
		c.log.Warnw("Upgrading proxy with finalize, the implementation can never be replaced",
			"proxy", c.Address().Hex(),
			"implementation", intent.NewImplementation.Hex())
	}

	receipt, err := c.contract.Transact(ctx, "upgradeTo", nil, intent.args()...)
	if err != nil {
		return nil, err
	}
	c.log.Infow("Upgraded proxy",
		"implementation", intent.NewImplementation.Hex(),
		"finalize", intent.Finalize,
		"tx", receipt.TxHash.Hex())
	return receipt, nil
}

// Upgrade adds intent and, when the proxy has no activation delay, upgrades to
// it right away. With a delay the result is pending and UpgradeTo has to be
// called again after EnabledAt.
func (c *Client) Upgrade(ctx context.Context, intent *UpgradeIntent, opts ...Option) (*UpgradeResult, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	if buildOptions(opts).preflight {
		if err := c.preflight(ctx); err != nil {
			return nil, err
		}
	}
	delay, err := c.UpgradeActivationDelay(ctx)
	if err != nil {
		return nil, err
	}

	added, err := c.AddImplementation(ctx, intent)
	if err != nil {
		return nil, err
	}
	result := &UpgradeResult{Added: added}

	if delay.Sign() > 0 {
		header, err := c.contract.Backend().HeaderByNumber(ctx, added.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("read block of addImplementation: %w", err)
		}
		enabledAt := new(big.Int).Add(new(big.Int).SetUint64(header.Time), delay)
		if !enabledAt.IsUint64() {
			return nil, fmt.Errorf("activation time %s overflows", enabledAt)
		}
		result.EnabledAt = enabledAt.Uint64()
		c.log.Infow("Proxy upgrade pending activation delay",
			"implementation", intent.NewImplementation.Hex(),
			"enabledAt", result.EnabledAt)
		return result, nil
	}

	// Preflight already ran for this upgrade.
	upgraded, err := c.UpgradeTo(ctx, intent, SkipPreflight())
	if err != nil {
		return result, err
	}
	result.Upgraded = upgraded

	finalized, err := contract.ParseReceipt[FinalizedImplementation](c.contract, upgraded, FinalizedImplementationEvent)
	if err != nil {
		return result, err
	}
	result.Finalized = len(finalized) > 0
	return result, nil
}

// preflight fails fast on a frozen or finalized proxy. Implementations that do
// not expose the flags revert on read, which skips the check.
func (c *Client) preflight(ctx context.Context) error {
	var frozen, notFinalized *bool
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		v, err := c.IsFrozen(ctx)
		if err == nil {
			frozen = &v
		}
		return c.advisory("isFrozen", err)
	})
	p.Go(func(ctx context.Context) error {
		v, err := c.IsNotFinalized(ctx)
		if err == nil {
			notFinalized = &v
		}
		return c.advisory("isNotFinalized", err)
	})
	if err := p.Wait(); err != nil {
		return err
	}

	if notFinalized != nil && !*notFinalized {
		return &contract.PreconditionError{Op: "upgradeTo", Err: ErrFinalized}
	}
	if frozen != nil && *frozen {
		return &contract.PreconditionError{Op: "upgradeTo", Err: ErrStateIsFrozen}
	}
	return nil
}

func (c *Client) advisory(method string, err error) error {
	if err == nil || !errors.Is(err, l1.ErrReverted) {
		return err
	}
	c.log.Debugw("Skipping proxy preflight check", "method", method, "err", err)
	return nil
}

// Upgraded is emitted when the proxy switches implementation.
type Upgraded struct {
	Implementation common.Address
	Raw            types.Log
}

// ImplementationAdded is emitted by addImplementation.
type ImplementationAdded struct {
	Implementation common.Address
	Initializer    []byte
	Finalize       bool
	Raw            types.Log
}

type ImplementationRemoved = ImplementationAdded

type FinalizedImplementation = Upgraded
