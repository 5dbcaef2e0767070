// Package proxy encodes proxy initialization payloads and sequences
// governance-gated proxy upgrades.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/governance"
	"github.com/keep-starknet-strange/zaun/l1"
	"github.com/keep-starknet-strange/zaun/utils"
	"github.com/sourcegraph/conc/pool"
)

// Client drives a proxy contract. Calls that the proxy does not implement
// itself are forwarded to the current implementation on-chain.
type Client struct {
	contract   *contract.Contract
	variant    Variant
	governance *governance.Governance
	log        utils.SimpleLogger
}

func New(address common.Address, backend l1.Backend, variant Variant, log utils.SimpleLogger) *Client {
	return NewWithContract(contract.New(Name, address, variant.ABI(), backend).WithLogger(log), variant, log)
}

// NewWithContract shares an existing binding, which must carry the ABI of variant.
func NewWithContract(c *contract.Contract, variant Variant, log utils.SimpleLogger) *Client {
	return &Client{
		contract:   c,
		variant:    variant,
		governance: governance.New(c, governance.Proxy),
		log:        log,
	}
}

func (c *Client) Contract() *contract.Contract {
	return c.contract
}

func (c *Client) Address() common.Address {
	return c.contract.Address()
}

func (c *Client) Variant() Variant {
	return c.variant
}

// Governance exposes the proxy's nominate/accept governor handoff.
func (c *Client) Governance() *governance.Governance {
	return c.governance
}

func (c *Client) IsFrozen(ctx context.Context) (bool, error) {
	return contract.CallOne[bool](ctx, c.contract, "isFrozen")
}

func (c *Client) IsNotFinalized(ctx context.Context) (bool, error) {
	return contract.CallOne[bool](ctx, c.contract, "isNotFinalized")
}

func (c *Client) Implementation(ctx context.Context) (common.Address, error) {
	return contract.CallOne[common.Address](ctx, c.contract, "implementation")
}

// UpgradeActivationDelay is the number of seconds an added implementation
// waits before upgradeTo accepts it.
func (c *Client) UpgradeActivationDelay(ctx context.Context) (*big.Int, error) {
	return contract.CallOne[*big.Int](ctx, c.contract, "getUpgradeActivationDelay")
}

// Initialize calls the implementation's initialize entry point. Implementations
// reject direct calls, so this only succeeds through a proxy.
func (c *Client) Initialize(ctx context.Context, data []byte) (*types.Receipt, error) {
	return c.contract.Transact(ctx, "initialize", nil, data)
}

// InitializeWith encodes d for n sub-contracts and calls Initialize.
func (c *Client) InitializeWith(ctx context.Context, n int, d *InitializeData) (*types.Receipt, error) {
	data, err := Encode(n, d)
	if err != nil {
		return nil, err
	}
	return c.Initialize(ctx, data)
}

// Status is a snapshot of the proxy's upgrade state.
type Status struct {
	Implementation  common.Address
	Frozen          bool
	Finalized       bool
	ActivationDelay *big.Int
}

// Status reads the proxy's implementation, freeze and finalization flags and
// activation delay concurrently.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var (
		status       Status
		notFinalized bool
	)
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) (err error) {
		status.Implementation, err = c.Implementation(ctx)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		status.Frozen, err = c.IsFrozen(ctx)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		notFinalized, err = c.IsNotFinalized(ctx)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		status.ActivationDelay, err = c.UpgradeActivationDelay(ctx)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}
	status.Finalized = !notFinalized
	return &status, nil
}

// Role is an account role registrable on proxies from 5.0.0 on.
type Role uint8

const (
	AppGovernor Role = iota + 1
	AppRoleAdmin
	GovernanceAdmin
	Operator
	SecurityAdmin
	SecurityAgent
	TokenAdmin
	UpgradeGovernor
)

var roleMethods = map[Role]string{
	AppGovernor:     "registerAppGovernor",
	AppRoleAdmin:    "registerAppRoleAdmin",
	GovernanceAdmin: "registerGovernanceAdmin",
	Operator:        "registerOperator",
	SecurityAdmin:   "registerSecurityAdmin",
	SecurityAgent:   "registerSecurityAgent",
	TokenAdmin:      "registerTokenAdmin",
	UpgradeGovernor: "registerUpgradeGovernor",
}

var roleNames = map[Role]string{
	AppGovernor:     "app-governor",
	AppRoleAdmin:    "app-role-admin",
	GovernanceAdmin: "governance-admin",
	Operator:        "operator",
	SecurityAdmin:   "security-admin",
	SecurityAgent:   "security-agent",
	TokenAdmin:      "token-admin",
	UpgradeGovernor: "upgrade-governor",
}

var errUnknownRole = errors.New("unknown role")

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Set implements pflag.Value.
func (r *Role) Set(s string) error {
	for role, name := range roleNames {
		if name == s {
			*r = role
			return nil
		}
	}
	return fmt.Errorf("%w: %q", errUnknownRole, s)
}

func (r *Role) Type() string {
	return "Role"
}

// RegisterRole grants role to account.
func (c *Client) RegisterRole(ctx context.Context, role Role, account common.Address) (*types.Receipt, error) {
	method, ok := roleMethods[role]
	if !ok {
		return nil, &contract.EncodingError{Field: "role", Err: errUnknownRole}
	}
	if !c.variant.HasRoles() {
		return nil, fmt.Errorf("%s on proxy %s: %w", method, c.variant, ErrUnsupportedVersion)
	}
	if account == (common.Address{}) {
		return nil, &contract.EncodingError{Field: "account", Err: errors.New("zero address")}
	}
	receipt, err := c.contract.Transact(ctx, method, nil, account)
	if err != nil {
		return nil, err
	}
	c.log.Infow("Registered proxy role", "role", role.String(), "account", account.Hex(), "tx", receipt.TxHash.Hex())
	return receipt, nil
}
