// Package corecontract is a client for the Starknet core contract on L1. One
// binding serves every facet reachable at the contract address.
package corecontract

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
	"github.com/keep-starknet-strange/zaun/messaging"
	"github.com/keep-starknet-strange/zaun/proxy"
	"github.com/keep-starknet-strange/zaun/utils"
)

// Flavour selects the updateState signature of the implementation.
type Flavour uint8

const (
	Validity Flavour = iota
	Sovereign
)

func (f Flavour) String() string {
	switch f {
	case Validity:
		return "validity"
	case Sovereign:
		return "sovereign"
	default:
		return "unknown"
	}
}

// Set implements pflag.Value.
func (f *Flavour) Set(s string) error {
	switch s {
	case "validity":
		*f = Validity
	case "sovereign":
		*f = Sovereign
	default:
		return fmt.Errorf("unknown core contract flavour %q", s)
	}
	return nil
}

func (f *Flavour) Type() string {
	return "Flavour"
}

func (f *Flavour) UnmarshalText(text []byte) error {
	return f.Set(string(text))
}

var (
	ErrNotFinalized = &l1.RevertError{Reason: "NOT_FINALIZED"}
	ErrFinalized    = &l1.RevertError{Reason: "FINALIZED"}
	ErrOnlyOperator = &l1.RevertError{Reason: "ONLY_OPERATOR"}

	ErrWrongFlavour = errors.New("not available on this core contract flavour")
)

// ProxySupport is the part of the proxy protocol the implementation serves.
type ProxySupport interface {
	IsFrozen(ctx context.Context) (bool, error)
	Initialize(ctx context.Context, data []byte) (*types.Receipt, error)
	InitializeWith(ctx context.Context, n int, d *proxy.InitializeData) (*types.Receipt, error)
}

// Client combines the core state, messaging, proxy, governance, operator and
// finalization facets over one binding.
type Client struct {
	contract   *contract.Contract
	flavour    Flavour
	messaging  *messaging.Client
	proxy      *proxy.Client
	governance *governance.Governance
	operators  *Operators
	log        utils.SimpleLogger
}

func New(address common.Address, backend l1.Backend, flavour Flavour, variant proxy.Variant,
	log utils.SimpleLogger,
) *Client {
	c := contract.New(Name, address, ABI(flavour, variant), backend).WithLogger(log)
	return NewWithContract(c, flavour, variant, log)
}

// NewWithContract shares an existing binding, which must carry ABI(flavour, variant).
func NewWithContract(c *contract.Contract, flavour Flavour, variant proxy.Variant, log utils.SimpleLogger) *Client {
	return &Client{
		contract:   c,
		flavour:    flavour,
		messaging:  messaging.NewWithContract(c, log),
		proxy:      proxy.NewWithContract(c, variant, log),
		governance: governance.New(c, governance.Starknet),
		operators:  &Operators{contract: c, log: log},
		log:        log,
	}
}

func (c *Client) Contract() *contract.Contract {
	return c.contract
}

func (c *Client) Address() common.Address {
	return c.contract.Address()
}

func (c *Client) Flavour() Flavour {
	return c.flavour
}

func (c *Client) Messaging() *messaging.Client {
	return c.messaging
}

// Proxy drives the proxy deployed at the core contract address.
func (c *Client) Proxy() *proxy.Client {
	return c.proxy
}

func (c *Client) ProxySupport() ProxySupport {
	return c.proxy
}

// Governance is the Starknet governance of the implementation, distinct from
// the proxy governance.
func (c *Client) Governance() *governance.Governance {
	return c.governance
}

func (c *Client) Operators() *Operators {
	return c.operators
}

func (c *Client) IsFinalized(ctx context.Context) (bool, error) {
	return contract.CallOne[bool](ctx, c.contract, "isFinalized")
}

// Finalize permanently locks the core configuration. It cannot be undone.
func (c *Client) Finalize(ctx context.Context) (*types.Receipt, error) {
	c.log.Warnw("Finalizing core contract, configuration setters will be disabled", "contract", c.Address().Hex())
	return c.contract.Transact(ctx, "finalize", nil)
}

// Operators manages the accounts allowed to update the state.
type Operators struct {
	contract *contract.Contract
	log      utils.SimpleLogger
}

func (o *Operators) IsOperator(ctx context.Context, user common.Address) (bool, error) {
	return contract.CallOne[bool](ctx, o.contract, "isOperator", user)
}

func (o *Operators) Register(ctx context.Context, operator common.Address) (*types.Receipt, error) {
	if operator == (common.Address{}) {
		return nil, &contract.EncodingError{Field: "newOperator", Err: errors.New("zero address")}
	}
	receipt, err := o.contract.Transact(ctx, "registerOperator", nil, operator)
	if err != nil {
		return nil, err
	}
	o.log.Infow("Registered operator", "operator", operator.Hex(), "tx", receipt.TxHash.Hex())
	return receipt, nil
}

func (o *Operators) Unregister(ctx context.Context, operator common.Address) (*types.Receipt, error) {
	receipt, err := o.contract.Transact(ctx, "unregisterOperator", nil, operator)
	if err != nil {
		return nil, err
	}
	o.log.Infow("Unregistered operator", "operator", operator.Hex(), "tx", receipt.TxHash.Hex())
	return receipt, nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
