// Package governance drives the nominate/accept governor handoff shared by the
// proxy and the Starknet core contract.
package governance

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/l1"
)

var (
	ErrOnlyGovernance  = &l1.RevertError{Reason: "ONLY_GOVERNANCE"}
	ErrAlreadyGovernor = &l1.RevertError{Reason: "ALREADY_GOVERNOR"}
	ErrNotGovernor     = &l1.RevertError{Reason: "NOT_GOVERNOR"}
	ErrSelfRemove      = &l1.RevertError{Reason: "GOVERNOR_SELF_REMOVE"}
	ErrOnlyCandidate   = &l1.RevertError{Reason: "ONLY_CANDIDATE_GOVERNOR"}
)

// Methods names the governance entry points of one contract flavour.
type Methods struct {
	IsGovernor       string
	Nominate         string
	Remove           string
	Accept           string
	CancelNomination string
}

var (
	Proxy = Methods{
		IsGovernor:       "proxyIsGovernor",
		Nominate:         "proxyNominateNewGovernor",
		Remove:           "proxyRemoveGovernor",
		Accept:           "proxyAcceptGovernance",
		CancelNomination: "proxyCancelNomination",
	}
	Starknet = Methods{
		IsGovernor:       "starknetIsGovernor",
		Nominate:         "starknetNominateNewGovernor",
		Remove:           "starknetRemoveGovernor",
		Accept:           "starknetAcceptGovernance",
		CancelNomination: "starknetCancelNomination",
	}
)

// Governance is a two-phase ownership transfer: a nominee has no power until
// it accepts, and a pending nomination can be cancelled before that.
type Governance struct {
	contract *contract.Contract
	methods  Methods
}

func New(c *contract.Contract, methods Methods) *Governance {
	return &Governance{contract: c, methods: methods}
}

func (g *Governance) IsGovernor(ctx context.Context, who common.Address) (bool, error) {
	return contract.CallOne[bool](ctx, g.contract, g.methods.IsGovernor, who)
}

// NominateNewGovernor proposes newGovernor. The nominee must call AcceptGovernance.
func (g *Governance) NominateNewGovernor(ctx context.Context, newGovernor common.Address) (*types.Receipt, error) {
	if newGovernor == (common.Address{}) {
		return nil, &contract.EncodingError{Field: "newGovernor", Err: errors.New("zero address")}
	}
	isGovernor, err := g.IsGovernor(ctx, newGovernor)
	if err != nil {
		return nil, err
	}
	if isGovernor {
		return nil, &contract.PreconditionError{Op: g.methods.Nominate, Err: ErrAlreadyGovernor}
	}
	return g.contract.Transact(ctx, g.methods.Nominate, nil, newGovernor)
}

func (g *Governance) RemoveGovernor(ctx context.Context, governor common.Address) (*types.Receipt, error) {
	if governor == g.contract.Backend().From() {
		return nil, &contract.PreconditionError{Op: g.methods.Remove, Err: ErrSelfRemove}
	}
	return g.contract.Transact(ctx, g.methods.Remove, nil, governor)
}

// AcceptGovernance completes a nomination of the sending account.
func (g *Governance) AcceptGovernance(ctx context.Context) (*types.Receipt, error) {
	return g.contract.Transact(ctx, g.methods.Accept, nil)
}

func (g *Governance) CancelNomination(ctx context.Context) (*types.Receipt, error) {
	return g.contract.Transact(ctx, g.methods.CancelNomination, nil)
}
