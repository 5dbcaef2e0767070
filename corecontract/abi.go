package corecontract

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/messaging"
	"github.com/keep-starknet-strange/zaun/proxy"
)

const Name = "StarknetCoreContract"

const (
	EventLogStateUpdate         = "LogStateUpdate"
	EventLogStateTransitionFact = "LogStateTransitionFact"
	EventLogOperatorAdded       = "LogOperatorAdded"
	EventLogOperatorRemoved     = "LogOperatorRemoved"
	EventFinalized              = "Finalized"
	EventLogNominatedGovernor   = "LogNominatedGovernor"
	EventLogNewGovernorAccepted = "LogNewGovernorAccepted"
	EventLogRemovedGovernor     = "LogRemovedGovernor"
	EventLogNominationCancelled = "LogNominationCancelled"
)

// StateABI is the core state facet shared by both flavours.
const StateABI = `[
	{"type":"function","name":"setProgramHash","stateMutability":"nonpayable","inputs":[{"name":"newProgramHash","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setConfigHash","stateMutability":"nonpayable","inputs":[{"name":"newConfigHash","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setMessageCancellationDelay","stateMutability":"nonpayable","inputs":[{"name":"delayInSeconds","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"programHash","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"configHash","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"identify","stateMutability":"pure","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"stateRoot","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"stateBlockNumber","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"int256"}]},
	{"type":"function","name":"stateBlockHash","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"LogStateUpdate","anonymous":false,"inputs":[
		{"name":"globalRoot","type":"uint256","indexed":false},
		{"name":"blockNumber","type":"int256","indexed":false},
		{"name":"blockHash","type":"uint256","indexed":false}]},
	{"type":"event","name":"LogStateTransitionFact","anonymous":false,"inputs":[
		{"name":"stateTransitionFact","type":"bytes32","indexed":false}]}
]`

// ValidityUpdateABI is updateState of the validity rollup, which commits to
// the data availability payload.
const ValidityUpdateABI = `[
	{"type":"function","name":"updateState","stateMutability":"nonpayable","inputs":[
		{"name":"programOutput","type":"uint256[]"},
		{"name":"onchainDataHash","type":"uint256"},
		{"name":"onchainDataSize","type":"uint256"}],"outputs":[]}
]`

// SovereignUpdateABI is updateState of a sovereign appchain settlement contract.
const SovereignUpdateABI = `[
	{"type":"function","name":"updateState","stateMutability":"nonpayable","inputs":[
		{"name":"programOutput","type":"uint256[]"}],"outputs":[]}
]`

const OperatorABI = `[
	{"type":"function","name":"registerOperator","stateMutability":"nonpayable","inputs":[{"name":"newOperator","type":"address"}],"outputs":[]},
	{"type":"function","name":"unregisterOperator","stateMutability":"nonpayable","inputs":[{"name":"removedOperator","type":"address"}],"outputs":[]},
	{"type":"function","name":"isOperator","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"LogOperatorAdded","anonymous":false,"inputs":[{"name":"operator","type":"address","indexed":false}]},
	{"type":"event","name":"LogOperatorRemoved","anonymous":false,"inputs":[{"name":"operator","type":"address","indexed":false}]}
]`

const FinalizableABI = `[
	{"type":"function","name":"isFinalized","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"finalize","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"event","name":"Finalized","anonymous":false,"inputs":[]}
]`

const GovernanceABI = `[
	{"type":"function","name":"starknetIsGovernor","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"starknetNominateNewGovernor","stateMutability":"nonpayable","inputs":[{"name":"newGovernor","type":"address"}],"outputs":[]},
	{"type":"function","name":"starknetRemoveGovernor","stateMutability":"nonpayable","inputs":[{"name":"governorForRemoval","type":"address"}],"outputs":[]},
	{"type":"function","name":"starknetAcceptGovernance","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"starknetCancelNomination","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"event","name":"LogNominatedGovernor","anonymous":false,"inputs":[{"name":"nominatedGovernor","type":"address","indexed":false}]},
	{"type":"event","name":"LogNewGovernorAccepted","anonymous":false,"inputs":[{"name":"acceptedGovernor","type":"address","indexed":false}]},
	{"type":"event","name":"LogRemovedGovernor","anonymous":false,"inputs":[{"name":"removedGovernor","type":"address","indexed":false}]},
	{"type":"event","name":"LogNominationCancelled","anonymous":false,"inputs":[]}
]`

var (
	stateABI          = contract.MustParseABI(StateABI)
	validityUpdateABI = contract.MustParseABI(ValidityUpdateABI)
	sovereignABI      = contract.MustParseABI(SovereignUpdateABI)
	operatorABI       = contract.MustParseABI(OperatorABI)
	finalizableABI    = contract.MustParseABI(FinalizableABI)
	governanceABI     = contract.MustParseABI(GovernanceABI)
	messagingABI      = contract.MustParseABI(messaging.ABI)
)

// ABI is every facet reachable at the core contract address: the proxy in
// front of it, then the implementation.
func ABI(flavour Flavour, variant proxy.Variant) abi.ABI {
	update := validityUpdateABI
	if flavour == Sovereign {
		update = sovereignABI
	}
	return contract.MergeABI(
		variant.ABI(),
		stateABI,
		update,
		operatorABI,
		finalizableABI,
		governanceABI,
		messagingABI,
	)
}
