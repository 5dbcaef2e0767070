package proxy

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/keep-starknet-strange/zaun/contract"
)

const Name = "Proxy"

const (
	UpgradedEvent                = "Upgraded"
	ImplementationAddedEvent     = "ImplementationAdded"
	ImplementationRemovedEvent   = "ImplementationRemoved"
	FinalizedImplementationEvent = "FinalizedImplementation"
)

const baseABI = `
	{"type":"function","name":"isFrozen","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[{"name":"data","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"implementation","stateMutability":"view","inputs":[],"outputs":[{"name":"_implementation","type":"address"}]},
	{"type":"function","name":"isNotFinalized","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getUpgradeActivationDelay","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"upgradeTo","stateMutability":"payable","inputs":[{"name":"newImplementation","type":"address"},{"name":"data","type":"bytes"},{"name":"finalize","type":"bool"}],"outputs":[]},
	{"type":"function","name":"addImplementation","stateMutability":"nonpayable","inputs":[{"name":"newImplementation","type":"address"},{"name":"data","type":"bytes"},{"name":"finalize","type":"bool"}],"outputs":[]},
	{"type":"function","name":"removeImplementation","stateMutability":"nonpayable","inputs":[{"name":"removedImplementation","type":"address"},{"name":"data","type":"bytes"},{"name":"finalize","type":"bool"}],"outputs":[]},
	{"type":"function","name":"proxyIsGovernor","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"proxyNominateNewGovernor","stateMutability":"nonpayable","inputs":[{"name":"newGovernor","type":"address"}],"outputs":[]},
	{"type":"function","name":"proxyRemoveGovernor","stateMutability":"nonpayable","inputs":[{"name":"governorForRemoval","type":"address"}],"outputs":[]},
	{"type":"function","name":"proxyAcceptGovernance","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"proxyCancelNomination","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"event","name":"Upgraded","anonymous":false,"inputs":[{"name":"implementation","type":"address","indexed":true}]},
	{"type":"event","name":"ImplementationAdded","anonymous":false,"inputs":[{"name":"implementation","type":"address","indexed":true},{"name":"initializer","type":"bytes","indexed":false},{"name":"finalize","type":"bool","indexed":false}]},
	{"type":"event","name":"ImplementationRemoved","anonymous":false,"inputs":[{"name":"implementation","type":"address","indexed":true},{"name":"initializer","type":"bytes","indexed":false},{"name":"finalize","type":"bool","indexed":false}]},
	{"type":"event","name":"FinalizedImplementation","anonymous":false,"inputs":[{"name":"implementation","type":"address","indexed":true}]}`

const rolesABI = `,
	{"type":"function","name":"registerAppGovernor","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"}],"outputs":[]},
	{"type":"function","name":"registerAppRoleAdmin","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"}],"outputs":[]},
	{"type":"function","name":"registerGovernanceAdmin","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"}],"outputs":[]},
	{"type":"function","name":"registerOperator","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"}],"outputs":[]},
	{"type":"function","name":"registerSecurityAdmin","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"}],"outputs":[]},
	{"type":"function","name":"registerSecurityAgent","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"}],"outputs":[]},
	{"type":"function","name":"registerTokenAdmin","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"}],"outputs":[]},
	{"type":"function","name":"registerUpgradeGovernor","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"}],"outputs":[]}`

// ABI302 is the governance-only proxy. ABI500 adds role registration.
const (
	ABI302 = "[" + baseABI + "\n]"
	ABI500 = "[" + baseABI + rolesABI + "\n]"
)

var (
	abi302 = contract.MustParseABI(ABI302)
	abi500 = contract.MustParseABI(ABI500)

	rolesSince = semver.MustParse("5.0.0")
)

// Variant is a deployed proxy ABI generation.
type Variant struct {
	version *semver.Version
}

var (
	V302 = Variant{version: semver.MustParse("3.0.2")}
	V500 = Variant{version: semver.MustParse("5.0.0")}
)

// ParseVariant picks the ABI for a proxy release such as "3.0.2" or "v5.0.0".
func ParseVariant(version string) (Variant, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return Variant{}, fmt.Errorf("proxy version %q: %w", version, err)
	}
	if v.Major() < V302.version.Major() {
		return Variant{}, fmt.Errorf("proxy version %s: %w", v, ErrUnsupportedVersion)
	}
	return Variant{version: v}, nil
}

func (v Variant) String() string {
	if v.version == nil {
		return V302.version.String()
	}
	return v.version.String()
}

// HasRoles reports whether the proxy exposes role registration.
func (v Variant) HasRoles() bool {
	return v.version != nil && !v.version.LessThan(rolesSince)
}

func (v Variant) ABI() abi.ABI {
	if v.HasRoles() {
		return abi500
	}
	return abi302
}
