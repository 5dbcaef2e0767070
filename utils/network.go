package utils

import (
	"encoding"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/keep-starknet-strange/zaun/core/felt"
	"github.com/spf13/pflag"
)

var (
	ErrUnknownNetwork      = errors.New("unknown network (known: mainnet, sepolia, sepolia-integration, devnet)")
	ErrNoKnownCoreContract = errors.New("network has no known core contract address")
)

type Network int

// The following are necessary for Cobra and Viper, respectively, to unmarshal
// CLI/config parameters properly.
var (
	_ pflag.Value              = (*Network)(nil)
	_ encoding.TextUnmarshaler = (*Network)(nil)
)

const (
	Mainnet Network = iota + 1
	Sepolia
	SepoliaIntegration
	Devnet
)

func (n Network) String() string {
	switch n {
	case Mainnet:
		return "mainnet"
	case Sepolia:
		return "sepolia"
	case SepoliaIntegration:
		return "sepolia-integration"
	case Devnet:
		return "devnet"
	default:
		// Should not happen.
		panic(ErrUnknownNetwork)
	}
}

func (n Network) MarshalYAML() (interface{}, error) {
	return n.String(), nil
}

func (n *Network) MarshalJSON() ([]byte, error) {
	return json.RawMessage(`"` + n.String() + `"`), nil
}

func (n *Network) Set(s string) error {
	switch s {
	case "MAINNET", "mainnet":
		*n = Mainnet
	case "SEPOLIA", "sepolia":
		*n = Sepolia
	case "SEPOLIA_INTEGRATION", "sepolia-integration":
		*n = SepoliaIntegration
	case "DEVNET", "devnet":
		*n = Devnet
	default:
		return ErrUnknownNetwork
	}
	return nil
}

func (n *Network) Type() string {
	return "Network"
}

func (n *Network) UnmarshalText(text []byte) error {
	return n.Set(string(text))
}

func (n Network) ChainIDString() string {
	switch n {
	case Mainnet:
		return "SN_MAIN"
	case Sepolia:
		return "SN_SEPOLIA"
	case SepoliaIntegration:
		return "SN_INTEGRATION_SEPOLIA"
	case Devnet:
		return "SN_DEVNET"
	default:
		// Should not happen.
		panic(ErrUnknownNetwork)
	}
}

func (n Network) ChainID() *felt.Felt {
	return new(felt.Felt).SetBytes([]byte(n.ChainIDString()))
}

func (n Network) DefaultL1ChainID() *big.Int {
	var chainID int64
	switch n {
	case Mainnet:
		chainID = 1
	case Sepolia, SepoliaIntegration:
		chainID = 11155111
	case Devnet:
		chainID = 31337
	default:
		// Should not happen.
		panic(ErrUnknownNetwork)
	}
	return big.NewInt(chainID)
}

// CoreContractAddress returns the address of the Starknet core contract proxy on L1.
func (n Network) CoreContractAddress() (common.Address, error) {
	// The docs states the addresses for each network: https://docs.starknet.io/documentation/useful_info/
	switch n {
	case Mainnet:
		return common.HexToAddress("0xc662c410C0ECf747543f5bA90660f6ABeBD9C8c4"), nil
	case Sepolia:
		return common.HexToAddress("0xE2Bb56ee936fd6433DC0F6e7e3b8365C906AA057"), nil
	case SepoliaIntegration:
		return common.HexToAddress("0x4737c0c1B4D5b1A687B42610DdabEE781152359c"), nil
	case Devnet:
		return common.Address{}, ErrNoKnownCoreContract
	default:
		// Should not happen.
		return common.Address{}, ErrUnknownNetwork
	}
}
