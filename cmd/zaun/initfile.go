package main

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/keep-starknet-strange/zaun/proxy"
	"github.com/keep-starknet-strange/zaun/utils"
	"gopkg.in/yaml.v3"
)

// initFile is the YAML form of a proxy initialization payload as kept next to
// deployment records. Omitted values encode as zero.
type initFile struct {
	SubContractAddresses  []string     `yaml:"sub_contract_addresses,omitempty"`
	EICAddress            string       `yaml:"eic_address,omitempty"`
	ProgramHash           string       `yaml:"program_hash,omitempty"`
	AggregatorProgramHash string       `yaml:"aggregator_program_hash,omitempty"`
	VerifierAddress       string       `yaml:"verifier_address,omitempty"`
	ConfigHash            string       `yaml:"config_hash,omitempty"`
	InitialState          initialState `yaml:"initial_state"`
}

type initialState struct {
	StateRoot   string `yaml:"state_root,omitempty"`
	BlockNumber string `yaml:"block_number,omitempty"`
	BlockHash   string `yaml:"block_hash,omitempty"`
}

func readInitFile(path string) (*initFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f := new(initFile)
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// payload converts f into the aggregator or the plain core contract layout.
func (f *initFile) payload(aggregator bool) (*proxy.InitializeData, error) {
	d := &proxy.InitializeData{SubContractAddresses: make([]common.Address, len(f.SubContractAddresses))}
	for i, s := range f.SubContractAddresses {
		var err error
		if d.SubContractAddresses[i], err = yamlAddress(fmt.Sprintf("sub_contract_addresses[%d]", i), s); err != nil {
			return nil, err
		}
	}

	var (
		err   error
		state proxy.StarknetState
	)
	if d.EICAddress, err = yamlAddress("eic_address", f.EICAddress); err != nil {
		return nil, err
	}
	if state.StateRoot, err = yamlInt("state_root", f.InitialState.StateRoot); err != nil {
		return nil, err
	}
	if state.BlockNumber, err = yamlInt("block_number", f.InitialState.BlockNumber); err != nil {
		return nil, err
	}
	if state.BlockHash, err = yamlInt("block_hash", f.InitialState.BlockHash); err != nil {
		return nil, err
	}
	programHash, err := yamlInt("program_hash", f.ProgramHash)
	if err != nil {
		return nil, err
	}
	verifier, err := yamlAddress("verifier_address", f.VerifierAddress)
	if err != nil {
		return nil, err
	}
	configHash, err := yamlInt("config_hash", f.ConfigHash)
	if err != nil {
		return nil, err
	}

	if !aggregator {
		if f.AggregatorProgramHash != "" {
			return nil, fmt.Errorf("aggregator_program_hash needs the aggregator layout")
		}
		d.InitData = &proxy.CoreContractInitData{
			ProgramHash:     programHash,
			VerifierAddress: verifier,
			ConfigHash:      configHash,
			InitialState:    state,
		}
		return d, nil
	}
	aggregatorHash, err := yamlInt("aggregator_program_hash", f.AggregatorProgramHash)
	if err != nil {
		return nil, err
	}
	d.InitData = &proxy.AggregatorInitData{
		ProgramHash:           programHash,
		AggregatorProgramHash: aggregatorHash,
		VerifierAddress:       verifier,
		ConfigHash:            configHash,
		InitialState:          state,
	}
	return d, nil
}

func newInitData(aggregator bool) proxy.InitData {
	if aggregator {
		return new(proxy.AggregatorInitData)
	}
	return new(proxy.CoreContractInitData)
}

func toInitFile(d *proxy.InitializeData) *initFile {
	f := &initFile{
		SubContractAddresses: utils.Map(d.SubContractAddresses, common.Address.Hex),
		EICAddress:           d.EICAddress.Hex(),
	}

	var state proxy.StarknetState
	switch data := d.InitData.(type) {
	case *proxy.CoreContractInitData:
		f.ProgramHash = hexutil.EncodeBig(data.ProgramHash)
		f.VerifierAddress = data.VerifierAddress.Hex()
		f.ConfigHash = hexutil.EncodeBig(data.ConfigHash)
		state = data.InitialState
	case *proxy.AggregatorInitData:
		f.ProgramHash = hexutil.EncodeBig(data.ProgramHash)
		f.AggregatorProgramHash = hexutil.EncodeBig(data.AggregatorProgramHash)
		f.VerifierAddress = data.VerifierAddress.Hex()
		f.ConfigHash = hexutil.EncodeBig(data.ConfigHash)
		state = data.InitialState
	}
	f.InitialState = initialState{
		StateRoot:   hexutil.EncodeBig(state.StateRoot),
		BlockNumber: state.BlockNumber.String(),
		BlockHash:   hexutil.EncodeBig(state.BlockHash),
	}
	return f
}

func yamlInt(name, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("%s: invalid integer %q", name, s)
	}
	return v, nil
}

func yamlAddress(name, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: %w: %q", name, errInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}
