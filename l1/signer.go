package l1

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer abstracts transaction signing for the client.
type Signer interface {
	From() common.Address
	SignTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)
}

// LocalECDSASigner signs transactions with a local secp256k1 private key.
type LocalECDSASigner struct {
	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    common.Address
}

var _ Signer = (*LocalECDSASigner)(nil)

func NewLocalECDSASigner(chainID *big.Int, key *ecdsa.PrivateKey) *LocalECDSASigner {
	return &LocalECDSASigner{
		chainID: chainID,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
	}
}

// NewLocalECDSASignerFromHex parses a hex private key with or without the 0x prefix.
func NewLocalECDSASignerFromHex(chainID *big.Int, keyHex string) (*LocalECDSASigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewLocalECDSASigner(chainID, key), nil
}

func (s *LocalECDSASigner) From() common.Address { return s.from }

func (s *LocalECDSASigner) SignTx(_ context.Context, tx *types.Transaction) (*types.Transaction, error) {
	if s.chainID == nil {
		return nil, errors.New("signer chainID not set")
	}
	return types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
}
