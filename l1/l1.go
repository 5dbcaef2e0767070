package l1

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Call is a single contract invocation: target, ABI-encoded calldata and attached wei.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Reader answers read-only queries against L1.
//
//go:generate mockgen -destination=../mocks/mock_l1.go -package=mocks github.com/keep-starknet-strange/zaun/l1 Reader,Transactor,Backend
type Reader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// Transactor submits one state-changing call and waits for its receipt.
// A call rejected by the contract yields a *RevertError; transport failures are
// returned as they are and never retried.
type Transactor interface {
	From() common.Address
	SubmitCall(ctx context.Context, call Call) (*types.Receipt, error)
}

type Backend interface {
	Reader
	Transactor
}
