package l1

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type EventListener interface {
	OnTxSent(hash common.Hash)
	OnTxMined(receipt *types.Receipt, took time.Duration)
	OnRevert(reason string)
}

type SelectiveListener struct {
	OnTxSentCb  func(hash common.Hash)
	OnTxMinedCb func(receipt *types.Receipt, took time.Duration)
	OnRevertCb  func(reason string)
}

func (l SelectiveListener) OnTxSent(hash common.Hash) {
	if l.OnTxSentCb != nil {
		l.OnTxSentCb(hash)
	}
}

func (l SelectiveListener) OnTxMined(receipt *types.Receipt, took time.Duration) {
	if l.OnTxMinedCb != nil {
		l.OnTxMinedCb(receipt, took)
	}
}

func (l SelectiveListener) OnRevert(reason string) {
	if l.OnRevertCb != nil {
		l.OnRevertCb(reason)
	}
}
