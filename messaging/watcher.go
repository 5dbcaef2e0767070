package messaging

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/utils"
)

type EventListener interface {
	OnMessageToL1(event *LogMessageToL1)
	OnMessageToL2(event *LogMessageToL2)
	OnConsumedMessageToL1(event *ConsumedMessageToL1)
	OnConsumedMessageToL2(event *ConsumedMessageToL2)
	OnCancellationStarted(event *MessageToL2CancellationStarted)
	OnCanceled(event *MessageToL2Canceled)
}

type SelectiveListener struct {
	OnMessageToL1Cb         func(event *LogMessageToL1)
	OnMessageToL2Cb         func(event *LogMessageToL2)
	OnConsumedMessageToL1Cb func(event *ConsumedMessageToL1)
	OnConsumedMessageToL2Cb func(event *ConsumedMessageToL2)
	OnCancellationStartedCb func(event *MessageToL2CancellationStarted)
	OnCanceledCb            func(event *MessageToL2Canceled)
}

func (l SelectiveListener) OnMessageToL1(event *LogMessageToL1) {
	if l.OnMessageToL1Cb != nil {
		l.OnMessageToL1Cb(event)
	}
}

func (l SelectiveListener) OnMessageToL2(event *LogMessageToL2) {
	if l.OnMessageToL2Cb != nil {
		l.OnMessageToL2Cb(event)
	}
}

func (l SelectiveListener) OnConsumedMessageToL1(event *ConsumedMessageToL1) {
	if l.OnConsumedMessageToL1Cb != nil {
		l.OnConsumedMessageToL1Cb(event)
	}
}

func (l SelectiveListener) OnConsumedMessageToL2(event *ConsumedMessageToL2) {
	if l.OnConsumedMessageToL2Cb != nil {
		l.OnConsumedMessageToL2Cb(event)
	}
}

func (l SelectiveListener) OnCancellationStarted(event *MessageToL2CancellationStarted) {
	if l.OnCancellationStartedCb != nil {
		l.OnCancellationStartedCb(event)
	}
}

func (l SelectiveListener) OnCanceled(event *MessageToL2Canceled) {
	if l.OnCanceledCb != nil {
		l.OnCanceledCb(event)
	}
}

// Watcher streams messaging events of the core contract to a listener until
// its context is cancelled. A failed subscription is re-established.
type Watcher struct {
	contract *contract.Contract
	listener EventListener
	log      utils.SimpleLogger
}

func NewWatcher(c *Client, listener EventListener, log utils.SimpleLogger) *Watcher {
	return &Watcher{
		contract: c.contract,
		listener: listener,
		log:      log,
	}
}

func (w *Watcher) subscribe(ctx context.Context, sink chan types.Log) (ethereum.Subscription, error) {
	sub, err := w.contract.SubscribeFilterLogs(ctx, sink, Events...)
	if err != nil {
		return nil, fmt.Errorf("subscribe to messaging events: %w", err)
	}
	return sub, nil
}

func (w *Watcher) Run(ctx context.Context) error {
	buffer := 128

	sink := make(chan types.Log, buffer)
	sub, err := w.subscribe(ctx, sink)
	if err != nil {
		return err
	}
	defer func() { sub.Unsubscribe() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			w.log.Warnw("Messaging event subscription failed, resubscribing", "error", err)
			sub.Unsubscribe()

			sub, err = w.subscribe(ctx, sink)
			if err != nil {
				return err
			}
		case log := <-sink:
			if err := w.dispatch(log); err != nil {
				w.log.Warnw("Dropping undecodable messaging event", "tx", log.TxHash.Hex(), "error", err)
			}
		}
	}
}

func (w *Watcher) dispatch(log types.Log) error {
	name, ok := w.contract.EventName(log)
	if !ok {
		return fmt.Errorf("unknown event topic")
	}
	if log.Removed {
		w.log.Debugw("Received reorged messaging event", "event", name, "tx", log.TxHash.Hex())
	}

	switch name {
	case EventLogMessageToL1:
		event := &LogMessageToL1{Raw: log}
		if err := w.contract.ParseLog(event, log, name); err != nil {
			return err
		}
		w.listener.OnMessageToL1(event)
	case EventLogMessageToL2:
		event := &LogMessageToL2{Raw: log}
		if err := w.contract.ParseLog(event, log, name); err != nil {
			return err
		}
		w.log.Debugw("Received LogMessageToL2", "nonce", event.Nonce, "fee", event.Fee, "block", log.BlockNumber)
		w.listener.OnMessageToL2(event)
	case EventConsumedMessageToL1:
		event := &ConsumedMessageToL1{Raw: log}
		if err := w.contract.ParseLog(event, log, name); err != nil {
			return err
		}
		w.listener.OnConsumedMessageToL1(event)
	default:
		event := &MessageToL2Event{Raw: log}
		if err := w.contract.ParseLog(event, log, name); err != nil {
			return err
		}
		switch name {
		case EventConsumedMessageToL2:
			w.listener.OnConsumedMessageToL2(event)
		case EventMessageToL2CancellationStarted:
			w.listener.OnCancellationStarted(event)
		case EventMessageToL2Canceled:
			w.listener.OnCanceled(event)
		default:
			return fmt.Errorf("unexpected event %s", name)
		}
	}
	return nil
}
