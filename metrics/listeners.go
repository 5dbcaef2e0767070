// Package metrics exposes prometheus instrumentation for L1 transactions,
// contract calls and messaging events.
package metrics

import (
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/keep-starknet-strange/zaun/contract"
	"github.com/keep-starknet-strange/zaun/l1"
	"github.com/keep-starknet-strange/zaun/messaging"
	"github.com/prometheus/client_golang/prometheus"
)

func MakeL1Metrics(reg prometheus.Registerer) l1.EventListener {
	sent := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "l1",
		Subsystem: "tx",
		Name:      "sent",
	})
	mined := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "l1",
		Subsystem: "tx",
		Name:      "confirmation_seconds",
		Buckets:   []float64{1, 6, 12, 24, 36, 60, 120, 300, math.Inf(0)},
	})
	gasUsed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "l1",
		Subsystem: "tx",
		Name:      "gas_used",
	})
	reverts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "l1",
		Subsystem: "tx",
		Name:      "reverts",
	}, []string{"reason"})

	reg.MustRegister(sent, mined, gasUsed, reverts)
	return l1.SelectiveListener{
		OnTxSentCb: func(common.Hash) {
			sent.Inc()
		},
		OnTxMinedCb: func(receipt *types.Receipt, took time.Duration) {
			mined.Observe(took.Seconds())
			gasUsed.Add(float64(receipt.GasUsed))
		},
		OnRevertCb: func(reason string) {
			reverts.WithLabelValues(reason).Inc()
		},
	}
}

func MakeContractMetrics(reg prometheus.Registerer) contract.EventListener {
	latencyBuckets := []float64{
		0.01,
		0.025,
		0.05,
		0.1,
		0.25,
		0.5,
		1,
		2.5,
		5,
		math.Inf(0),
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contract",
		Name:      "calls",
	}, []string{"contract", "method"})
	failedCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contract",
		Name:      "failed_calls",
	}, []string{"contract", "method"})
	callLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "contract",
		Name:      "call_latency_seconds",
		Buckets:   latencyBuckets,
	}, []string{"contract"})
	transactions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contract",
		Name:      "transactions",
	}, []string{"contract", "method"})
	failedTransactions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contract",
		Name:      "failed_transactions",
	}, []string{"contract", "method"})

	reg.MustRegister(calls, failedCalls, callLatency, transactions, failedTransactions)
	return &contract.SelectiveListener{
		OnCallCb: func(name, method string, took time.Duration, err error) {
			calls.WithLabelValues(name, method).Inc()
			callLatency.WithLabelValues(name).Observe(took.Seconds())
			if err != nil {
				failedCalls.WithLabelValues(name, method).Inc()
			}
		},
		OnTransactCb: func(name, method string, _ time.Duration, err error) {
			transactions.WithLabelValues(name, method).Inc()
			if err != nil {
				failedTransactions.WithLabelValues(name, method).Inc()
			}
		},
	}
}

func MakeMessagingMetrics(reg prometheus.Registerer) messaging.EventListener {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "messaging",
		Name:      "events",
	}, []string{"event"})
	nonce := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "messaging",
		Name:      "l1_to_l2_nonce",
	})
	fees := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "messaging",
		Name:      "l1_to_l2_fees_wei",
	})

	reg.MustRegister(events, nonce, fees)
	return messaging.SelectiveListener{
		OnMessageToL1Cb: func(*messaging.LogMessageToL1) {
			events.WithLabelValues(messaging.EventLogMessageToL1).Inc()
		},
		OnMessageToL2Cb: func(event *messaging.LogMessageToL2) {
			events.WithLabelValues(messaging.EventLogMessageToL2).Inc()
			nonce.Set(bigToFloat(event.Nonce))
			fees.Add(bigToFloat(event.Fee))
		},
		OnConsumedMessageToL1Cb: func(*messaging.ConsumedMessageToL1) {
			events.WithLabelValues(messaging.EventConsumedMessageToL1).Inc()
		},
		OnConsumedMessageToL2Cb: func(*messaging.ConsumedMessageToL2) {
			events.WithLabelValues(messaging.EventConsumedMessageToL2).Inc()
		},
		OnCancellationStartedCb: func(*messaging.MessageToL2CancellationStarted) {
			events.WithLabelValues(messaging.EventMessageToL2CancellationStarted).Inc()
		},
		OnCanceledCb: func(*messaging.MessageToL2Canceled) {
			events.WithLabelValues(messaging.EventMessageToL2Canceled).Inc()
		},
	}
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
