package main

import (
	"net"

	"github.com/keep-starknet-strange/zaun/messaging"
	"github.com/keep-starknet-strange/zaun/metrics"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow messaging events of the core contract until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := a.CoreContract(cmd.Context())
			if err != nil {
				return err
			}

			listener := eventLogger(a, metrics.MakeMessagingMetrics(a.registry))
			watcher := messaging.NewWatcher(core.Messaging(), listener, a.log)

			p := pool.New().WithErrors().WithContext(cmd.Context()).WithCancelOnError()
			p.Go(watcher.Run)
			if a.cfg.MetricsAddr != "" {
				l, err := net.Listen("tcp", a.cfg.MetricsAddr)
				if err != nil {
					return err
				}
				svc := metrics.NewService(l, a.registry)
				a.log.Infow("Serving metrics", "addr", svc.Addr())
				p.Go(svc.Run)
			}
			a.log.Infow("Watching messaging events", "core", core.Address().Hex())
			return p.Wait()
		},
	}
	cmd.Flags().String(metricsAddrF, defaultMetricsAddr, metricsAddrUsage)
	return cmd
}

// eventLogger logs every messaging event and forwards it to next.
func eventLogger(a *app, next messaging.EventListener) messaging.EventListener {
	return messaging.SelectiveListener{
		OnMessageToL1Cb: func(event *messaging.LogMessageToL1) {
			logEvent(a, messaging.EventLogMessageToL1, event.Message)
			next.OnMessageToL1(event)
		},
		OnMessageToL2Cb: func(event *messaging.LogMessageToL2) {
			logEvent(a, messaging.EventLogMessageToL2, event.Message)
			next.OnMessageToL2(event)
		},
		OnConsumedMessageToL1Cb: func(event *messaging.ConsumedMessageToL1) {
			logEvent(a, messaging.EventConsumedMessageToL1, event.Message)
			next.OnConsumedMessageToL1(event)
		},
		OnConsumedMessageToL2Cb: func(event *messaging.ConsumedMessageToL2) {
			logEvent(a, messaging.EventConsumedMessageToL2, event.Message)
			next.OnConsumedMessageToL2(event)
		},
		OnCancellationStartedCb: func(event *messaging.MessageToL2CancellationStarted) {
			logEvent(a, messaging.EventMessageToL2CancellationStarted, event.Message)
			next.OnCancellationStarted(event)
		},
		OnCanceledCb: func(event *messaging.MessageToL2Canceled) {
			logEvent(a, messaging.EventMessageToL2Canceled, event.Message)
			next.OnCanceled(event)
		},
	}
}

func logEvent[M messaging.Message](a *app, name string, decode func() (M, error)) {
	msg, err := decode()
	if err != nil {
		a.log.Warnw("Undecodable message in event", "event", name, "error", err)
		return
	}
	a.log.Infow(name, "hash", msg.Hash().Hex(), "direction", msg.Direction())
}
