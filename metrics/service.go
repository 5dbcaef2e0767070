package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"
)

// Service serves the prometheus scrape endpoint until its context is done.
type Service struct {
	srv      *http.Server
	listener net.Listener
}

func NewService(listener net.Listener, gatherer prometheus.Gatherer) *Service {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &Service{
		srv: &http.Server{
			Addr:    listener.Addr().String(),
			Handler: mux,
			// ReadTimeout also sets ReadHeaderTimeout and IdleTimeout.
			ReadTimeout: 30 * time.Second,
		},
		listener: listener,
	}
}

func (s *Service) Addr() string {
	return s.listener.Addr().String()
}

func (s *Service) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	var wg conc.WaitGroup
	defer wg.Wait()
	wg.Go(func() {
		if err := s.srv.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	select {
	case <-ctx.Done():
		return s.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
