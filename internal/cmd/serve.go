package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nauru-yvy/nauru/internal/health"
	"github.com/nauru-yvy/nauru/internal/metrics"
	"github.com/nauru-yvy/nauru/internal/server"
	"github.com/nauru-yvy/nauru/internal/version"
)

// DefaultStatusAddr is used by serve when neither --address nor
// --metrics-addr is given.
const DefaultStatusAddr = "127.0.0.1:9464"

func newServeCmd() *cobra.Command {
	var (
		address        string
		verifyInterval time.Duration
	)

	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve health probes and metrics for the local session",
		Long: `Serve the status endpoint until interrupted.

Endpoints:
  /health/live    - process alive
  /health/ready   - API reachable, store readable, session present
  /health/startup - listener bound
  /healthz        - same as /health/ready
  /metrics        - Prometheus metrics

With --verify-interval the stored session is checked with the server
periodically, so /health/ready follows token revocation.`,
		Args: cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			addr := address
			if addr == "" {
				addr = a.cfg.Metrics.Addr
			}
			if addr == "" {
				addr = DefaultStatusAddr
			}

			ctx := cmd.Context()
			stop, err := startStatusServer(ctx, a, addr)
			if err != nil {
				return err
			}
			defer stop()

			fmt.Fprintf(cmd.ErrOrStderr(), "Serving status on http://%s (Ctrl+C to stop)\n", addr)

			var tick <-chan time.Time
			if verifyInterval > 0 {
				ticker := time.NewTicker(verifyInterval)
				defer ticker.Stop()
				tick = ticker.C
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-tick:
					if r := a.session.Verify(ctx); !r.Success {
						a.logger.Warn("session verification failed", "error", r.Error)
					}
				}
			}
		}),
	}

	c.Flags().StringVar(&address, "address", "", "listen address (default --metrics-addr or "+DefaultStatusAddr+")")
	c.Flags().DurationVar(&verifyInterval, "verify-interval", 0, "verify the session this often (0 disables)")
	return c
}

// startStatusServer serves health probes for the app's API, store and
// session plus its metrics registry on addr. stop shuts the server down and
// waits for it.
func startStatusServer(ctx context.Context, a *app, addr string) (stop func(), err error) {
	pm := health.NewProbeManager(version.Version)
	pm.AddChecker(health.NewAPIChecker(a.resources))
	pm.AddChecker(health.NewStoreChecker(a.store))
	pm.AddChecker(health.NewSessionChecker(a.session))

	srv := server.New(pm, server.Config{
		Address: addr,
		Metrics: metrics.HandlerFor(a.registry),
		Logger:  a.logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, ready) }()

	select {
	case <-ready:
	case err := <-done:
		cancel()
		return nil, err
	}

	return func() {
		cancel()
		if err := <-done; err != nil {
			a.logger.Warn("status server shutdown failed", "error", err)
		}
	}, nil
}
