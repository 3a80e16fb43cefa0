package cmd

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/nauru-yvy/nauru/internal/config"
	nerrors "github.com/nauru-yvy/nauru/internal/errors"
	"github.com/nauru-yvy/nauru/internal/gateway"
	"github.com/nauru-yvy/nauru/internal/log"
	"github.com/nauru-yvy/nauru/internal/metrics"
	"github.com/nauru-yvy/nauru/internal/resources"
	"github.com/nauru-yvy/nauru/internal/session"
	"github.com/nauru-yvy/nauru/internal/storage"
	"github.com/nauru-yvy/nauru/internal/telemetry"
	"github.com/nauru-yvy/nauru/internal/ux"
	"github.com/nauru-yvy/nauru/internal/version"
)

// app is the object graph shared by the commands that talk to the API.
type app struct {
	cc     *CommandContext
	cfg    *config.Config
	logger *log.Logger
	out    ux.Formatter

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	store     *storage.FileStore
	api       *gateway.Client
	session   *session.Manager
	resources *resources.Client
	alerts    *resources.AlertBook

	span              trace.Span
	shutdownTelemetry func(context.Context) error
}

// newApp wires configuration, logging, telemetry, metrics, the session
// store, the gateway and the session manager, then rehydrates the session.
// Callers must defer close.
func newApp(cmd *cobra.Command) (*app, error) {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := cc.LoadConfig()
	if err != nil {
		return nil, err
	}
	out, err := cc.Formatter(cmd.OutOrStdout())
	if err != nil {
		return nil, err
	}

	logger := log.New(log.Config{
		Level:          log.ParseLevel(cfg.Logging.Level),
		Format:         log.ParseFormat(cfg.Logging.Format),
		Output:         cmd.ErrOrStderr(),
		ServiceName:    "nauru",
		ServiceVersion: version.Version,
	})
	log.SetDefaultLogger(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version.Version
	tcfg.Enabled = cfg.Telemetry.Enabled
	tcfg.Endpoint = cfg.Telemetry.Endpoint
	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
		shutdown = func(context.Context) error { return nil }
	}
	ctx, span := telemetry.StartCommandSpan(ctx, cmd.CommandPath())
	cmd.SetContext(ctx)

	registry, mt := metrics.NewRegistry()

	a := &app{
		cc:                cc,
		cfg:               cfg,
		logger:            logger,
		out:               out,
		registry:          registry,
		metrics:           mt,
		span:              span,
		shutdownTelemetry: shutdown,
	}

	store, err := storage.NewFileStore(cfg.Storage.Path, cfg.Storage.Passphrase)
	if err != nil {
		a.close(ctx, err)
		return nil, storeError(cfg.Storage.Path, err)
	}
	a.store = store

	a.api = gateway.New(store, gateway.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  logger,
		Metrics: mt,
	})

	dialect, _ := session.ParseDialect(cfg.Session.Dialect)
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithMetrics(mt),
		session.WithBackgroundVerify(cfg.Session.VerifyOnStart),
		session.WithRemoteProfileUpdate(cfg.Session.RemoteProfileUpdate),
		session.WithDialect(dialect),
	}
	if cfg.Session.CoalesceInFlight {
		opts = append(opts, session.WithInFlightGuard())
	}
	a.session = session.NewManager(a.api, store, opts...)

	a.resources = resources.New(a.api, resources.WithUnauthorizedHandler(a.session.HandleUnauthorized))

	book, err := resources.NewAlertBook(resources.WithAlertStore(store), resources.WithAlertMetrics(mt))
	if err != nil {
		a.close(ctx, err)
		return nil, storeError(cfg.Storage.Path, err)
	}
	a.alerts = book

	a.session.Rehydrate(ctx)
	return a, nil
}

// close waits for background session work and flushes telemetry. err is
// the command result, recorded on the command span.
func (a *app) close(ctx context.Context, err error) {
	if a.session != nil {
		a.session.Wait()
	}
	if a.span != nil {
		if err != nil {
			telemetry.RecordError(a.span, err)
		}
		a.span.End()
	}
	if a.shutdownTelemetry != nil {
		if serr := a.shutdownTelemetry(context.WithoutCancel(ctx)); serr != nil {
			a.logger.Debug("telemetry shutdown failed", "error", serr)
		}
	}
}

// run wraps a command body that needs the app graph.
func run(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer func() { a.close(cmd.Context(), err) }()
		return fn(cmd, a, args)
	}
}

// requireSession fails with a not-signed-in error unless the session is
// authenticated.
func (a *app) requireSession() (session.User, error) {
	u, ok := a.session.CurrentUser()
	if !ok {
		return session.User{}, nerrors.NewNotSignedInError()
	}
	return u, nil
}
