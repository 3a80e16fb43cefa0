// Package nauru is the embeddable client for the Nauru territorial
// monitoring API.
//
// Usage:
//
//	c, err := nauru.New(nauru.Options{BaseURL: "https://api.example.org/api/v1"})
//	if err != nil { ... }
//	defer c.Close()
//	if err := c.SignIn(ctx, email, password); err != nil { ... }
//	occ, alert, err := c.ReportOccurrence(ctx, nauru.Occurrence{...})
package nauru

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/nauru-yvy/nauru/internal/config"
	"github.com/nauru-yvy/nauru/internal/gateway"
	"github.com/nauru-yvy/nauru/internal/log"
	"github.com/nauru-yvy/nauru/internal/resources"
	"github.com/nauru-yvy/nauru/internal/session"
	"github.com/nauru-yvy/nauru/internal/storage"
	"github.com/nauru-yvy/nauru/internal/version"
)

type (
	User          = session.User
	State         = session.State
	Snapshot      = session.Snapshot
	SignUpRequest = session.SignUpRequest
	ProfileUpdate = session.ProfileUpdate

	ID           = resources.ID
	Severity     = resources.Severity
	Occurrence   = resources.Occurrence
	Alert        = resources.Alert
	SoilAnalysis = resources.SoilAnalysis
)

const (
	Unknown       = session.Unknown
	Anonymous     = session.Anonymous
	Authenticated = session.Authenticated
)

// ErrNotSignedIn is returned by calls that need a session.
var ErrNotSignedIn = errors.New(session.MsgNotSignedIn)

// Options configures a Client. Zero values select defaults.
type Options struct {
	BaseURL string
	Timeout time.Duration

	// StorePath selects an encrypted file store. Empty keeps the session
	// in memory only.
	StorePath  string
	Passphrase string

	// Dialect is "canonical" or "legacy".
	Dialect    string
	HTTPClient *http.Client

	// Logger receives the client's structured logs. Nil discards them.
	Logger *slog.Logger
}

// Client bundles the session manager, the resource client and the local
// alert feed over one gateway.
type Client struct {
	store     storage.Store
	api       *gateway.Client
	session   *session.Manager
	resources *resources.Client
	alerts    *resources.AlertBook
}

// New creates a Client and restores any session found in the store.
func New(opts Options) (*Client, error) {
	dialect, err := session.ParseDialect(opts.Dialect)
	if err != nil {
		return nil, err
	}
	logger := log.FromSlog(opts.Logger)

	var store storage.Store = storage.NewMemoryStore()
	if opts.StorePath != "" {
		fs, err := storage.NewFileStore(opts.StorePath, opts.Passphrase)
		if err != nil {
			return nil, err
		}
		store = fs
	}

	c := &Client{store: store}
	c.api = gateway.New(store, gateway.Config{
		BaseURL:    opts.BaseURL,
		Timeout:    opts.Timeout,
		HTTPClient: opts.HTTPClient,
		UserAgent:  version.UserAgent(),
		Logger:     logger,
	})
	c.session = session.NewManager(c.api, store,
		session.WithLogger(logger),
		session.WithDialect(dialect),
		session.WithInFlightGuard(),
	)
	c.resources = resources.New(c.api, resources.WithUnauthorizedHandler(c.session.HandleUnauthorized))
	if c.alerts, err = resources.NewAlertBook(resources.WithAlertStore(store)); err != nil {
		return nil, err
	}

	c.session.Rehydrate(context.Background())
	return c, nil
}

// NewFromConfig creates a Client from a config file, as the CLI does.
// An empty path selects the default location.
func NewFromConfig(path string) (*Client, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(Options{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		StorePath:  cfg.Storage.Path,
		Passphrase: cfg.Storage.Passphrase,
		Dialect:    cfg.Session.Dialect,
	})
}

// Close waits for background session work.
func (c *Client) Close() error {
	c.session.Wait()
	return nil
}

// State returns the current session state.
func (c *Client) State() State { return c.session.State() }

// CurrentUser returns the signed-in user.
func (c *Client) CurrentUser() (User, bool) { return c.session.CurrentUser() }

// Subscribe calls fn after every session change until the returned func is
// called.
func (c *Client) Subscribe(fn func(Snapshot)) func() { return c.session.Subscribe(fn) }

func (c *Client) SignIn(ctx context.Context, email, password string) error {
	return resultErr(c.session.SignIn(ctx, email, password))
}

func (c *Client) SignUp(ctx context.Context, req SignUpRequest) error {
	return resultErr(c.session.SignUp(ctx, req))
}

func (c *Client) SignOut(ctx context.Context) error {
	return resultErr(c.session.SignOut(ctx))
}

func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) error {
	return resultErr(c.session.UpdateProfile(ctx, upd))
}

// Verify asks the server whether the token is still valid.
func (c *Client) Verify(ctx context.Context) error {
	return resultErr(c.session.Verify(ctx))
}

func (c *Client) Occurrences(ctx context.Context) ([]Occurrence, error) {
	return c.resources.ListOccurrences(ctx)
}

// ReportOccurrence creates o and records the derived alert in the local feed.
func (c *Client) ReportOccurrence(ctx context.Context, o Occurrence) (*Occurrence, Alert, error) {
	return c.resources.ReportOccurrence(ctx, c.alerts, o)
}

func (c *Client) Alerts(ctx context.Context) ([]Alert, error) {
	return c.resources.ListAlerts(ctx)
}

// LocalAlerts returns the alerts recorded on this machine, newest first.
func (c *Client) LocalAlerts() []Alert {
	return c.alerts.List()
}

func (c *Client) SoilAnalyses(ctx context.Context) ([]SoilAnalysis, error) {
	return c.resources.ListSoilAnalyses(ctx)
}

func (c *Client) CreateSoilAnalysis(ctx context.Context, s SoilAnalysis) (*SoilAnalysis, error) {
	return c.resources.CreateSoilAnalysis(ctx, s)
}

func resultErr(r session.Result) error {
	switch {
	case r.Success:
		return nil
	case r.Error == session.MsgNotSignedIn:
		return ErrNotSignedIn
	default:
		return errors.New(r.Error)
	}
}
