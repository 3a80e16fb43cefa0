package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nauru-yvy/nauru/internal/gateway"
	"github.com/nauru-yvy/nauru/internal/resources"
	"github.com/nauru-yvy/nauru/internal/session"
	"github.com/nauru-yvy/nauru/internal/storage"
)

// APIProbe is satisfied by *resources.Client.
type APIProbe interface {
	Health(ctx context.Context) (*resources.ServiceHealth, error)
}

// APIChecker calls the API health endpoint.
type APIChecker struct {
	probe APIProbe
}

// NewAPIChecker creates an APIChecker.
func NewAPIChecker(probe APIProbe) *APIChecker {
	return &APIChecker{probe: probe}
}

func (c *APIChecker) Name() string { return "api" }

func (c *APIChecker) Check(ctx context.Context) *Result {
	start := time.Now()
	report, err := c.probe.Health(ctx)
	latency := time.Since(start)

	var (
		ne *gateway.NetworkError
		he *gateway.HTTPError
	)
	switch {
	case err == nil:
		return Healthy("API reachable").
			WithDetail("status", report.Status).
			WithLatency(latency)
	case errors.As(err, &ne):
		return Unhealthy("API unreachable").
			WithDetail("timeout", ne.Timeout).
			WithDetail("error", err.Error()).
			WithLatency(latency)
	case errors.As(err, &he) && he.Status >= http.StatusInternalServerError:
		return Unhealthy("API reports a server error").
			WithDetail("status_code", he.Status).
			WithDetail("error", he.Message).
			WithLatency(latency)
	case errors.As(err, &he):
		return Degraded("API health endpoint returned an error").
			WithDetail("status_code", he.Status).
			WithDetail("error", he.Message).
			WithLatency(latency)
	default:
		return Unhealthy(err.Error()).WithLatency(latency)
	}
}

// StoreChecker verifies the session store can be read and decrypted.
type StoreChecker struct {
	store storage.Reader
}

// NewStoreChecker creates a StoreChecker.
func NewStoreChecker(store storage.Reader) *StoreChecker {
	return &StoreChecker{store: store}
}

func (c *StoreChecker) Name() string { return "store" }

func (c *StoreChecker) Check(ctx context.Context) *Result {
	var path string
	if p, ok := c.store.(interface{ Path() string }); ok {
		path = p.Path()
	}

	_, present, err := c.store.Get(storage.KeyToken)
	if err != nil {
		r := Unhealthy("session store unreadable").WithDetail("error", err.Error())
		if errors.Is(err, storage.ErrCorrupt) {
			r.Message = "session store is corrupt, remove it and sign in again"
		}
		if path != "" {
			r.WithDetail("path", path)
		}
		return r
	}

	r := Healthy("session store readable").WithDetail("has_token", present)
	if path != "" {
		r.WithDetail("path", path)
	}
	return r
}

// SessionSource is satisfied by *session.Manager.
type SessionSource interface {
	State() session.State
	TokenExpiry() (time.Time, bool)
}

// SessionChecker reports whether a usable session is present.
type SessionChecker struct {
	source SessionSource
	now    func() time.Time
}

// NewSessionChecker creates a SessionChecker.
func NewSessionChecker(source SessionSource) *SessionChecker {
	return &SessionChecker{source: source, now: time.Now}
}

func (c *SessionChecker) Name() string { return "session" }

func (c *SessionChecker) Check(ctx context.Context) *Result {
	state := c.source.State()
	if state != session.Authenticated {
		return Degraded("not signed in").WithDetail("state", state.String())
	}

	r := Healthy("signed in").WithDetail("state", state.String())
	if exp, ok := c.source.TokenExpiry(); ok {
		r.WithDetail("expires_at", exp.UTC().Format(time.RFC3339))
		if !exp.After(c.now()) {
			r.Status = StatusDegraded
			r.Message = "token expired, run 'nauru auth refresh' or sign in again"
		}
	}
	return r
}
