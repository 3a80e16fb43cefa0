// Package resources exposes the domain endpoints (occurrences, alerts, soil
// analyses) and a local alert feed derived from reported occurrences.
package resources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nauru-yvy/nauru/internal/gateway"
)

// API is the subset of *gateway.Client used here.
type API interface {
	Do(ctx context.Context, path string, opts gateway.RequestOptions, out any) error
}

// Option configures a Client.
type Option func(*Client)

// WithUnauthorizedHandler is called with every failed call's error. The
// session manager's HandleUnauthorized fits here.
func WithUnauthorizedHandler(fn func(error) bool) Option {
	return func(c *Client) { c.onError = fn }
}

// ErrMissingFields is wrapped by validation failures raised before any call.
var ErrMissingFields = errors.New("missing required fields")

// Client performs CRUD pass-through calls.
type Client struct {
	api     API
	onError func(error) bool
}

// New creates a Client.
func New(api API, opts ...Option) *Client {
	c := &Client{api: api}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, path string, opts gateway.RequestOptions, out any) error {
	err := c.api.Do(ctx, path, opts, out)
	if err != nil && c.onError != nil {
		c.onError(err)
	}
	return err
}

// ListOccurrences returns the occurrences visible to the caller.
func (c *Client) ListOccurrences(ctx context.Context) ([]Occurrence, error) {
	var out []Occurrence
	if err := c.do(ctx, "/occurrences/", gateway.RequestOptions{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateOccurrence reports a new occurrence. Type, Location and Description
// are required.
func (c *Client) CreateOccurrence(ctx context.Context, o Occurrence) (*Occurrence, error) {
	if missing := o.missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	if o.Severity == "" {
		o.Severity = SeverityMedium
	}

	var out Occurrence
	if err := c.do(ctx, "/occurrences/", gateway.RequestOptions{Method: http.MethodPost, Body: o}, &out); err != nil {
		return nil, err
	}
	if out.Type == "" {
		// server acknowledged without echoing the record
		id := out.ID
		out = o
		out.ID = id
	}
	return &out, nil
}

// OccurrenceStats returns aggregate counts.
func (c *Client) OccurrenceStats(ctx context.Context) (OccurrenceStats, error) {
	var out OccurrenceStats
	if err := c.do(ctx, "/occurrences/stats/", gateway.RequestOptions{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAlerts returns the server-side alert feed.
func (c *Client) ListAlerts(ctx context.Context) ([]Alert, error) {
	var out []Alert
	if err := c.do(ctx, "/alerts", gateway.RequestOptions{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAlert publishes an alert.
func (c *Client) CreateAlert(ctx context.Context, a Alert) (*Alert, error) {
	if strings.TrimSpace(a.Type) == "" {
		return nil, fmt.Errorf("%w: type", ErrMissingFields)
	}
	if a.Status == "" {
		a.Status = StatusActive
	}

	var out Alert
	if err := c.do(ctx, "/alerts", gateway.RequestOptions{Method: http.MethodPost, Body: a}, &out); err != nil {
		return nil, err
	}
	if out.Type == "" {
		id := out.ID
		out = a
		out.ID = id
	}
	return &out, nil
}

// ListSoilAnalyses returns recorded soil analyses.
func (c *Client) ListSoilAnalyses(ctx context.Context) ([]SoilAnalysis, error) {
	var out []SoilAnalysis
	if err := c.do(ctx, "/soil-analyses", gateway.RequestOptions{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSoilAnalysis records a soil analysis. Territory is required.
func (c *Client) CreateSoilAnalysis(ctx context.Context, s SoilAnalysis) (*SoilAnalysis, error) {
	if strings.TrimSpace(s.Territory) == "" {
		return nil, fmt.Errorf("%w: territory", ErrMissingFields)
	}

	var out SoilAnalysis
	if err := c.do(ctx, "/soil-analyses", gateway.RequestOptions{Method: http.MethodPost, Body: s}, &out); err != nil {
		return nil, err
	}
	if out.Territory == "" {
		id := out.ID
		out = s
		out.ID = id
	}
	return &out, nil
}

// Health queries the API health endpoint. A 2xx response without a JSON
// body counts as healthy.
func (c *Client) Health(ctx context.Context) (*ServiceHealth, error) {
	var out ServiceHealth
	err := c.api.Do(ctx, "/auth/health", gateway.RequestOptions{}, &out)

	var pe *gateway.ParseError
	switch {
	case errors.As(err, &pe):
		return &ServiceHealth{Status: "ok", Message: pe.Body}, nil
	case err != nil:
		return nil, err
	}
	if out.Status == "" {
		out.Status = "ok"
	}
	return &out, nil
}

// ReportOccurrence creates the occurrence remotely and records the derived
// alert in book.
func (c *Client) ReportOccurrence(ctx context.Context, book *AlertBook, o Occurrence) (*Occurrence, Alert, error) {
	created, err := c.CreateOccurrence(ctx, o)
	if err != nil {
		return nil, Alert{}, err
	}
	alert, err := book.FromOccurrence(*created)
	if err != nil {
		return created, alert, fmt.Errorf("record alert: %w", err)
	}
	return created, alert, nil
}
