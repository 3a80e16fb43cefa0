// Package gateway performs API calls with the cross-cutting behaviour every
// call shares: bearer token from the session store, JSON content type,
// a fixed timeout and classification of failures into a closed error union.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nauru-yvy/nauru/internal/log"
	"github.com/nauru-yvy/nauru/internal/metrics"
	"github.com/nauru-yvy/nauru/internal/storage"
	"github.com/nauru-yvy/nauru/internal/telemetry"
	"github.com/nauru-yvy/nauru/internal/version"
)

const (
	// DefaultBaseURL is used when Config.BaseURL is empty.
	DefaultBaseURL = "http://localhost:8000/api/v1"

	// DefaultTimeout bounds every call, including reading the body.
	DefaultTimeout = 15 * time.Second

	maxBodyBytes = 8 << 20
)

// Config configures a Client. Zero values select defaults.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string
	Logger     *log.Logger
	Metrics    *metrics.Metrics
}

// Client issues API requests.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	userAgent  string
	tokens     storage.Reader
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// New creates a Client reading the bearer token from tokens on every call.
// tokens may be nil, in which case calls are unauthenticated.
func New(tokens storage.Reader, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = version.UserAgent()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.DefaultLogger()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		userAgent:  cfg.UserAgent,
		tokens:     tokens,
		logger:     cfg.Logger.With("component", "gateway"),
		metrics:    cfg.Metrics,
	}
}

// BaseURL returns the prefix every path is appended to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// RequestOptions describes one call. Method defaults to GET.
type RequestOptions struct {
	Method string

	// Body is serialized as JSON when non-nil.
	Body any

	// Headers override the defaults, including Content-Type.
	Headers map[string]string
}

// Response is a successful (2xx) response.
type Response struct {
	Status int
	Header http.Header
	Raw    []byte

	// JSON is true when the body was declared and parsed as JSON; Value then
	// holds the decoded document.
	JSON  bool
	Value any
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Raw)
}

// Decode unmarshals the raw body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Raw, v)
}

// Request performs one call. Failures are returned as *NetworkError or
// *HTTPError, and as *ParseError for a success body larger than the read
// limit. A success body declared as JSON but not parseable is returned as
// text with JSON set to false.
//
// A Body that cannot be marshaled or a path that does not form a valid URL
// is a caller bug; those errors are returned unwrapped, outside the three
// kinds above.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	route := routeOf(path)
	url := c.baseURL + path

	ctx, span := telemetry.StartRequestSpan(ctx, method, route)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			err = fmt.Errorf("failed to marshal request body: %w", err)
			telemetry.RecordError(span, err)
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		err = fmt.Errorf("failed to create request: %w", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	logger := c.logger.With("method", method, "path", route, "request_id", requestID)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		nerr := c.networkError(ctx, method, url, start, err)
		c.metrics.ObserveRequestError(method, route, string(KindNetwork))
		telemetry.RecordError(span, nerr)
		logger.WithError(nerr).DebugContext(ctx, "request failed")
		return nil, nerr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		nerr := c.networkError(ctx, method, url, start, err)
		c.metrics.ObserveRequestError(method, route, string(KindNetwork))
		telemetry.RecordError(span, nerr)
		logger.WithError(nerr).DebugContext(ctx, "reading response failed")
		return nil, nerr
	}

	elapsed := time.Since(start)
	c.metrics.ObserveRequest(method, route, resp.StatusCode, elapsed)
	telemetry.RecordStatus(span, resp.StatusCode)
	logger.DebugContext(ctx, "request completed", "status", resp.StatusCode, "duration", elapsed)

	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")

	oversized := len(raw) > maxBodyBytes
	if oversized {
		raw = raw[:maxBodyBytes]
		logger.WarnContext(ctx, "response body truncated", "status", resp.StatusCode, "limit_bytes", maxBodyBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload any = string(raw)
		if len(raw) > 0 {
			var decoded any
			if err := json.Unmarshal(raw, &decoded); err == nil {
				payload = decoded
			}
		}

		statusText := http.StatusText(resp.StatusCode)
		herr := &HTTPError{
			Method:     method,
			Path:       path,
			Status:     resp.StatusCode,
			StatusText: statusText,
			Message:    errorMessage(payload, resp.StatusCode, statusText),
			Payload:    payload,
		}
		c.metrics.ObserveRequestError(method, route, string(KindHTTP))
		telemetry.RecordError(span, herr)
		logger.WithError(herr).DebugContext(ctx, "request returned error status")
		return nil, herr
	}

	if oversized {
		perr := &ParseError{
			Method:      method,
			Path:        path,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        truncate(string(raw), 512),
			Err:         fmt.Errorf("response body exceeds %d bytes", maxBodyBytes),
		}
		c.metrics.ObserveRequestError(method, route, string(KindParse))
		telemetry.RecordError(span, perr)
		return nil, perr
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header, Raw: raw}
	if isJSON && len(raw) > 0 {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			logger.DebugContext(ctx, "response declared JSON but did not parse, returning text", "error", err)
		} else {
			out.JSON = true
			out.Value = value
		}
	}
	return out, nil
}

// Do performs Request and decodes a JSON body into out. out may be nil.
// A *string target receives the raw text of any body. Any other target
// requires a JSON body; otherwise *ParseError is returned.
func (c *Client) Do(ctx context.Context, path string, opts RequestOptions, out any) error {
	resp, err := c.Request(ctx, path, opts)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	if s, ok := out.(*string); ok {
		*s = resp.Text()
		return nil
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	if !resp.JSON {
		if len(bytes.TrimSpace(resp.Raw)) == 0 {
			return nil
		}
		return &ParseError{
			Method:      method,
			Path:        path,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        truncate(resp.Text(), 512),
			Err:         errors.New("response is not JSON"),
		}
	}

	if err := resp.Decode(out); err != nil {
		return &ParseError{
			Method:      method,
			Path:        path,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        truncate(resp.Text(), 512),
			Err:         err,
		}
	}
	return nil
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	token, ok, err := c.tokens.Get(storage.KeyToken)
	if err != nil {
		c.logger.Warn("failed to read stored token, continuing unauthenticated", "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

func (c *Client) networkError(ctx context.Context, method, url string, start time.Time, err error) *NetworkError {
	return &NetworkError{
		Method:  method,
		URL:     url,
		Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err),
		After:   time.Since(start),
		Err:     err,
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// routeOf strips the query string so metric labels stay bounded.
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
