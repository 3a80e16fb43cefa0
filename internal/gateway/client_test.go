package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nauru-yvy/nauru/internal/log"
	"github.com/nauru-yvy/nauru/internal/metrics"
	"github.com/nauru-yvy/nauru/internal/storage"
	"github.com/nauru-yvy/nauru/internal/telemetry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens storage.Reader) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(tokens, Config{BaseURL: srv.URL + "/api/v1", Logger: log.Nop()})
}

func TestNewDefaults(t *testing.T) {
	c := New(nil, Config{Logger: log.Nop()})

	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, 15*time.Second, c.Timeout())
}

func TestRequestHeaders(t *testing.T) {
	tests := []struct {
		name        string
		token       string
		headers     map[string]string
		wantAuth    string
		wantContent string
	}{
		{
			name:        "with stored token",
			token:       "abc",
			wantAuth:    "Bearer abc",
			wantContent: "application/json",
		},
		{
			name:        "without token proceeds unauthenticated",
			wantAuth:    "",
			wantContent: "application/json",
		},
		{
			name:        "caller overrides content type",
			token:       "abc",
			headers:     map[string]string{"Content-Type": "text/plain"},
			wantAuth:    "Bearer abc",
			wantContent: "text/plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			if tt.token != "" {
				require.NoError(t, store.Set(storage.KeyToken, tt.token))
			}

			var got *http.Request
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				got = r.Clone(context.Background())
				w.WriteHeader(http.StatusNoContent)
			}, store)

			_, err := c.Request(context.Background(), "/auth/me", RequestOptions{Headers: tt.headers})
			require.NoError(t, err)

			require.NotNil(t, got)
			assert.Equal(t, "/api/v1/auth/me", got.URL.Path)
			assert.Equal(t, http.MethodGet, got.Method)
			assert.Equal(t, tt.wantAuth, got.Header.Get("Authorization"))
			assert.Equal(t, tt.wantContent, got.Header.Get("Content-Type"))
			assert.NotEmpty(t, got.Header.Get("X-Request-ID"))
		})
	}
}

func TestRequestSerializesBody(t *testing.T) {
	var body map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}, nil)

	resp, err := c.Request(context.Background(), "/auth/login", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"email": "a@b.c"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", body["email"])
	assert.True(t, resp.JSON)
	assert.Equal(t, map[string]any{"ok": true}, resp.Value)
}

func TestRequestSuccessBodies(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantJSON    bool
		wantText    string
	}{
		{"json", "application/json; charset=utf-8", `{"id":1}`, true, `{"id":1}`},
		{"plain text", "text/plain", "pong", false, "pong"},
		{"malformed json passes through as text", "application/json", "{oops", false, "{oops"},
		{"empty json body", "application/json", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write([]byte(tt.body))
			}, nil)

			resp, err := c.Request(context.Background(), "/x", RequestOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantJSON, resp.JSON)
			assert.Equal(t, tt.wantText, resp.Text())
		})
	}
}

func TestRequestHTTPErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantMessage string
		wantDetails []string
	}{
		{
			name:        "message field",
			status:      http.StatusBadRequest,
			contentType: "application/json",
			body:        `{"message":"bad input"}`,
			wantMessage: "bad input",
		},
		{
			name:        "string detail",
			status:      http.StatusUnauthorized,
			contentType: "application/json",
			body:        `{"detail":"Incorrect email or password"}`,
			wantMessage: "Incorrect email or password",
			wantDetails: []string{"Incorrect email or password"},
		},
		{
			name:        "validation detail list",
			status:      http.StatusUnprocessableEntity,
			contentType: "application/json",
			body:        `{"detail":[{"loc":["body","email"],"msg":"email invalid"},{"msg":"name too short"}]}`,
			wantMessage: "email invalid; name too short",
			wantDetails: []string{"email invalid", "name too short"},
		},
		{
			name:        "unparseable body falls back to status",
			status:      http.StatusBadGateway,
			contentType: "text/html",
			body:        "<html>bad gateway</html>",
			wantMessage: "HTTP 502: Bad Gateway",
		},
		{
			name:        "json without message falls back to status",
			status:      http.StatusConflict,
			contentType: "application/json",
			body:        `{"code":42}`,
			wantMessage: "HTTP 409: Conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, nil)

			_, err := c.Request(context.Background(), "/auth/register", RequestOptions{Method: http.MethodPost})
			require.Error(t, err)

			var he *HTTPError
			require.True(t, errors.As(err, &he))
			assert.Equal(t, tt.status, he.Status)
			assert.Equal(t, tt.wantMessage, he.Error())
			assert.Equal(t, tt.wantDetails, nilIfEmpty(he.Details()))
			assert.Equal(t, KindHTTP, KindOf(err))
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestRequestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(nil, Config{BaseURL: url, Logger: log.Nop()})

	_, err := c.Request(context.Background(), "/auth/me", RequestOptions{})
	require.Error(t, err)

	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.False(t, ne.Timeout)
	assert.True(t, IsNetwork(err))
	assert.False(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "check your connection")
}

func TestRequestTimeoutBoundary(t *testing.T) {
	const timeout = 300 * time.Millisecond
	const tolerance = 500 * time.Millisecond

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(nil, Config{BaseURL: srv.URL, Timeout: timeout, Logger: log.Nop()})

	start := time.Now()
	_, err := c.Request(context.Background(), "/never", RequestOptions{})
	elapsed := time.Since(start)

	var ne *NetworkError
	require.True(t, errors.As(err, &ne), "expected NetworkError, got %v", err)
	assert.True(t, ne.Timeout)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+tolerance)
}

func TestRequestParentCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(nil, Config{BaseURL: srv.URL, Logger: log.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := c.Request(ctx, "/slow", RequestOptions{})
	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.False(t, ne.Timeout)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDo(t *testing.T) {
	type user struct {
		ID    int    `json:"id"`
		Email string `json:"email"`
	}

	t.Run("decodes json", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":7,"email":"a@b.c"}`))
		}, nil)

		var u user
		require.NoError(t, c.Do(context.Background(), "/auth/me", RequestOptions{}, &u))
		assert.Equal(t, user{ID: 7, Email: "a@b.c"}, u)
	})

	t.Run("text body into non-string target is a parse error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		}, nil)

		var u user
		err := c.Do(context.Background(), "/auth/me", RequestOptions{}, &u)
		var pe *ParseError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, KindParse, KindOf(err))
		assert.Equal(t, "<html></html>", pe.Body)
	})

	t.Run("shape mismatch is a parse error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"not-a-number"}`))
		}, nil)

		var u user
		err := c.Do(context.Background(), "/auth/me", RequestOptions{}, &u)
		assert.Equal(t, KindParse, KindOf(err))
	})

	t.Run("string target receives text", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}, nil)

		var s string
		require.NoError(t, c.Do(context.Background(), "/auth/health", RequestOptions{}, &s))
		assert.Equal(t, "ok", s)
	})

	t.Run("empty body is fine", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}, nil)

		var u user
		assert.NoError(t, c.Do(context.Background(), "/auth/logout", RequestOptions{Method: http.MethodPost}, &u))
	})
}

func TestRequestMetrics(t *testing.T) {
	_, m := metrics.NewRegistry()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(nil, Config{BaseURL: srv.URL, Logger: log.Nop(), Metrics: m})
	_, err := c.Request(context.Background(), "/auth/me?x=1", RequestOptions{})
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/auth/me", "401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestErrors.WithLabelValues("GET", "/auth/me", "http")))
}

func TestRequestHTTPErrorIsTracedAndLogged(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	restore := telemetry.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(restore)

	var buf bytes.Buffer
	logger := log.New(log.Config{Level: log.LevelDebug, Format: log.FormatJSON, Output: &buf})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":"already registered"}`))
	}))
	defer srv.Close()

	c := New(nil, Config{BaseURL: srv.URL, Logger: logger})
	_, err := c.Request(context.Background(), "/auth/register", RequestOptions{Method: http.MethodPost})
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "already registered", spans[0].Status().Description)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)

	assert.Contains(t, buf.String(), "request returned error status")
	assert.Contains(t, buf.String(), `"status":409`)
}

func TestRequestMarshalErrorOutsideKinds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, nil)

	_, err := c.Request(context.Background(), "/auth/login", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]any{"bad": make(chan int)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to marshal request body")
	assert.Equal(t, Kind(""), KindOf(err))
}

func TestRequestOversizedBody(t *testing.T) {
	big := strings.Repeat("a", maxBodyBytes+1)

	t.Run("success body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `"`+big+`"`)
		}, nil)

		_, err := c.Request(context.Background(), "/alerts", RequestOptions{})
		require.Error(t, err)

		var pe *ParseError
		require.True(t, errors.As(err, &pe))
		assert.Contains(t, pe.Error(), "exceeds")
		assert.Equal(t, KindParse, KindOf(err))
		assert.LessOrEqual(t, len(pe.Body), 515)
	})

	t.Run("error status keeps HTTPError", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, big)
		}, nil)

		_, err := c.Request(context.Background(), "/alerts", RequestOptions{})
		require.Error(t, err)
		assert.True(t, IsUnauthorized(err))
	})

	t.Run("exactly at limit", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = io.WriteString(w, big[:maxBodyBytes])
		}, nil)

		resp, err := c.Request(context.Background(), "/alerts", RequestOptions{})
		require.NoError(t, err)
		assert.Len(t, resp.Raw, maxBodyBytes)
	})
}
