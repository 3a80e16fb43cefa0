package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Kind names a member of the Error union.
type Kind string

const (
	KindNetwork Kind = "network"
	KindHTTP    Kind = "http"
	KindParse   Kind = "parse"
)

// Error is implemented only by *NetworkError, *HTTPError and *ParseError.
// Switch on the concrete type or on Kind to handle each case.
type Error interface {
	error
	Kind() Kind
	gatewayError()
}

// NetworkError means no response was received: DNS failure, refused
// connection, timeout or cancellation.
type NetworkError struct {
	Method  string
	URL     string
	Timeout bool
	After   time.Duration
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("network error: no response from server after %s, check your connection", e.After.Round(time.Millisecond))
	}
	return "network error: unable to reach the server, check your connection"
}

func (e *NetworkError) Unwrap() error { return e.Err }
func (e *NetworkError) Kind() Kind    { return KindNetwork }
func (e *NetworkError) gatewayError() {}

// LogAttrs returns structured attributes for logging.
func (e *NetworkError) LogAttrs() []any {
	attrs := []any{"error_kind", string(KindNetwork), "method", e.Method, "url", e.URL, "timeout", e.Timeout}
	if e.Err != nil {
		attrs = append(attrs, "cause", e.Err.Error())
	}
	return attrs
}

// HTTPError is a completed response with a non-2xx status.
type HTTPError struct {
	Method     string
	Path       string
	Status     int
	StatusText string

	// Message is taken from the body's "message" or "detail" field, falling
	// back to "HTTP <status>: <statusText>".
	Message string

	// Payload is the decoded JSON body, or the raw text when it is not JSON.
	Payload any
}

func (e *HTTPError) Error() string { return e.Message }
func (e *HTTPError) Kind() Kind    { return KindHTTP }
func (e *HTTPError) gatewayError() {}

// LogAttrs returns structured attributes for logging.
func (e *HTTPError) LogAttrs() []any {
	return []any{"error_kind", string(KindHTTP), "method", e.Method, "path", e.Path, "status", e.Status}
}

// Details returns the validation messages of a detail list payload such as
// {"detail":[{"msg":"email invalid"}]}. A string detail yields one message.
func (e *HTTPError) Details() []string {
	body, ok := e.Payload.(map[string]any)
	if !ok {
		return nil
	}

	switch detail := body["detail"].(type) {
	case string:
		if detail != "" {
			return []string{detail}
		}
	case []any:
		msgs := make([]string, 0, len(detail))
		for _, item := range detail {
			switch d := item.(type) {
			case map[string]any:
				if msg, ok := d["msg"].(string); ok && msg != "" {
					msgs = append(msgs, msg)
				}
			case string:
				if d != "" {
					msgs = append(msgs, d)
				}
			}
		}
		return msgs
	}
	return nil
}

// ParseError is a 2xx response whose body could not be decoded into the
// caller's target.
type ParseError struct {
	Method      string
	Path        string
	ContentType string
	Body        string
	Err         error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unexpected response from %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
func (e *ParseError) Kind() Kind    { return KindParse }
func (e *ParseError) gatewayError() {}

// LogAttrs returns structured attributes for logging.
func (e *ParseError) LogAttrs() []any {
	return []any{"error_kind", string(KindParse), "method", e.Method, "path", e.Path, "content_type", e.ContentType}
}

// KindOf returns the Kind of err, or "" when err is not a gateway error.
func KindOf(err error) Kind {
	var ge Error
	if errors.As(err, &ge) {
		return ge.Kind()
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// IsUnauthorized reports whether err is an HTTP 401.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	return KindOf(err) == KindNetwork
}

// errorMessage picks the user-facing message for a non-2xx response.
func errorMessage(payload any, status int, statusText string) string {
	if body, ok := payload.(map[string]any); ok {
		if msg, ok := body["message"].(string); ok && msg != "" {
			return msg
		}
		if detail, ok := body["detail"].(string); ok && detail != "" {
			return detail
		}
		he := &HTTPError{Payload: payload}
		if msgs := he.Details(); len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return fmt.Sprintf("HTTP %d: %s", status, statusText)
}
