// Package errors defines coded errors surfaced by the CLI, each carrying
// recovery suggestions for the user.
package errors

import (
	"fmt"
	"strings"
)

// ErrorCode is a stable identifier for a class of failure.
type ErrorCode string

const (
	// Authentication (AUTH-001 to AUTH-099)
	ErrCodeAuthInvalidCredentials ErrorCode = "AUTH-001"
	ErrCodeAuthNotSignedIn        ErrorCode = "AUTH-002"
	ErrCodeAuthSessionExpired     ErrorCode = "AUTH-003"
	ErrCodeAuthRegistration       ErrorCode = "AUTH-004"

	// Network (NET-001 to NET-099)
	ErrCodeNetworkUnreachable ErrorCode = "NET-001"
	ErrCodeNetworkTimeout     ErrorCode = "NET-002"

	// Remote API (API-001 to API-099)
	ErrCodeAPIRequest    ErrorCode = "API-001"
	ErrCodeAPIValidation ErrorCode = "API-002"
	ErrCodeAPIConflict   ErrorCode = "API-003"
	ErrCodeAPIResponse   ErrorCode = "API-004"

	// Local storage (STORE-001 to STORE-099)
	ErrCodeStoreOpen    ErrorCode = "STORE-001"
	ErrCodeStoreCorrupt ErrorCode = "STORE-002"

	// Configuration (CONFIG-001 to CONFIG-099)
	ErrCodeConfigLoad  ErrorCode = "CONFIG-001"
	ErrCodeConfigWrite ErrorCode = "CONFIG-002"

	// User input (INPUT-001 to INPUT-099)
	ErrCodeInputMissing ErrorCode = "INPUT-001"
	ErrCodeInputInvalid ErrorCode = "INPUT-002"
)

// Category returns the code prefix, e.g. "AUTH" for "AUTH-001".
func (c ErrorCode) Category() string {
	if i := strings.IndexByte(string(c), '-'); i > 0 {
		return string(c)[:i]
	}
	return string(c)
}

// Error is a coded error with optional suggestions and a wrapped cause.
type Error struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

func (e *Error) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, s := range e.Suggestions {
			fmt.Fprintf(&b, "\n  • %s", s)
		}
	}

	return b.String()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error around cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithSuggestion appends a suggestion and returns e.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions appends suggestions and returns e.
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// NewNotSignedInError is returned by commands that need a session.
func NewNotSignedInError() *Error {
	return New(ErrCodeAuthNotSignedIn, "not signed in").
		WithSuggestion("Run 'nauru auth login' to sign in")
}

// NewInvalidCredentialsError reports a rejected sign-in.
func NewInvalidCredentialsError(message string) *Error {
	return New(ErrCodeAuthInvalidCredentials, message).
		WithSuggestion("Check your email and password").
		WithSuggestion("Run 'nauru auth register' if you do not have an account yet")
}

// NewNetworkError reports an unreachable API.
func NewNetworkError(baseURL string, cause error) *Error {
	return Wrap(ErrCodeNetworkUnreachable, fmt.Sprintf("cannot reach %s", baseURL), cause).
		WithSuggestion("Check your connection and try again").
		WithSuggestion("Set NAURU_API_URL or api.base_url if the server moved")
}

// NewMissingInputError reports a required flag or prompt value that was empty.
func NewMissingInputError(field string) *Error {
	return New(ErrCodeInputMissing, fmt.Sprintf("%s is required", field)).
		WithSuggestion(fmt.Sprintf("Pass --%s or run the command interactively", field))
}

// NewStoreError reports a session store that could not be opened.
func NewStoreError(path string, cause error) *Error {
	return Wrap(ErrCodeStoreOpen, fmt.Sprintf("cannot open session store %s", path), cause).
		WithSuggestion("Check NAURU_STORAGE_PASSPHRASE matches the one used to create the store").
		WithSuggestion("Remove the file to start over; you will need to sign in again")
}
