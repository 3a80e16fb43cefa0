// Package exitcode maps command errors to process exit codes.
package exitcode

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	nerrors "github.com/nauru-yvy/nauru/internal/errors"
	"github.com/nauru-yvy/nauru/internal/gateway"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage, missing input or bad config
	UsageError = 2

	// ValidationError indicates the API rejected the request content (400, 409, 422)
	ValidationError = 3

	// ServerError indicates the API failed or answered with something unreadable
	ServerError = 4

	// AuthError indicates an authentication failure
	AuthError = 5

	// NetworkError indicates the API could not be reached
	NetworkError = 6

	// Interrupted indicates the command was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with the code DetermineExitCode picks for err
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode classifies err by type. Only cobra's untyped usage
// errors are matched by message.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if errors.Is(err, context.Canceled) {
		return Interrupted
	}

	var coded *nerrors.Error
	if errors.As(err, &coded) {
		switch coded.Code.Category() {
		case "AUTH":
			return AuthError
		case "NET":
			return NetworkError
		case "INPUT", "CONFIG":
			return UsageError
		}
		switch coded.Code {
		case nerrors.ErrCodeAPIValidation, nerrors.ErrCodeAPIConflict:
			return ValidationError
		case nerrors.ErrCodeAPIResponse:
			return ServerError
		}
		// fall through to the cause
	}

	var (
		ne *gateway.NetworkError
		he *gateway.HTTPError
		pe *gateway.ParseError
	)
	switch {
	case errors.As(err, &ne):
		return NetworkError
	case errors.As(err, &he):
		return httpExitCode(he.Status)
	case errors.As(err, &pe):
		return ServerError
	}

	if coded != nil {
		return GeneralError
	}

	msg := err.Error()
	for _, prefix := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "required flag", "invalid argument", "accepts "} {
		if strings.HasPrefix(msg, prefix) {
			return UsageError
		}
	}
	return GeneralError
}

func httpExitCode(status int) int {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return AuthError
	case status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return ValidationError
	case status >= http.StatusInternalServerError:
		return ServerError
	default:
		return GeneralError
	}
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or configuration)"
	case ValidationError:
		return "Request rejected by the server"
	case ServerError:
		return "Server error"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
