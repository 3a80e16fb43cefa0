package cmd

import (
	"context"
	"errors"
	"net/http"
	"strings"

	nerrors "github.com/nauru-yvy/nauru/internal/errors"
	"github.com/nauru-yvy/nauru/internal/gateway"
	"github.com/nauru-yvy/nauru/internal/resources"
	"github.com/nauru-yvy/nauru/internal/session"
	"github.com/nauru-yvy/nauru/internal/storage"
)

func configError(err error) error {
	return nerrors.Wrap(nerrors.ErrCodeConfigLoad, "invalid configuration", err).
		WithSuggestion("Check the file written by 'nauru config init'").
		WithSuggestion("Run 'nauru config show' to see the effective values")
}

func storeError(path string, err error) error {
	if errors.Is(err, storage.ErrCorrupt) {
		return nerrors.Wrap(nerrors.ErrCodeStoreCorrupt, "session store is unreadable", err).
			WithSuggestion("Remove " + path + " and sign in again")
	}
	return nerrors.NewStoreError(path, err)
}

func expiredError() error {
	return nerrors.New(nerrors.ErrCodeAuthSessionExpired, session.MsgSessionExpired).
		WithSuggestion("Run 'nauru auth login' to sign in again")
}

// resultError turns a failed session Result into a coded error. fallback is
// used for server-provided messages such as validation details.
func (a *app) resultError(r session.Result, fallback nerrors.ErrorCode) error {
	if r.Success {
		return nil
	}
	switch r.Error {
	case session.MsgInvalidCredentials:
		return nerrors.NewInvalidCredentialsError(r.Error)
	case session.MsgNetwork:
		return nerrors.NewNetworkError(a.cfg.API.BaseURL, nil)
	case session.MsgNotSignedIn:
		return nerrors.NewNotSignedInError()
	case session.MsgSessionExpired:
		return expiredError()
	case session.MsgEmailInUse:
		return nerrors.New(nerrors.ErrCodeAPIConflict, r.Error).
			WithSuggestion("Sign in with 'nauru auth login' instead")
	case session.MsgUnexpectedResponse:
		return nerrors.New(nerrors.ErrCodeAPIResponse, r.Error)
	}
	if strings.HasPrefix(r.Error, "missing required fields") || strings.HasSuffix(r.Error, "are required") {
		return nerrors.New(nerrors.ErrCodeInputMissing, r.Error)
	}
	return nerrors.New(fallback, r.Error)
}

// apiError turns a resource call failure into a coded error. what names the
// operation, e.g. "list alerts".
func (a *app) apiError(what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, resources.ErrMissingFields) {
		return nerrors.Wrap(nerrors.ErrCodeInputMissing, what, err)
	}

	var (
		ne *gateway.NetworkError
		he *gateway.HTTPError
		pe *gateway.ParseError
	)
	switch {
	case errors.As(err, &ne):
		if ne.Timeout {
			return nerrors.Wrap(nerrors.ErrCodeNetworkTimeout, what+" timed out", err).
				WithSuggestion("Raise api.timeout if the server is slow")
		}
		return nerrors.NewNetworkError(a.cfg.API.BaseURL, err)
	case errors.As(err, &he):
		switch he.Status {
		case http.StatusUnauthorized:
			return expiredError()
		case http.StatusForbidden:
			return nerrors.Wrap(nerrors.ErrCodeAPIRequest, what+" is not allowed for your role", err)
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			msg := what + " rejected"
			if details := he.Details(); len(details) > 0 {
				msg += ": " + strings.Join(details, "; ")
			}
			return nerrors.Wrap(nerrors.ErrCodeAPIValidation, msg, err)
		case http.StatusConflict:
			return nerrors.Wrap(nerrors.ErrCodeAPIConflict, what+" conflicts with existing data", err)
		}
		return nerrors.Wrap(nerrors.ErrCodeAPIRequest, what+" failed", err)
	case errors.As(err, &pe):
		return nerrors.Wrap(nerrors.ErrCodeAPIResponse, what+": unexpected response", err)
	}
	return nerrors.Wrap(nerrors.ErrCodeAPIRequest, what+" failed", err)
}

func isCode(err error, code nerrors.ErrorCode) bool {
	var coded *nerrors.Error
	return errors.As(err, &coded) && coded.Code == code
}
