// Package apierr defines the failure kinds a sync run can end with. Callers
// match them with errors.Is; nothing in the pipeline recovers from them.
package apierr

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/davidsteinsland/ynab-go/ynab"
	"google.golang.org/api/googleapi"
)

var (
	ErrConfigMissing = errors.New("config missing")
	ErrAuth          = errors.New("authentication failed")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient network error")
	ErrDataShape     = errors.New("unexpected response shape")
)

// kindError attaches a failure kind to an error without changing its message.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }

func (e *kindError) Unwrap() []error { return []error{e.err, e.kind} }

// WithKind marks err as kind. A nil err stays nil.
func WithKind(err, kind error) error {
	if err == nil {
		return nil
	}
	if kind == nil || errors.Is(err, kind) {
		return err
	}
	return &kindError{kind: kind, err: err}
}

// FromStatus maps an HTTP status code to a failure kind, nil when the code
// does not map to one.
func FromStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuth
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout:
		return ErrTransient
	case code >= 500 && code <= 599:
		return ErrTransient
	}
	return nil
}

// Classify tags err with the kind it most likely represents.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return WithKind(err, FromStatus(gerr.Code))
	}

	var yerr *ynab.ErrorResponse
	if errors.As(err, &yerr) && yerr.Response != nil {
		return WithKind(err, FromStatus(yerr.Response.StatusCode))
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return WithKind(err, ErrTransient)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return WithKind(err, ErrTransient)
	}

	return err
}

// Kind returns the first failure kind err carries, or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrConfigMissing, ErrAuth, ErrNotFound, ErrTransient, ErrDataShape} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Name is a short label for err's kind, used in logs and metrics tags.
func Name(err error) string {
	switch Kind(err) {
	case ErrConfigMissing:
		return "config_missing"
	case ErrAuth:
		return "auth"
	case ErrNotFound:
		return "not_found"
	case ErrTransient:
		return "transient"
	case ErrDataShape:
		return "data_shape"
	}
	if err == nil {
		return "ok"
	}
	return "unknown"
}
