// Package apperr classifies the errors raised by the payment flow so the
// HTTP layer can map them to status codes without string matching.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports user-correctable input (phone, shortcode, amount).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Kind() string  { return "validation" }

// UpstreamAuthError reports a failed OAuth token exchange with the gateway.
type UpstreamAuthError struct {
	Message string
	// Details is the upstream response body when one was received,
	// otherwise the transport error text.
	Details any
	Err     error
}

func (e *UpstreamAuthError) Error() string { return describe(e.Message, e.Err) }
func (e *UpstreamAuthError) Unwrap() error { return e.Err }
func (e *UpstreamAuthError) Kind() string  { return "upstream_auth" }

// UpstreamGatewayError reports a failed STK push call.
type UpstreamGatewayError struct {
	Message string
	Details any
	Err     error
}

func (e *UpstreamGatewayError) Error() string { return describe(e.Message, e.Err) }
func (e *UpstreamGatewayError) Unwrap() error { return e.Err }
func (e *UpstreamGatewayError) Kind() string  { return "upstream_gateway" }

// PersistenceError reports a ledger or log write/read failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return describe(e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }
func (e *PersistenceError) Kind() string  { return "persistence" }

// Validation is a shorthand for &ValidationError{Message: msg}.
func Validation(msg string) error {
	return &ValidationError{Message: msg}
}

// Persistence wraps err as a PersistenceError for the named operation.
// It returns nil when err is nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func describe(msg string, err error) string {
	if err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, err)
}

type kinder interface {
	Kind() string
}

var kindToStatus = map[string]int{
	"validation":       http.StatusBadRequest,
	"upstream_auth":    http.StatusInternalServerError,
	"upstream_gateway": http.StatusInternalServerError,
	"persistence":      http.StatusInternalServerError,
	"timeout":          http.StatusGatewayTimeout,
	"canceled":         http.StatusBadRequest,
}

// Kind returns the classification of err, looking through wrapping.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

// HTTPStatus maps err to the status code returned to API clients.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if s, ok := kindToStatus[Kind(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Details extracts the upstream details carried by err, falling back to the
// error text.
func Details(err error) any {
	var authErr *UpstreamAuthError
	if errors.As(err, &authErr) && authErr.Details != nil {
		return authErr.Details
	}
	var gwErr *UpstreamGatewayError
	if errors.As(err, &gwErr) && gwErr.Details != nil {
		return gwErr.Details
	}
	if err == nil {
		return nil
	}
	return err.Error()
}
