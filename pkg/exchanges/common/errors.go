package common

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies gateway failures for retry decisions.
type ErrorKind int

const (
	// Transient failures (network, rate limit, venue busy) may be retried.
	Transient ErrorKind = iota
	// Permanent failures (auth, validation, unsupported parameter) must not be retried.
	Permanent
)

func (k ErrorKind) String() string {
	if k == Permanent {
		return "permanent"
	}
	return "transient"
}

// APIError is the typed failure returned by gateways.
type APIError struct {
	Kind   ErrorKind
	Op     string // gateway operation, e.g. "ticker"
	Status int    // HTTP status, 0 when no response was received
	Code   string // venue error code
	Msg    string
	Err    error
}

func (e *APIError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Code != "":
		return fmt.Sprintf("%s %s error (code %s): %s", e.Op, e.Kind, e.Code, msg)
	case e.Status != 0:
		return fmt.Sprintf("%s %s error (status %d): %s", e.Op, e.Kind, e.Status, msg)
	default:
		return fmt.Sprintf("%s %s error: %s", e.Op, e.Kind, msg)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// NewTransient wraps err as a retryable failure of op.
func NewTransient(op string, err error) *APIError {
	return &APIError{Kind: Transient, Op: op, Err: err}
}

// NewPermanent builds a non-retryable failure of op.
func NewPermanent(op, code, msg string) *APIError {
	return &APIError{Kind: Permanent, Op: op, Code: code, Msg: msg}
}

// IsTransient reports whether err may be retried.
// A classified *APIError decides by its Kind. Otherwise context cancellation
// is final and any other error is treated as a network-level failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == Transient
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// IsPermanent reports whether err carries a permanent classification.
func IsPermanent(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == Permanent
}
