package fetcher

import (
	"errors"
	"fmt"
)

// Kind classifies why an attempt failed.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindConnection  Kind = "connection"
	KindBadJSON     Kind = "bad_json"
	KindApplication Kind = "application"
	KindHTTPStatus  Kind = "http_status"
	KindUnexpected  Kind = "unexpected"
)

// Retryable reports whether another attempt may succeed. The status API is
// known to flap between valid answers and "invalid PNR", so application
// errors are retried like transport errors. Hard HTTP status codes are not.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindConnection, KindBadJSON, KindApplication:
		return true
	}
	return false
}

// attemptError is the classified outcome of a single request.
type attemptError struct {
	kind Kind
	err  error
}

func (e *attemptError) Error() string { return fmt.Sprintf("%s: %v", e.kind, e.err) }
func (e *attemptError) Unwrap() error { return e.err }

func classify(kind Kind, err error) error { return &attemptError{kind: kind, err: err} }

// FetchError is returned when a reference could not be fetched on this run.
type FetchError struct {
	Reference string
	Kind      Kind
	Attempts  int
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("pnr %s: %s after %d attempt(s): %v", e.Reference, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func kindOf(err error) Kind {
	var ae *attemptError
	if errors.As(err, &ae) {
		return ae.kind
	}
	return KindUnexpected
}
