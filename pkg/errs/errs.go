// Package errs defines the error kinds shared across the retrieval and
// validation core. Callers branch on Kind, never on message text.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy decisions.
type Kind string

const (
	KindParse            Kind = "parse_error"
	KindInvariant        Kind = "invariant_violation"
	KindNotFound         Kind = "not_found"
	KindIndexUnavailable Kind = "index_unavailable"
	KindEmbeddingFailed  Kind = "embedding_failed"
	KindLinkStore        Kind = "link_store_error"
	KindTimeout          Kind = "timeout"
	KindBadRequest       Kind = "bad_request"
	KindInternal         Kind = "internal"
)

// Error carries a kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind. A nil err yields an error carrying only the kind.
func E(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Ef creates a kinded error from a format string.
func Ef(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
