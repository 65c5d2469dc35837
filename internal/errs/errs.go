// Package errs defines the typed error taxonomy shared across services.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation decisions.
type Kind int

const (
	// KindValidation marks bad or missing caller input; always recoverable.
	KindValidation Kind = iota
	// KindStorage marks an I/O or persistence failure.
	KindStorage
	// KindProvider marks a remote model failure.
	KindProvider
	// KindConfig marks missing or invalid configuration; fatal at startup.
	KindConfig
	// KindNotFound marks a missing entity.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage"
	case KindProvider:
		return "provider"
	case KindConfig:
		return "config"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error carries a kind, the failing operation, and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same kind, so callers can test with sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrValidation = &Error{Kind: KindValidation, Op: "validation"}
	ErrStorage    = &Error{Kind: KindStorage, Op: "storage"}
	ErrProvider   = &Error{Kind: KindProvider, Op: "provider"}
	ErrConfig     = &Error{Kind: KindConfig, Op: "config"}
	ErrNotFound   = &Error{Kind: KindNotFound, Op: "lookup"}
)

// Validation builds a validation error for op with the given message.
func Validation(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

// Storage wraps a persistence failure.
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// Storagef builds a storage error from a format string.
func Storagef(op, format string, args ...any) *Error {
	return &Error{Kind: KindStorage, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Provider wraps a remote model failure.
func Provider(op string, err error) *Error {
	return &Error{Kind: KindProvider, Op: op, Err: err}
}

// Config builds a configuration error.
func Config(op, msg string) *Error {
	return &Error{Kind: KindConfig, Op: op, Msg: msg}
}

// NotFound builds a missing-entity error.
func NotFound(op, msg string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

// IsNotFound reports whether err is a missing-entity error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
