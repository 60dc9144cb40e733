// Package acerrors implements the error taxonomy of spec §7: a closed
// set of error kinds, each wrapping an inner cause, so callers can
// branch with errors.Is/errors.As without string matching.
package acerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the error categories named in spec §7.
type Kind string

const (
	KindLoad            Kind = "load"
	KindStore           Kind = "store"
	KindDelete          Kind = "delete"
	KindParse           Kind = "parse"
	KindSignature       Kind = "signature"
	KindValidation      Kind = "validation"
	KindRender          Kind = "render"
	KindSupervise       Kind = "supervise"
	KindExternalIO      Kind = "external_io"
	KindCapabilityGated Kind = "capability_gated"
)

// Error pairs a Kind with an operation and the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error, capturing a stack trace via pkg/errors unless err
// itself implements StackTrace (as pkg/errors values do). Only err is
// checked, not its Unwrap chain, so an *Error passed in is wrapped with
// a fresh stack.
func New(kind Kind, op string, err error) *Error {
	if err != nil {
		if _, ok := err.(stackTracer); !ok {
			err = errors.WithStack(err)
		}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
