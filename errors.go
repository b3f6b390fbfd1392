package canopy

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrapped errors are matched with errors.Is.
var (
	// ErrInvalidParameter reports a declaration parameter outside its domain.
	ErrInvalidParameter = errors.New("canopy: invalid parameter")
	// ErrTypeMismatch reports a node whose kind does not fit where it is used.
	ErrTypeMismatch = errors.New("canopy: type mismatch")
	// ErrResourceExhausted reports a failed offscreen surface allocation.
	ErrResourceExhausted = errors.New("canopy: resource exhausted")
	// ErrNotReady reports that a frame source has nothing to draw yet.
	ErrNotReady = errors.New("canopy: not ready")
	// ErrUnsupported reports an effect the backend cannot build.
	ErrUnsupported = errors.New("canopy: unsupported by backend")
	// ErrDisposed reports use of a disposed object.
	ErrDisposed = errors.New("canopy: disposed")
)

// ParamError describes one invalid declaration parameter.
type ParamError struct {
	Kind   string // declaration kind, e.g. "blur"
	Field  string
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("canopy: %s.%s = %v: %s", e.Kind, e.Field, e.Value, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidParameter) hold.
func (e *ParamError) Unwrap() error { return ErrInvalidParameter }

func paramErr(kind, field string, value any, reason string) error {
	return &ParamError{Kind: kind, Field: field, Value: value, Reason: reason}
}

// TypeMismatchError reports a node or declaration of the wrong kind in a
// position that requires another.
type TypeMismatchError struct {
	Node     string
	Expected string
	Found    string
}

func (e *TypeMismatchError) Error() string {
	name := e.Node
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("canopy: node %q: expected %s, found %s", name, e.Expected, e.Found)
}

// Unwrap makes errors.Is(err, ErrTypeMismatch) hold.
func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }
