// Package cmn provides the ambient stack shared by every FlexRay bus-model
// package: error kinds, leveled logging, a verified-config fingerprint, a
// metrics registry, and an optional flight recorder.
package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrKind enumerates the error taxonomy from the engine's contract. Runtime
// per-slot decisions never surface these; they are returned only from the
// handful of operations the contract lists as fallible.
type ErrKind int

const (
	ErrNone ErrKind = iota
	ErrConfigRejected
	ErrConfigMismatch
	ErrNotConfigured
	ErrNotFound
	ErrInvalidArgument
	ErrShiftRefused
	ErrUnexpectedMetadata
)

func (k ErrKind) String() string {
	switch k {
	case ErrConfigRejected:
		return "ConfigRejected"
	case ErrConfigMismatch:
		return "ConfigMismatch"
	case ErrNotConfigured:
		return "NotConfigured"
	case ErrNotFound:
		return "NotFound"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrShiftRefused:
		return "ShiftRefused"
	case ErrUnexpectedMetadata:
		return "UnexpectedMetadata"
	default:
		return "None"
	}
}

// KindError carries an ErrKind alongside a wrapped cause, mirroring the
// teacher's per-kind constructor convention (cmn.NewErrAborted and friends
// in xact/xs/tcb.go) without a process-wide error registry.
type KindError struct {
	Kind ErrKind
	msg  string
	err  error
}

func (e *KindError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *KindError) Unwrap() error { return e.err }

// NewErr wraps cause (which may be nil) into a *KindError of the given kind,
// the way the teacher's cmn.NewErrXxx constructors do for xaction errors.
func NewErr(kind ErrKind, msg string, cause error) error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &KindError{Kind: kind, msg: msg, err: cause}
}

// KindOf extracts the ErrKind from err, walking wrapped causes via
// errors.Unwrap, or ErrNone if err is nil or not a *KindError.
func KindOf(err error) ErrKind {
	if err == nil {
		return ErrNone
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if ke, ok := e.(*KindError); ok {
			return ke.Kind
		}
	}
	return ErrNone
}
