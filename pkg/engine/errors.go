package engine

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrIO                  = errors.New("io error")
	ErrEngineInternal      = errors.New("engine internal error")
	ErrInvalidRange        = errors.New("invalid range")
	ErrUnknownProperty     = errors.New("unknown property")
	ErrPropertyUnavailable = errors.New("property unavailable")
	ErrInvalidValue        = errors.New("invalid property value")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrFaulted             = errors.New("engine faulted")
	ErrClosed              = errors.New("engine closed")
)

// Error is an engine operation failure.
// Kind is one of the Err* values above and works with errors.Is,
// Err is the underlying cause (often a native Code).
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind, err error) error { return &Error{Op: op, Kind: kind, Err: err} }

// Code is a native engine error code.
// The values follow the libmpv error codes.
type Code int

const (
	CodeSuccess             Code = 0
	CodeEventQueueFull      Code = -1
	CodeNoMem               Code = -2
	CodeUninitialized       Code = -3
	CodeInvalidParameter    Code = -4
	CodeOptionNotFound      Code = -5
	CodeOptionFormat        Code = -6
	CodeOptionError         Code = -7
	CodePropertyNotFound    Code = -8
	CodePropertyFormat      Code = -9
	CodePropertyUnavailable Code = -10
	CodePropertyError       Code = -11
	CodeCommand             Code = -12
	CodeLoadingFailed       Code = -13
	CodeAOInitFailed        Code = -14
	CodeVOInitFailed        Code = -15
	CodeNothingToPlay       Code = -16
	CodeUnknownFormat       Code = -17
	CodeUnsupported         Code = -18
	CodeNotImplemented      Code = -19
	CodeGeneric             Code = -20
)

var codeNames = map[Code]string{
	CodeSuccess:             "success",
	CodeEventQueueFull:      "event queue full",
	CodeNoMem:               "memory allocation failed",
	CodeUninitialized:       "core not initialized",
	CodeInvalidParameter:    "invalid parameter",
	CodeOptionNotFound:      "option not found",
	CodeOptionFormat:        "unsupported format for accessing option",
	CodeOptionError:         "error setting option",
	CodePropertyNotFound:    "property not found",
	CodePropertyFormat:      "unsupported format for accessing property",
	CodePropertyUnavailable: "property unavailable",
	CodePropertyError:       "error accessing property",
	CodeCommand:             "error running command",
	CodeLoadingFailed:       "loading failed",
	CodeAOInitFailed:        "audio output initialization failed",
	CodeVOInitFailed:        "video output initialization failed",
	CodeNothingToPlay:       "no audio or video data played",
	CodeUnknownFormat:       "unrecognized file format",
	CodeUnsupported:         "not supported",
	CodeNotImplemented:      "operation not implemented",
	CodeGeneric:             "something happened",
}

func (c Code) Error() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("unknown error %d", int(c))
}

// CodeOf extracts the native code of err, CodeGeneric if there is none.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return CodeGeneric
}

// loadKind classifies a media loading failure.
func loadKind(err error) error {
	switch CodeOf(err) {
	case CodeUnknownFormat, CodeNothingToPlay, CodeUnsupported:
		return ErrUnsupportedFormat
	case CodeLoadingFailed:
		return ErrIO
	default:
		return ErrEngineInternal
	}
}

// propertyKind classifies a property access failure.
func propertyKind(err error) error {
	switch CodeOf(err) {
	case CodePropertyNotFound:
		return ErrUnknownProperty
	case CodePropertyUnavailable:
		return ErrPropertyUnavailable
	case CodePropertyFormat, CodeInvalidParameter:
		return ErrInvalidValue
	default:
		return ErrEngineInternal
	}
}
