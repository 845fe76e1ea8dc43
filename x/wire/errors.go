package wire

import (
	"errors"
	"fmt"
)

// ErrorKind classifies wire errors by how the caller recovers from them
type ErrorKind int

const (
	// KindConfig is a capacity or digit-width problem; the encode call is rejected whole.
	KindConfig ErrorKind = iota
	// KindProtocol is inconsistent segment state; only the offending entry is dropped.
	KindProtocol
	// KindFormat is a malformed topic or payload; the segment is discarded untouched.
	KindFormat
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindProtocol:
		return "protocol"
	case KindFormat:
		return "format"
	default:
		return "unknown"
	}
}

// Error is the structured error returned by the encoder, decoder and accumulator
type Error struct {
	Kind       ErrorKind
	Message    string
	Cause      error
	WaveformID ID
	Index      int
	hasID      bool
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	if e.hasID {
		msg = fmt.Sprintf("%s (waveform %d, index %d)", msg, e.WaveformID, e.Index)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCause adds a cause error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithSegment records which waveform and segment index the error refers to
func (e *Error) WithSegment(id ID, index int) *Error {
	e.WaveformID = id
	e.Index = index
	e.hasID = true
	return e
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewConfigError creates a KindConfig error
func NewConfigError(format string, args ...any) *Error {
	return newError(KindConfig, format, args...)
}

// NewProtocolError creates a KindProtocol error
func NewProtocolError(format string, args ...any) *Error {
	return newError(KindProtocol, format, args...)
}

// NewFormatError creates a KindFormat error
func NewFormatError(format string, args ...any) *Error {
	return newError(KindFormat, format, args...)
}

// KindOf returns the kind of a wire error anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind, true
	}
	return 0, false
}

func IsConfig(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindConfig
}

func IsProtocol(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindProtocol
}

func IsFormat(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindFormat
}
