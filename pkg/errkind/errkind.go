// Package errkind defines the error kinds returned by the dirfetch core.
package errkind

import (
	"errors"
	"fmt"
)

// Kind classifies a core failure.
type Kind int

const (
	Unknown Kind = iota
	Arg
	NotFound
	Transfer
	Index
	SpecialCharacter
	Decode
)

func (k Kind) String() string {
	switch k {
	case Arg:
		return "ArgError"
	case NotFound:
		return "NotFoundError"
	case Transfer:
		return "TransferError"
	case Index:
		return "IndexError"
	case SpecialCharacter:
		return "SpecialCharacterError"
	case Decode:
		return "DecodeError"
	default:
		return "UnknownError"
	}
}

// Error is a classified core error.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "fetch", "resolve"
	Path string // remote or local path involved, if any
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// As returns the classified error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Of returns the kind of err, or Unknown for unclassified errors.
func Of(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && Of(err) == kind
}
