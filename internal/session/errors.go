package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorKind int

const (
	// ErrParse: the document is not valid JSON or has the wrong shape.
	ErrParse ErrorKind = iota
	// ErrDecode: a record is missing required fields or holds bad values.
	ErrDecode
	// ErrNoVideo: the operation needs an open video.
	ErrNoVideo
	// ErrInvalid: the request itself is malformed.
	ErrInvalid
	ErrUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case ErrParse:
		return "Parse"
	case ErrDecode:
		return "Decode"
	case ErrNoVideo:
		return "NoVideo"
	case ErrInvalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]any
	Cause   error
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func WrapError(err error, kind ErrorKind, message string) *Error {
	e := NewError(kind, message)
	e.Cause = err
	return e
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Kind, e.Message)}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(ctxParts, ", "))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}
	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

func IsErrorKind(err error, kind ErrorKind) bool {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr.Kind == kind
	}
	return false
}
