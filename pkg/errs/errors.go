// Package errs implements the error taxonomy described in spec §7: every
// error the core raises is tagged with a stable Code, carries structured
// Context, and chains to its Cause. It generalizes the teacher's
// pkg/util/structerr.StructError pattern (type-identity equality for
// errors.Is) across the three error categories the core distinguishes.
package errs

import (
	"errors"
	"fmt"
)

// Category classifies how a Code should be handled by the retry layer (C9)
// and by callers deciding whether to surface an error to a human.
type Category int

const (
	// CategoryUnknown is the zero value; never intentionally assigned.
	CategoryUnknown Category = iota
	// UserActionable errors require the caller to change something; never retried.
	UserActionable
	// Retriable errors are transient; C9 retries them with backoff.
	Retriable
	// Fatal errors are retried at most once, then bubble.
	Fatal
)

func (c Category) String() string {
	switch c {
	case UserActionable:
		return "USER_ACTIONABLE"
	case Retriable:
		return "RETRIABLE"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Code is one of the taxonomy values from spec §7.
type Code string

const (
	InvalidKey       Code = "INVALID_KEY"
	InvalidInput     Code = "INVALID_INPUT"
	NotFound         Code = "NOT_FOUND"
	AuthRequired     Code = "AUTH_REQUIRED"
	BranchNotFound   Code = "BRANCH_NOT_FOUND"
	EventInvalid     Code = "EVENT_INVALID"
	RequiresAsync    Code = "REQUIRES_ASYNC"
	NetworkError     Code = "NETWORK_ERROR"
	Timeout          Code = "TIMEOUT"
	ObjectUnreach    Code = "OBJECT_UNREACHABLE"
	RelayBusy        Code = "RELAY_BUSY"
	CorruptPack      Code = "CORRUPT_PACK"
	MergeConflict    Code = "MERGE_CONFLICT"
	Internal         Code = "INTERNAL"
	OperationAborted Code = "OPERATION_ABORTED"
	NoPullRequestProvider Code = "NO_PULL_REQUEST_PROVIDER"
)

var categories = map[Code]Category{
	InvalidKey:            UserActionable,
	InvalidInput:          UserActionable,
	NotFound:              UserActionable,
	AuthRequired:          UserActionable,
	BranchNotFound:        UserActionable,
	EventInvalid:          UserActionable,
	RequiresAsync:         UserActionable,
	OperationAborted:      UserActionable,
	NetworkError:          Retriable,
	Timeout:               Retriable,
	ObjectUnreach:         Retriable,
	RelayBusy:             Retriable,
	CorruptPack:           Fatal,
	MergeConflict:         Fatal,
	Internal:              Fatal,
	NoPullRequestProvider: UserActionable,
}

// CategoryOf returns the Category a Code belongs to, or CategoryUnknown for
// codes this package doesn't know about (pkg/retry's default policy does
// not retry errors in this category).
func CategoryOf(code Code) Category {
	if cat, ok := categories[code]; ok {
		return cat
	}
	return CategoryUnknown
}

// Error is the core's structured error type. Two *Error values are Is-equal
// when they carry the same Code, mirroring structerr.StructError's
// type-identity comparison but keyed on Code instead of Go type.
type Error struct {
	Code    Code
	Message string
	// Context carries at minimum "operation" and "address" per spec §7.
	Context map[string]any
	Cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Context: map[string]any{}}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Context: map[string]any{}, Cause: cause}
}

// With returns a copy of e with the given context key set, for fluent
// construction: errs.New(...).With("operation", "clone").With("address", addr).
func (e *Error) With(key string, value any) *Error {
	n := *e
	n.Context = make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		n.Context[k] = v
	}
	n.Context[key] = value
	return &n
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements the structerr comparison pattern: two *Error values are
// equal if their Codes match; a target that is not an *Error never matches.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// Category reports which retry category this error's Code falls under.
func (e *Error) Category() Category {
	return CategoryOf(e.Code)
}

// CodeOf extracts the Code from err if it (or something it wraps) is an
// *Error, and "" otherwise.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err (or a wrapped cause) carries the given Code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
