// Package service implements the token ledger and entitlement engine: the
// unlock transaction, the admin grant service, balance and summary reads.
// Handlers talk to the engine through typed error kinds; no layer of the
// system selects behavior by inspecting error message text.
package service

import (
    "errors"
    "fmt"
)

// Error kinds surfaced by the engine.  Handlers match these with errors.Is
// and translate them to HTTP statuses.
var (
    // ErrNotAuthenticated – no resolvable caller identity.
    ErrNotAuthenticated = errors.New("not authenticated")
    // ErrUnauthorized – authenticated but insufficient role.
    ErrUnauthorized = errors.New("unauthorized")
    // ErrInvalidArgument – malformed or empty input.
    ErrInvalidArgument = errors.New("invalid argument")
    // ErrInsufficientCredits – balance below the requested unlock cost.
    ErrInsufficientCredits = errors.New("insufficient credits")
    // ErrNotFound – referenced user or profile is absent.
    ErrNotFound = errors.New("not found")
    // ErrInternal – storage or invariant failure.
    ErrInternal = errors.New("internal error")
)

// Error carries an error kind together with a human-readable message and a
// hint on whether the caller may retry the operation.  errors.Is(err, kind)
// matches against the kind sentinels above, and errors.Unwrap exposes the
// underlying cause when one exists.
type Error struct {
    Kind      error  // one of the kind sentinels
    Msg       string // human-readable description
    Retryable bool   // safe to retry as-is (e.g. lock contention exhausted)
    cause     error  // wrapped storage error, may be nil
}

func (e *Error) Error() string {
    if e.Msg != "" {
        return e.Msg
    }
    return e.Kind.Error()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.cause }

// errf builds a non-retryable engine error of the given kind.
func errf(kind error, format string, args ...any) *Error {
    return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// internalErr wraps a storage failure as an internal engine error.
func internalErr(cause error) *Error {
    return &Error{Kind: ErrInternal, Msg: "storage failure", cause: cause}
}
