package trace

import (
	"errors"
	"fmt"
)

// Kinds of replay errors. Every error returned by Tracker.Process matches
// exactly one of these with errors.Is.
var (
	ErrMalformed   = errors.New("malformed field")
	ErrShape       = errors.New("too few arguments")
	ErrNotOpen     = errors.New("descriptor not open")
	ErrConflict    = errors.New("descriptor already open")
	ErrUnsupported = errors.New("unsupported trace")
)

// FieldError is a numeric field that failed to parse.
type FieldError struct {
	Syscall string
	Field   string
	Value   string
	Err     error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: bad %s %q: %v", e.Syscall, e.Field, e.Value, e.Err)
}

func (e *FieldError) Is(target error) bool { return target == ErrMalformed }

func (e *FieldError) Unwrap() error { return e.Err }

// ShapeError is a call with fewer arguments than its syscall needs.
type ShapeError struct {
	Syscall string
	Want    int
	Got     int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: want at least %d arguments, got %d", e.Syscall, e.Want, e.Got)
}

func (e *ShapeError) Is(target error) bool { return target == ErrShape }

// ConsistencyError is an event that disagrees with the descriptor table:
// either an id that is not open, or a registration over a live id.
type ConsistencyError struct {
	Syscall string
	FD      int
	Kind    error // ErrNotOpen or ErrConflict
	Prev    string
}

func (e *ConsistencyError) Error() string {
	if e.Kind == ErrConflict {
		return fmt.Sprintf("%s: fd %d still open on %s, missed close?", e.Syscall, e.FD, e.Prev)
	}
	return fmt.Sprintf("%s: fd %d is not open", e.Syscall, e.FD)
}

func (e *ConsistencyError) Is(target error) bool { return target == e.Kind }

// UnsupportedError aborts a replay: the trace uses a form we cannot model.
type UnsupportedError struct {
	Syscall string
	Reason  string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Syscall, e.Reason)
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

// ErrorKind names the kind of a replay error for diagnostics and metrics.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrShape):
		return "shape"
	case errors.Is(err, ErrNotOpen):
		return "not_open"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	}
	return "other"
}
