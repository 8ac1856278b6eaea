package tagindex

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Kind enumerates the error taxonomy for tag registration and
// configuration, as distinguished in the engine's error handling design.
type Kind int

const (
	// Other is an unclassified error.
	Other Kind = iota
	// InvalidTag is a syntactic violation in a tag record.
	InvalidTag
	// InvalidDistance is a malformed distance string.
	InvalidDistance
	// InvalidLocation is a malformed location string.
	InvalidLocation
	// InvalidTrim is an inconsistent trim specification.
	InvalidTrim
	// CanonicalCollision is a fatal overlap between two canonical tag
	// sequences.
	CanonicalCollision
	// IndexClosed is a mutation attempted after the registry was closed.
	IndexClosed
	// ConfigError is a CLI/config inconsistency.
	ConfigError
)

func (k Kind) String() string {
	switch k {
	case InvalidTag:
		return "InvalidTag"
	case InvalidDistance:
		return "InvalidDistance"
	case InvalidLocation:
		return "InvalidLocation"
	case InvalidTrim:
		return "InvalidTrim"
	case CanonicalCollision:
		return "CanonicalCollision"
	case IndexClosed:
		return "IndexClosed"
	case ConfigError:
		return "ConfigError"
	default:
		return "Other"
	}
}

// Error is the error type returned by tag registration and configuration
// parsing. Row and Col identify the offending position in a config table
// (1-based); either may be zero when not applicable (e.g. a programmatic
// add_tag call). Kind and Msg are also constructed directly as a struct
// literal by cmd/splitcode, so both stay exported; Error() and Unwrap()
// route through github.com/grailbio/base/errors so tagindex errors compose
// with the rest of the tree's errors.Once/errors.Is-based handling.
type Error struct {
	Kind Kind
	Row  int
	Col  string
	Msg  string

	cause error
}

func (e *Error) position() string {
	switch {
	case e.Row > 0 && e.Col != "":
		return fmt.Sprintf("row %d, column %s", e.Row, e.Col)
	case e.Row > 0:
		return fmt.Sprintf("row %d", e.Row)
	default:
		return ""
	}
}

// wrapped lazily builds the underlying grailbio/base/errors error, so
// Error values built either via newError/newRowError or directly as a
// struct literal (as cmd/splitcode does) get the same error chain.
func (e *Error) wrapped() error {
	if e.cause != nil {
		return e.cause
	}
	if pos := e.position(); pos != "" {
		return errors.E(e.Kind.String(), pos, e.Msg)
	}
	return errors.E(e.Kind.String(), e.Msg)
}

func (e *Error) Error() string {
	return e.wrapped().Error()
}

func (e *Error) Unwrap() error {
	return e.wrapped()
}

// Is reports whether target is an *Error of the same Kind, so
// errors.Is(err, &tagindex.Error{Kind: tagindex.CanonicalCollision})
// matches any CanonicalCollision error whatever its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, msg string, args ...interface{}) *Error {
	m := fmt.Sprintf(msg, args...)
	e := &Error{Kind: kind, Msg: m}
	e.cause = errors.E(kind.String(), m)
	return e
}

func newRowError(kind Kind, row int, col, msg string, args ...interface{}) *Error {
	m := fmt.Sprintf(msg, args...)
	e := &Error{Kind: kind, Row: row, Col: col, Msg: m}
	e.cause = errors.E(kind.String(), e.position(), m)
	return e
}
