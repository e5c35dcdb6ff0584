// Package fault classifies domain errors into the kinds callers branch on.
//
// Every package-level sentinel in the game packages is created with New so the
// RPC layer and event sources can decide messaging without string matching.
package fault

import "errors"

// Kind is the category of a domain failure.
type Kind int

const (
	// Unknown is returned for errors that carry no kind, e.g. I/O failures.
	Unknown Kind = iota
	// Conflict covers "already in that state" outcomes.
	Conflict
	// NotFound covers missing or expired entities.
	NotFound
	// PermissionDenied covers rank or ownership checks that failed.
	PermissionDenied
	// ExternalFailure covers a collaborator that failed or timed out.
	ExternalFailure
	// Invalid covers malformed input such as a non-positive amount.
	Invalid
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	case PermissionDenied:
		return "permission_denied"
	case ExternalFailure:
		return "external_failure"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error is a kinded sentinel error.
type Error struct {
	kind Kind
	msg  string
}

// New creates a sentinel error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the error's category.
func (e *Error) Kind() Kind { return e.kind }

// KindOf returns the kind of the first *Error in err's chain.
//
// Postcondition: Returns Unknown when err is nil or carries no kind.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
