package conversation

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the class of a domain error. The set is closed so
// callers can match exhaustively instead of string-comparing messages.
type ErrorKind int

const (
	// KindNotFound means a topic, message or reparent target does not exist.
	KindNotFound ErrorKind = iota + 1
	// KindDataInconsistent means stored data violates an invariant: a topic
	// with messages but no recorded active node, or a parent link pointing
	// at a missing message.
	KindDataInconsistent
	// KindInvalidOperation means the request itself is illegal: deleting a
	// root without cascade, or reparenting a message into its own subtree.
	KindInvalidOperation
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindDataInconsistent:
		return "data_inconsistent"
	case KindInvalidOperation:
		return "invalid_operation"
	default:
		return "unknown"
	}
}

// Error is the domain error type for the conversation engines. Exactly one
// of the optional field groups is populated depending on Kind.
type Error struct {
	Kind   ErrorKind
	Entity string // "topic" or "message" (NotFound, DataInconsistent)
	ID     string // offending entity id, when known
	Action string // attempted operation (InvalidOperation)
	Reason string // why the operation is illegal (InvalidOperation)
	Detail string // invariant violated (DataInconsistent)
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
	case KindDataInconsistent:
		if e.ID != "" {
			return fmt.Sprintf("inconsistent %s %s: %s", e.Entity, e.ID, e.Detail)
		}
		return fmt.Sprintf("inconsistent %s: %s", e.Entity, e.Detail)
	case KindInvalidOperation:
		return fmt.Sprintf("invalid operation %q: %s", e.Action, e.Reason)
	default:
		return "unknown conversation error"
	}
}

// ErrNotFound reports a missing topic or message.
func ErrNotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id}
}

// ErrInconsistent reports stored data violating a structural invariant.
func ErrInconsistent(entity, id, detail string) *Error {
	return &Error{Kind: KindDataInconsistent, Entity: entity, ID: id, Detail: detail}
}

// ErrInvalidOp reports an illegal mutation request.
func ErrInvalidOp(action, reason string) *Error {
	return &Error{Kind: KindInvalidOperation, Action: action, Reason: reason}
}

// IsNotFound reports whether err is a NotFound domain error.
func IsNotFound(err error) bool {
	return hasKind(err, KindNotFound)
}

// IsDataInconsistent reports whether err is a DataInconsistent domain error.
func IsDataInconsistent(err error) bool {
	return hasKind(err, KindDataInconsistent)
}

// IsInvalidOperation reports whether err is an InvalidOperation domain error.
func IsInvalidOperation(err error) bool {
	return hasKind(err, KindInvalidOperation)
}

func hasKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
