package domain

import (
	"errors"
	"fmt"
)

// Error kinds reported by store mutations and propagation. Match them with
// errors.Is; the concrete error carries the offending identifiers.
var (
	ErrDanglingReference = errors.New("dangling reference")
	ErrDuplicateName     = errors.New("duplicate name")
	ErrInvalidOwner      = errors.New("invalid owner")
	ErrLimitExceeded     = errors.New("multiplicity limit exceeded")
	ErrReadOnly          = errors.New("record is read-only")
	ErrNotFound          = errors.New("not found")
)

// ReferenceError reports an identifier that does not resolve in the store.
type ReferenceError struct {
	Entity EntityType
	ID     string
	// Field names the attribute holding the reference, e.g. "source".
	Field string
}

func (e *ReferenceError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s %s %q does not exist", ErrDanglingReference, e.Field, e.Entity, e.ID)
	}
	return fmt.Sprintf("%s: %s %q does not exist", ErrDanglingReference, e.Entity, e.ID)
}

// Unwrap lets errors.Is match ErrDanglingReference.
func (e *ReferenceError) Unwrap() error { return ErrDanglingReference }

// NameError reports a name clash inside a sibling scope.
type NameError struct {
	Name     string
	Existing string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("%s: %q already used by element %q", ErrDuplicateName, e.Name, e.Existing)
}

// Unwrap lets errors.Is match ErrDuplicateName.
func (e *NameError) Unwrap() error { return ErrDuplicateName }

// OwnerError reports a missing or non-package owner.
type OwnerError struct {
	Owner  string
	Reason string
}

func (e *OwnerError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidOwner, e.Owner, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidOwner.
func (e *OwnerError) Unwrap() error { return ErrInvalidOwner }

// LimitError reports an attempt to exceed an aggregation's upper bound.
type LimitError struct {
	Parent     string
	Definition string
	Limit      int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: block %q allows at most %d parts of %q", ErrLimitExceeded, e.Parent, e.Limit, e.Definition)
}

// Unwrap lets errors.Is match ErrLimitExceeded.
func (e *LimitError) Unwrap() error { return ErrLimitExceeded }

// MissingElement is shorthand for an element ReferenceError.
func MissingElement(id, field string) error {
	return &ReferenceError{Entity: EntityElement, ID: id, Field: field}
}

// MissingDiagram is shorthand for a diagram ReferenceError.
func MissingDiagram(id, field string) error {
	return &ReferenceError{Entity: EntityDiagram, ID: id, Field: field}
}

// MissingRelationship is shorthand for a relationship ReferenceError.
func MissingRelationship(id string) error {
	return &ReferenceError{Entity: EntityRelationship, ID: id}
}
