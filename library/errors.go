package library

import "errors"

var (
	// ErrNotFound is returned when a book or user lookup misses.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation does not apply to the current
	// loan or reservation state, e.g. returning a book the user does not hold.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnavailable is returned by the strict policy when the book is held by someone.
	ErrUnavailable = errors.New("currently unavailable")

	// ErrDuplicate is returned in strict-id mode when an identifier is already taken.
	ErrDuplicate = errors.New("duplicate identifier")

	// ErrInvalid is returned when a record fails field validation.
	ErrInvalid = errors.New("invalid record")
)
