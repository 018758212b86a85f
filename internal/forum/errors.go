package forum

import "errors"

var (
	// ErrValidation covers empty or over-long content.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized is returned when the actor may not touch the resource,
	// or the resource is frozen (resolved).
	ErrUnauthorized = errors.New("not authorized")
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("duplicates not allowed")
	// ErrConflict is returned when the resource is already in the requested
	// state, e.g. resolving a resolved question.
	ErrConflict = errors.New("conflict")
)
