package store

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on uniqueness violations and duplicate relationships.
	ErrConflict = errors.New("conflict")
	// ErrNotRelated is returned when removing a relationship that does not exist.
	ErrNotRelated = errors.New("relationship does not exist")
)
