package database

import "errors"

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("database: record not found")
	// ErrConflict is returned when a row changed since it was read
	ErrConflict = errors.New("database: concurrent modification")
)
