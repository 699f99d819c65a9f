package errors

import "errors"

var (
	ErrNotFound = errors.New("invoice extraction not found")

	ErrInvalidID = errors.New("invalid invoice extraction ID format")
)
