package credstore

import "errors"

var (
	// ErrInvalidKey is returned when a session key or entry name contains characters
	// outside [A-Za-z0-9_.-] or is empty.
	ErrInvalidKey = errors.New("credstore: invalid key")

	// ErrClosed is returned by stores that have been closed.
	ErrClosed = errors.New("credstore: store closed")
)
