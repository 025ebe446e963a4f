package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument indicates malformed numeric or enum input. It is
	// raised before any mutation and is fixed by retrying with corrected input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthenticated occurs when no user identity accompanies a mutation.
	ErrUnauthenticated = errors.New("user identity missing")
)
