package shared

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates a failed sign-in attempt. Callers
	// return it for unknown emails and bad passwords alike so the two
	// cases are indistinguishable to the client.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
