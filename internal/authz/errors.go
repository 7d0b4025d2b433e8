package authz

import "errors"

// Error taxonomy for authorization outcomes.
var (
	// ErrUnauthenticated means there is no valid session. Recovered by signing in.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized means the session is valid but the role is insufficient.
	// Recovered only through a reviewed role request.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrLookupFailure means the profile store could not be read. Recovered by
	// falling back to the default role for that request.
	ErrLookupFailure = errors.New("role lookup failure")

	// ErrProfileNotFound is returned by a ProfileStore when no profile exists.
	ErrProfileNotFound = errors.New("profile not found")
)
