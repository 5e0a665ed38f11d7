package auth

import "errors"

var (
	// ErrNotInitialized is returned when a service handle cannot be
	// constructed from the supplied configuration.
	ErrNotInitialized = errors.New("auth: not initialized")
	// ErrInvalidArgument flags malformed or out-of-policy caller input.
	ErrInvalidArgument = errors.New("auth: invalid argument")
	// ErrAlreadyExists is returned when provisioning collides with an
	// existing identity.
	ErrAlreadyExists = errors.New("auth: identity already exists")
	// ErrMissingIdentity is a hard lookup failure with no applicable
	// fallback, distinct from a normal negative authentication outcome.
	ErrMissingIdentity = errors.New("auth: no identity with that username")
	// ErrUnsupportedAuthKind flags a configuration or data inconsistency,
	// such as a directory identity while directory login is disabled.
	ErrUnsupportedAuthKind = errors.New("auth: unsupported auth kind")
	// ErrNotFound is the store-level absence sentinel.
	ErrNotFound = errors.New("auth: not found")
)
