package domain

import "errors"

var (
	// ErrNotFound indicates that a requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource with the same identity
	// already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidArgument indicates that a caller-provided value violates
	// a precondition.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStaging indicates that an artifact could not be staged into the
	// release store: malformed archive, failed extraction, or an
	// identifier collision with a different artifact.
	ErrStaging = errors.New("staging failed")

	// ErrSupervisor indicates that the process supervisor could not
	// start or stop a slot's process.
	ErrSupervisor = errors.New("supervisor failed")

	// ErrHealthGate indicates that a slot never became healthy within
	// the configured probe window.
	ErrHealthGate = errors.New("health gate failed")

	// ErrProxyReload indicates that the reverse proxy rejected or failed
	// to apply a new backend configuration. The live pointer is never
	// mutated when this occurs.
	ErrProxyReload = errors.New("proxy reload failed")
)
