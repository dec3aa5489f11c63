package dojo

import "errors"

var (
	// ErrInvalidRole is returned by Start for a role missing from the catalog.
	ErrInvalidRole = errors.New("invalid role")

	// ErrSessionNotFound is returned when the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionAbandoned is returned by Finalize when the janitor reaped the
	// session before it earned a report.
	ErrSessionAbandoned = errors.New("session abandoned")
)
