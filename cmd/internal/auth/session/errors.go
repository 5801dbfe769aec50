package session

import "errors"

var (
	// ErrSessionNotFound is returned by stores when no session matches.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateSession is returned when a session ID or token already exists.
	ErrDuplicateSession = errors.New("duplicate session")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
