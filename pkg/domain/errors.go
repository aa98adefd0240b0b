package domain

import "errors"

// Common domain errors
var (
	// ErrHubStopped is returned when a command is issued to a hub that is
	// no longer accepting work. Callers treat it as terminal for their
	// own session only.
	ErrHubStopped = errors.New("hub stopped")

	// ErrConnectionClosed is returned when trying to send on a session
	// whose connection has been closed
	ErrConnectionClosed = errors.New("connection closed")
)
