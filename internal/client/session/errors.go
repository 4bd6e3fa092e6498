package session

import "errors"

var (
	ErrNotStarted         = errors.New("session not started")
	ErrAlreadyStarted     = errors.New("session already started")
	ErrClosed             = errors.New("session manager closed")
	ErrInvalidTransition  = errors.New("invalid session transition")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPersist            = errors.New("failed to persist session")
	ErrSessionReset       = errors.New("session was reset while the request was in flight")

	// ErrCorruptRecord wraps every persisted value that fails to parse.
	ErrCorruptRecord = errors.New("corrupt session record")
)
