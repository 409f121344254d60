package tutor

import "errors"

var (
	// ErrEmptyMessage is returned when a turn arrives with no usable input
	ErrEmptyMessage = errors.New("message cannot be empty")
	// ErrSessionNotFound is returned when the session id is unknown
	ErrSessionNotFound = errors.New("session not found")
	// ErrForbidden is returned when the session belongs to another user
	ErrForbidden = errors.New("unauthorized access to this session")
	// ErrModelUpstream wraps a failed first model invocation
	ErrModelUpstream = errors.New("model invocation failed")
)
