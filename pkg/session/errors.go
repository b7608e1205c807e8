package session

import "errors"

// Refused operations return one of these and leave the session untouched.
var (
	ErrNotPlaying        = errors.New("session is not in play")
	ErrInvalidTransition = errors.New("transition not allowed")
	ErrEmptyMessage      = errors.New("message cannot be empty")
	ErrWrongScenario     = errors.New("operation not available in this scenario")
	ErrUnknownAction     = errors.New("unknown action")
)
