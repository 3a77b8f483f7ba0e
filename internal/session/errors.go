package session

import "errors"

var (
	ErrNoQuestions      = errors.New("session has no questions")
	ErrNoRecordStore    = errors.New("session requires a record store")
	ErrCapabilityDenied = errors.New("screen capture permission denied")
	ErrNotInProgress    = errors.New("session is not in progress")
	ErrUnknownItem      = errors.New("item does not belong to the current question")
	ErrOptionOutOfRange = errors.New("option index out of range")
	ErrPersistFailed    = errors.New("failed to persist exam outcome")
	ErrInvalidScore     = errors.New("forced score must be between 0 and 100")
)
