package proctor

import "errors"

var (
	ErrConsentRequired  = errors.New("consent required before starting the session")
	ErrAnswerRequired   = errors.New("answer required before moving to the next question")
	ErrNotInProgress    = errors.New("session is not in progress")
	ErrAlreadyStarted   = errors.New("session already started")
	ErrStartPending     = errors.New("session start already pending")
	ErrSessionClosed    = errors.New("session closed")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrOptionOutOfRange = errors.New("option index out of range")
	ErrNoQuestions      = errors.New("question bank is empty")
	ErrNotCompleted     = errors.New("session has not completed")
)
